package cli

import (
	"fmt"
	"net/url"
	"time"

	"github.com/webui-fleet/webuictl/internal/errors"
)

// ParseTimeout parses a --timeout value into a duration.
// Returns zero duration if the flag is empty.
func ParseTimeout(flag string) (time.Duration, error) {
	if flag == "" {
		return 0, nil
	}

	duration, err := time.ParseDuration(flag)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid timeout", flag),
			"Try something like 10m, 1h, or 90s.")
	}
	if duration <= 0 {
		return 0, errors.New(errors.ErrConfig,
			fmt.Sprintf("Timeout must be positive, got %s", flag),
			"Try something like 10m, 1h, or 90s.")
	}
	return duration, nil
}

// ValidateDownloadURL checks that raw is an absolute http, https or ftp URL.
// wget accepts more, but anything else is almost certainly a typo.
func ValidateDownloadURL(raw string) error {
	u, err := url.Parse(raw)
	if err == nil && u.Host != "" {
		switch u.Scheme {
		case "http", "https", "ftp":
			return nil
		}
	}
	return errors.New(errors.ErrConfig,
		fmt.Sprintf("'%s' is not a download URL", raw),
		"Pass a full URL such as https://example.com/model.safetensors")
}
