package webui

import (
	"context"
	"strings"
	"sync"

	"github.com/webui-fleet/webuictl/internal/config"
	"github.com/webui-fleet/webuictl/internal/host"
)

// ProbeAll probes every server with at most parallelism probes in flight
// and returns the reports in the order of servers. A failed probe becomes a
// report carrying the failure reason; it never stops the batch.
func ProbeAll(ctx context.Context, dialer host.Dialer, servers []config.Server, finder host.ProcessFinder, parallelism int) []StatusReport {
	if parallelism < 1 {
		parallelism = 1
	}

	reports := make([]StatusReport, len(servers))
	if parallelism == 1 {
		for i, server := range servers {
			reports[i] = probeOne(ctx, dialer, server, finder)
		}
		return reports
	}

	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup

	for i, server := range servers {
		wg.Add(1)
		go func(i int, server config.Server) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			reports[i] = probeOne(ctx, dialer, server, finder)
		}(i, server)
	}

	wg.Wait()
	return reports
}

func probeOne(ctx context.Context, dialer host.Dialer, server config.Server, finder host.ProcessFinder) StatusReport {
	report, err := Probe(ctx, dialer, server, finder)
	if err != nil {
		return StatusReport{
			ServerName: server.Name,
			Address:    server.Address(),
			URL:        server.URL,
			Error:      host.DescribeFailure(err),
		}
	}
	return *report
}

// Render joins report blocks with a blank line.
func Render(reports []StatusReport) string {
	if len(reports) == 0 {
		return EmptyRegistry
	}
	blocks := make([]string, len(reports))
	for i, r := range reports {
		blocks[i] = r.Block()
	}
	return strings.Join(blocks, "\n\n")
}

// AggregateStatus probes the whole registry and renders it as text.
func AggregateStatus(ctx context.Context, dialer host.Dialer, registry *host.Registry, finder host.ProcessFinder, parallelism int) string {
	if registry.Len() == 0 {
		return EmptyRegistry
	}
	return Render(ProbeAll(ctx, dialer, registry.All(), finder, parallelism))
}
