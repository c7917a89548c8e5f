// Package testing provides test doubles for the host package.
package testing

import (
	"context"
	"sync"

	"github.com/webui-fleet/webuictl/internal/config"
	"github.com/webui-fleet/webuictl/internal/host"
	"github.com/webui-fleet/webuictl/pkg/sshutil"
	sstesting "github.com/webui-fleet/webuictl/pkg/sshutil/testing"
)

// FakeDialer hands out scripted mock clients keyed by server name.
// It records every dial so tests can assert that no connection was made.
type FakeDialer struct {
	mu       sync.Mutex
	clients  map[string]*sstesting.MockClient
	failures map[string]error
	dials    []string
}

// NewFakeDialer creates a dialer with no scripted servers. Unknown servers
// get a fresh mock client on first use.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{
		clients:  make(map[string]*sstesting.MockClient),
		failures: make(map[string]error),
	}
}

// Client returns the mock client used for the named server, creating it if needed.
func (d *FakeDialer) Client(name string) *sstesting.MockClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clientLocked(name)
}

func (d *FakeDialer) clientLocked(name string) *sstesting.MockClient {
	c, ok := d.clients[name]
	if !ok {
		c = sstesting.NewMockClient(name)
		d.clients[name] = c
	}
	return c
}

// Fail makes every dial to the named server return err.
func (d *FakeDialer) Fail(name string, err error) *FakeDialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[name] = err
	return d
}

// Dial implements host.Dialer.
func (d *FakeDialer) Dial(ctx context.Context, server config.Server) (sshutil.SSHClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials = append(d.dials, server.Name)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := d.failures[server.Name]; ok {
		return nil, err
	}
	c := d.clientLocked(server.Name)
	c.Reopen()
	return c, nil
}

// Dials returns the names of the servers dialed so far, in order.
func (d *FakeDialer) Dials() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.dials))
	copy(out, d.dials)
	return out
}

// DialCount returns the number of dial attempts.
func (d *FakeDialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

// Verify FakeDialer implements host.Dialer
var _ host.Dialer = (*FakeDialer)(nil)
