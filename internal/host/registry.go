// Package host holds the server registry and the SSH session plumbing used
// to drive a single remote server.
package host

import (
	"github.com/webui-fleet/webuictl/internal/config"
	"github.com/webui-fleet/webuictl/internal/errors"
)

// Registry is the ordered set of configured servers.
// Order is the order of the config file and is preserved everywhere.
type Registry struct {
	servers []config.Server
}

// NewRegistry copies servers into a new registry.
func NewRegistry(servers []config.Server) *Registry {
	cp := make([]config.Server, len(servers))
	copy(cp, servers)
	return &Registry{servers: cp}
}

// All returns the servers in registration order.
func (r *Registry) All() []config.Server {
	out := make([]config.Server, len(r.servers))
	copy(out, r.servers)
	return out
}

// Names returns the server names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.servers))
	for i, s := range r.servers {
		names[i] = s.Name
	}
	return names
}

// Len returns the number of registered servers.
func (r *Registry) Len() int {
	return len(r.servers)
}

// Lookup returns the first server registered under name.
func (r *Registry) Lookup(name string) (config.Server, error) {
	for _, s := range r.servers {
		if s.Name == name {
			return s, nil
		}
	}
	return config.Server{}, errors.NewServerNotFound(name)
}

// First returns the first registered server, if any.
func (r *Registry) First() (config.Server, bool) {
	if len(r.servers) == 0 {
		return config.Server{}, false
	}
	return r.servers[0], true
}
