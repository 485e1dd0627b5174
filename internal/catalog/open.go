package catalog

import (
	"context"
	"fmt"
	"strings"
)

// Options selects a backend.
type Options struct {
	Backend  string // sqlite, redis or memory
	Path     string // sqlite database file
	RedisURL string
}

// Open creates the configured catalog.
func Open(ctx context.Context, opts Options) (Catalog, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "sqlite":
		if opts.Path == "" {
			return nil, fmt.Errorf("catalog.path is not set")
		}
		return OpenSQLite(opts.Path)
	case "redis":
		if opts.RedisURL == "" {
			return nil, fmt.Errorf("catalog.redis_url is not set")
		}
		return OpenRedis(ctx, opts.RedisURL)
	case "memory":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown catalog backend %q (supported: sqlite, redis, memory)", opts.Backend)
}
