package ruleset

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Provider hands out immutable ruleset snapshots and supports hot reload by
// swapping the whole Config atomically. In-flight requests keep the snapshot
// they started with.
type Provider struct {
	path string
	cur  atomic.Pointer[Config]
}

// NewProvider loads the ruleset at path and returns a Provider for it.
func NewProvider(path string) (*Provider, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	p := &Provider{path: path}
	p.cur.Store(cfg)
	return p, nil
}

// Static wraps an already-built Config in a Provider. Reload is a no-op.
func Static(cfg *Config) *Provider {
	p := &Provider{}
	p.cur.Store(cfg)
	return p
}

// Snapshot returns the current ruleset. The returned Config is immutable and
// stays valid for the caller's whole request even across a concurrent Reload.
func (p *Provider) Snapshot() *Config {
	return p.cur.Load()
}

// Reload re-reads the ruleset file and swaps it in. On failure the previous
// ruleset stays active.
func (p *Provider) Reload() (*Config, error) {
	if p.path == "" {
		return p.Snapshot(), nil
	}
	cfg, err := Load(p.path)
	if err != nil {
		zap.L().Error("ruleset: reload failed, keeping previous version",
			zap.String("path", p.path),
			zap.String("active_version", p.Snapshot().Version),
			zap.Error(err),
		)
		return nil, err
	}
	old := p.cur.Swap(cfg)
	zap.L().Info("ruleset: reloaded",
		zap.String("old_version", old.Version),
		zap.String("new_version", cfg.Version),
	)
	return cfg, nil
}
