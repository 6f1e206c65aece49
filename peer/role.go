package peer

import (
	"time"

	"github.com/gridmerge/gbtsim/gbt"
)

// NewClient builds a Peer running the client-role engine with GBCS
// defaults, overridable via opts.
func NewClient(logger gbt.Logger, opts ...Option) *Peer {
	cfg := gbt.ClientConfig()
	return newWithOptions(cfg, logger, opts)
}

// NewServer builds a Peer running the server-role engine with GBCS
// defaults, overridable via opts.
func NewServer(logger gbt.Logger, opts ...Option) *Peer {
	cfg := gbt.ServerConfig()
	return newWithOptions(cfg, logger, opts)
}

// Option customizes a role's Config and drop pattern before the Peer
// (and its Engine) are constructed.
type Option func(*gbt.Config, *[]int)

// WithDrops marks the zero-based inbound message indices that this peer
// should discard.
func WithDrops(indices ...int) Option {
	return func(_ *gbt.Config, drops *[]int) {
		*drops = append(*drops, indices...)
	}
}

// WithMaxPayload overrides the block payload size used when slicing an
// outbound transfer.
func WithMaxPayload(n int) Option {
	return func(cfg *gbt.Config, _ *[]int) {
		cfg.MaxPayload = n
	}
}

// WithTimeout overrides the role's timer duration.
func WithTimeout(d time.Duration) Option {
	return func(cfg *gbt.Config, _ *[]int) {
		cfg.Timeout = d
	}
}

func newWithOptions(cfg gbt.Config, logger gbt.Logger, opts []Option) *Peer {
	var drops []int
	for _, opt := range opts {
		opt(&cfg, &drops)
	}
	return New(cfg, logger, drops...)
}
