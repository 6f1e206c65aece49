package gbt

import (
	"errors"
	"time"
)

// ErrInvalidConfig is returned by NewEngine when a Config value cannot
// possibly drive a correct transfer (zero window, negative timeout, ...).
var ErrInvalidConfig = errors.New("gbt: invalid engine configuration")

// Config carries the per-role parameters that distinguish a client engine
// from a server engine. The engine itself is otherwise role-agnostic: see
// DESIGN.md for the composition-over-inheritance rationale.
type Config struct {
	// Role is used only for logging and sequence-diagram participant
	// naming ("CLT" or "SVR"); it has no effect on protocol behavior.
	Role string

	// BTS is Block-Transfer-Service. Only confirmed (true) operation is
	// implemented; see spec Non-goals for unconfirmed (W=0) streams.
	BTS bool

	// BTW is Block-Transfer-Window, the maximum window size this role
	// ever advertises.
	BTW uint8

	// PeerBTW is the peer role's BTW, known a-priori since both roles'
	// window sizes are fixed configuration (GBCS), not negotiated. It
	// seeds Wpeer before any traffic has been exchanged.
	PeerBTW uint8

	// MaxPayload bounds the size of a single block's BD when slicing an
	// outbound payload in FillSQ.
	MaxPayload int

	// Timeout is armed whenever this role ends a window (STR=0) or
	// finds a gap while awaiting the rest of the stream.
	Timeout time.Duration

	// TimerEnabled mirrors the simulator's choice to disable the
	// server's timer, leaving the client solely responsible for driving
	// loss recovery (spec section 9, design note 3).
	TimerEnabled bool

	// RunawayThreshold is the BN above which the engine logs a
	// "runaway" diagnostic. It never aborts the transfer on its own.
	RunawayThreshold uint16
}

func (c Config) validate() error {
	if c.BTW == 0 {
		return ErrInvalidConfig
	}
	if c.MaxPayload <= 0 {
		return ErrInvalidConfig
	}
	if c.Timeout < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ClientConfig returns the GBCS-imposed defaults for the client role.
func ClientConfig() Config {
	return Config{
		Role:             "CLT",
		BTS:              true,
		BTW:              63,
		PeerBTW:          6,
		MaxPayload:       10,
		Timeout:          10 * time.Second,
		TimerEnabled:     true,
		RunawayThreshold: 40,
	}
}

// ServerConfig returns the GBCS-imposed defaults for the server role. The
// server's timer is disabled in the simulator, per spec section 9: the
// client alone drives loss recovery.
func ServerConfig() Config {
	return Config{
		Role:             "SVR",
		BTS:              true,
		BTW:              6,
		PeerBTW:          63,
		MaxPayload:       10,
		Timeout:          5 * time.Second,
		TimerEnabled:     false,
		RunawayThreshold: 40,
	}
}
