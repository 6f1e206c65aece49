package gbt

// Sink is the outbound side of the transport the engine is agnostic to: a
// handle to the peer's own inbound queue, obtained at wiring time. Routing
// through a handle (rather than a pointer to the peer object) avoids the
// self-referential peer cycles the original source used.
type Sink interface {
	Deliver(APDU)
}

// Timer is a one-shot, cancellable timer. Start is a no-op if a timer is
// already armed; Stop cancels any armed timer. The implementation must
// only enqueue a TimerExpiry event on expiry — it must never call back
// into engine state directly, which is what keeps the engine
// single-threaded from its own point of view.
type Timer interface {
	Start()
	Stop()
}

// Logger is the minimal surface the engine needs for its SAS/PGA/CRF
// diagnostics. *logrus.Logger and *logrus.Entry both satisfy it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// noopLogger discards everything; used when an Engine is built without an
// explicit Logger (tests mostly).
type noopLogger struct{}

func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Warnf(string, ...interface{})  {}

// CompletionKind reports why an engine returned to Idle.
type CompletionKind int

const (
	// CompletionNone is never actually observed by a caller; it exists
	// so the zero value of CompletionKind is not mistaken for a real
	// event.
	CompletionNone CompletionKind = iota
	// CompletionSentStream: our SQ emptied after a block carrying a
	// payload was acknowledged.
	CompletionSentStream
	// CompletionReceivedStream: our RQ holds a full contiguous payload
	// ending in an LB block with data.
	CompletionReceivedStream
)
