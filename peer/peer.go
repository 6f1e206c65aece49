// Package peer wires a gbt.Engine to a single worker goroutine, a
// one-shot timer, and a deterministic loss filter, giving each endpoint
// of a simulated transfer its own thread of control (spec section 4.1).
package peer

import (
	"context"
	"sync"

	"github.com/gridmerge/gbtsim/gbt"
	"github.com/gridmerge/gbtsim/internal/drop"
	"github.com/gridmerge/gbtsim/internal/equeue"
)

// routedSink delivers outbound APDUs to whichever Peer it is linked to.
// Indirecting through a settable target avoids giving either Peer a
// pointer to the other at construction time.
type routedSink struct {
	mu     sync.RWMutex
	target *Peer
}

func (s *routedSink) Deliver(apdu gbt.APDU) {
	s.mu.RLock()
	target := s.target
	s.mu.RUnlock()
	if target == nil {
		return
	}
	target.receive(apdu)
}

func (s *routedSink) link(p *Peer) {
	s.mu.Lock()
	s.target = p
	s.mu.Unlock()
}

// Peer runs one role's Engine on a dedicated goroutine, serialized
// through its own inbound event queue.
type Peer struct {
	Name string

	engine     *gbt.Engine
	queue      *equeue.Queue[gbt.Event]
	timer      *oneShotTimer
	dropFilter *drop.Filter
	sink       *routedSink
	logger     gbt.Logger

	onDeliver  func(gbt.APDU)
	onDrop     func(gbt.APDU)
	onComplete func(gbt.CompletionKind)

	wg sync.WaitGroup
}

// New builds a Peer for the given role configuration. dropIndices names
// the zero-based positions, within a transaction's inbound message
// sequence, that should be silently discarded before reaching the
// engine — the simulator's loss-injection hook (spec section 4.8).
func New(cfg gbt.Config, logger gbt.Logger, dropIndices ...int) *Peer {
	p := &Peer{
		Name:       cfg.Role,
		queue:      equeue.New[gbt.Event](),
		dropFilter: drop.New(dropIndices...),
		sink:       &routedSink{},
		logger:     logger,
	}
	p.timer = newOneShotTimer(cfg.Timeout, cfg.TimerEnabled, p.onTimerExpiry)

	eng, err := gbt.NewEngine(cfg, p.sink, p.timer, logger)
	if err != nil {
		// cfg comes from ClientConfig/ServerConfig or a validated caller;
		// a failure here means the simulator itself is misconfigured.
		panic(err)
	}
	eng.OnClearVars(func() { p.dropFilter.Reset() })
	eng.OnComplete(func(kind gbt.CompletionKind) {
		if p.onComplete != nil {
			p.onComplete(kind)
		}
	})
	p.engine = eng
	return p
}

// Link wires two peers to each other's routed sink, so that whatever one
// sends becomes inbound traffic for the other.
func Link(a, b *Peer) {
	a.sink.link(b)
	b.sink.link(a)
}

// OnDeliver registers a callback invoked for every inbound APDU that
// survives the drop filter, right before it is handed to the engine.
func (p *Peer) OnDeliver(fn func(gbt.APDU)) { p.onDeliver = fn }

// OnDrop registers a callback invoked for every inbound APDU the drop
// filter discards.
func (p *Peer) OnDrop(fn func(gbt.APDU)) { p.onDrop = fn }

// OnComplete registers a callback invoked when the underlying engine
// returns to idle having sent or received a full payload.
func (p *Peer) OnComplete(fn func(gbt.CompletionKind)) { p.onComplete = fn }

// receive is called synchronously on the sending peer's own worker
// goroutine (routedSink.Deliver -> target.receive). It only enqueues: the
// drop decision is made later, on this peer's own worker goroutine inside
// Run, so that dropFilter's counter is mutated by exactly one goroutine,
// matching the single-writer-per-peer model spec section 5 requires.
func (p *Peer) receive(apdu gbt.APDU) {
	p.queue.Enqueue(gbt.PeerMsgEvent(apdu))
}

func (p *Peer) onTimerExpiry() {
	p.queue.Enqueue(gbt.TimerExpiryEvent())
}

// Invoke starts a local transfer of payload (ACCESS.request on a client
// peer, ACCESS.response on a server peer). It returns immediately; the
// invocation itself runs on the peer's worker goroutine.
func (p *Peer) Invoke(payload []byte) {
	p.queue.Enqueue(gbt.InvokeEvent(payload))
}

// Engine exposes the underlying engine for tests and diagnostics.
func (p *Peer) Engine() *gbt.Engine { return p.engine }

// Run drains the peer's event queue on the calling goroutine until the
// queue is closed. ctx is not consulted here; Start closes the queue once
// ctx is done. Callers normally invoke this via Start.
//
// The inbound-message drop decision (spec section 4.8) is made here,
// on this peer's own worker goroutine, rather than in receive (which runs
// on whichever peer sent the message) — dropFilter is only ever touched
// from this one goroutine, the same way the engine itself is.
func (p *Peer) Run(ctx context.Context) {
	for {
		ev, ok := p.queue.Dequeue()
		if !ok {
			return
		}
		if ev.Kind == gbt.EventPeerMsg {
			if p.dropFilter.ShouldDrop() {
				if p.onDrop != nil {
					p.onDrop(ev.APDU)
				}
				continue
			}
			if p.onDeliver != nil {
				p.onDeliver(ev.APDU)
			}
		}
		p.engine.HandleEvent(ev)
	}
}

// Start launches the peer's worker goroutine, plus a small watcher that
// closes the inbound queue when ctx is done — Dequeue otherwise blocks
// past cancellation, since it only wakes on a new item or an explicit
// Close.
func (p *Peer) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.Run(ctx)
	}()
	go func() {
		<-ctx.Done()
		p.queue.Close()
	}()
}

// Close stops the timer and closes the inbound queue, then waits for the
// worker goroutine to exit. Safe to call once per peer.
func (p *Peer) Close() {
	p.timer.close()
	p.queue.Close()
	p.wg.Wait()
}
