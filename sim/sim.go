// Package sim wires a client peer and a server peer together into one
// runnable simulation, the top-level object both cmd/gbtsim and the
// integration tests drive.
package sim

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gridmerge/gbtsim/gbt"
	"github.com/gridmerge/gbtsim/logsink"
	"github.com/gridmerge/gbtsim/peer"
)

// Options configures a Simulator at construction time.
type Options struct {
	DropClient    []int
	DropServer    []int
	ClientTimeout time.Duration
	ServerTimeout time.Duration
	MaxPayload    int
	Sink          *logsink.Sink
}

// Simulator owns a linked client/server peer pair and the logging sink
// they report through.
type Simulator struct {
	Client *peer.Peer
	Server *peer.Peer

	sink   *logsink.Sink
	cancel context.CancelFunc
}

// New builds a Simulator. If opts.Sink is nil, delivered and dropped APDUs
// are not recorded anywhere. Engine diagnostics always go to a default
// logrus logger, never to the Sink.
func New(opts Options) *Simulator {
	log := logrus.NewEntry(logrus.New())

	clientOpts := []peer.Option{peer.WithDrops(opts.DropClient...)}
	serverOpts := []peer.Option{peer.WithDrops(opts.DropServer...)}
	if opts.MaxPayload > 0 {
		clientOpts = append(clientOpts, peer.WithMaxPayload(opts.MaxPayload))
		serverOpts = append(serverOpts, peer.WithMaxPayload(opts.MaxPayload))
	}
	if opts.ClientTimeout > 0 {
		clientOpts = append(clientOpts, peer.WithTimeout(opts.ClientTimeout))
	}
	if opts.ServerTimeout > 0 {
		serverOpts = append(serverOpts, peer.WithTimeout(opts.ServerTimeout))
	}

	client := peer.NewClient(log, clientOpts...)
	server := peer.NewServer(log, serverOpts...)
	peer.Link(client, server)

	s := &Simulator{Client: client, Server: server, sink: opts.Sink}
	if s.sink != nil {
		client.OnDeliver(func(a gbt.APDU) { s.sink.Deliver("CLT", "SVR", a) })
		client.OnDrop(func(a gbt.APDU) { s.sink.Drop("CLT", "SVR", a) })
		server.OnDeliver(func(a gbt.APDU) { s.sink.Deliver("SVR", "CLT", a) })
		server.OnDrop(func(a gbt.APDU) { s.sink.Drop("SVR", "CLT", a) })
	}
	return s
}

// Start launches both peers' worker goroutines.
func (s *Simulator) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.Client.Start(ctx)
	s.Server.Start(ctx)
}

// InvokeClientRequest starts a client-initiated transfer (ACCESS.request).
func (s *Simulator) InvokeClientRequest(payload []byte) {
	s.Client.Invoke(payload)
}

// InvokeServerResponse starts a server-initiated transfer (ACCESS.response).
func (s *Simulator) InvokeServerResponse(payload []byte) {
	s.Server.Invoke(payload)
}

// WaitServerReceived blocks until the server engine finishes receiving a
// stream, or timeout elapses, returning false on timeout.
func (s *Simulator) WaitServerReceived(timeout time.Duration) bool {
	return waitFor(s.Server, gbt.CompletionReceivedStream, timeout)
}

// WaitClientReceived blocks until the client engine finishes receiving a
// stream (a server-initiated transfer), or timeout elapses.
func (s *Simulator) WaitClientReceived(timeout time.Duration) bool {
	return waitFor(s.Client, gbt.CompletionReceivedStream, timeout)
}

func waitFor(p *peer.Peer, want gbt.CompletionKind, timeout time.Duration) bool {
	done := make(chan gbt.CompletionKind, 1)
	p.OnComplete(func(k gbt.CompletionKind) { done <- k })
	select {
	case k := <-done:
		return k == want
	case <-time.After(timeout):
		return false
	}
}

// Stop cancels both peers' worker goroutines and drains the sink.
func (s *Simulator) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.Client.Close()
	s.Server.Close()
	if s.sink != nil {
		s.sink.Close()
	}
}
