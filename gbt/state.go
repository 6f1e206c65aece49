package gbt

// stateVars holds the {BNA, STR, W} triple for self and peer, plus the
// next unused send block number. It is mutated only by the engine's own
// goroutine; see peer.Peer for the concurrency contract.
type stateVars struct {
	// Self
	bnaSelf uint16
	strSelf bool
	wSelf   uint8

	// Peer (mirror, learned from incoming APDUs)
	bnaPeer uint16
	strPeer bool
	wPeer   uint8

	// Tracking
	nextBN uint16
}

func newStateVars(cfg Config, peerBTW uint8) stateVars {
	return stateVars{
		strSelf: cfg.BTS,
		wSelf:   cfg.BTW,
		wPeer:   peerBTW, // a-priori, bootstrapped from the peer's own BTW
		nextBN:  1,
	}
}
