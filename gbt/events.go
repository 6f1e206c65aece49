package gbt

// EventKind tags the three kinds of event the engine's HandleEvent
// accepts. Tagged variants are preferred here over late-bound method
// dispatch (see DESIGN.md, "Design notes" section).
type EventKind int

const (
	// EventPeerMsg carries an APDU received from the peer.
	EventPeerMsg EventKind = iota
	// EventInvoke carries a local invocation payload (ACCESS.request on
	// the client, ACCESS.response on the server).
	EventInvoke
	// EventTimerExpiry carries no data; it signals the one-shot timer
	// fired.
	EventTimerExpiry
)

// Event is the single type flowing through a peer's inbound queue.
type Event struct {
	Kind    EventKind
	APDU    APDU
	Payload []byte
}

// PeerMsgEvent wraps an APDU received from the peer.
func PeerMsgEvent(apdu APDU) Event {
	return Event{Kind: EventPeerMsg, APDU: apdu}
}

// InvokeEvent wraps a local invocation payload.
func InvokeEvent(payload []byte) Event {
	return Event{Kind: EventInvoke, Payload: payload}
}

// TimerExpiryEvent signals that the one-shot timer expired.
func TimerExpiryEvent() Event {
	return Event{Kind: EventTimerExpiry}
}
