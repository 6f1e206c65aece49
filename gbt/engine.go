package gbt

import "sort"

// Engine is the per-endpoint GBT state machine described in the DLMS
// Green Book, Ed. 11 section 9.4.6.13. One Engine value, parameterized by
// Config, serves both the client and the server role: see DESIGN.md for
// why this is composition rather than two derived classes.
//
// An Engine is not safe for concurrent use. It is designed to be driven by
// exactly one goroutine via HandleEvent; see package peer for the worker
// that provides this guarantee.
type Engine struct {
	cfg Config

	processing bool
	sq         map[uint16]Block
	rq         map[uint16]Block
	vars       stateVars

	sink  Sink
	timer Timer
	log   Logger

	onComplete func(CompletionKind)
	onClear    func()

	saSCount int
	pgaCount int
	crfCount int
}

// NewEngine builds an Engine for the given role configuration. sink and
// timer must be non-nil; logger may be nil, in which case diagnostics are
// discarded.
func NewEngine(cfg Config, sink Sink, timer Timer, logger Logger) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if sink == nil || timer == nil {
		return nil, ErrInvalidConfig
	}
	if logger == nil {
		logger = noopLogger{}
	}
	e := &Engine{cfg: cfg, sink: sink, timer: timer, log: logger}
	e.clearVars()
	return e, nil
}

// OnComplete registers a callback invoked when the engine returns to Idle
// having either finished sending or finished receiving a full payload.
func (e *Engine) OnComplete(fn func(CompletionKind)) { e.onComplete = fn }

// OnClearVars registers a callback invoked every time ClearVars runs
// (transaction start, transaction end, explicit stop). Peers use this to
// reset their per-transaction message-drop counters in lock-step with the
// engine, matching the original's ClearVars resetting msgCount.
func (e *Engine) OnClearVars(fn func()) { e.onClear = fn }

// Processing reports whether the engine is currently running a
// transaction (bGBTProcessing in the spec).
func (e *Engine) Processing() bool { return e.processing }

// Role returns the configured role label ("CLT" or "SVR").
func (e *Engine) Role() string { return e.cfg.Role }

// SQLen and RQLen expose queue sizes for tests and diagnostics.
func (e *Engine) SQLen() int { return len(e.sq) }
func (e *Engine) RQLen() int { return len(e.rq) }

// RQBlocks returns the receive queue's blocks in ascending BN order.
func (e *Engine) RQBlocks() []Block {
	keys := sortedKeys(e.rq)
	out := make([]Block, 0, len(keys))
	for _, k := range keys {
		out = append(out, e.rq[k])
	}
	return out
}

// SQBlockNumbers returns the send queue's block numbers in ascending order.
func (e *Engine) SQBlockNumbers() []uint16 { return sortedKeys(e.sq) }

// BNASelf exposes the self BNA state variable (testable property #3 in the
// spec references it directly).
func (e *Engine) BNASelf() uint16 { return e.vars.bnaSelf }

// HandleEvent is the engine's single entry point; see package peer for the
// worker loop that dequeues events and calls this method.
func (e *Engine) HandleEvent(ev Event) {
	switch ev.Kind {
	case EventInvoke:
		e.invoke(ev.Payload)
	case EventPeerMsg:
		e.handlePeerMsg(ev.APDU)
	case EventTimerExpiry:
		e.log.Debugf("[%s] timer expired", e.cfg.Role)
		e.checkRQAndFillGaps()
	}
}

func (e *Engine) handlePeerMsg(apdu APDU) {
	if !e.processing {
		if apdu.BD == nil {
			// Not yet started and nothing to start with; silently
			// ignore, this is not an error (spec section 7).
			return
		}
		e.log.Debugf("[%s] new stream from peer", e.cfg.Role)
		e.startGBT()
	}
	e.processGBTAPDU(apdu)
}

func (e *Engine) invoke(payload []byte) {
	e.startGBT()
	e.fillSQ(payload)
	e.sendGBTAPDUStream()
}

// startGBT resets all state and enables processing.
func (e *Engine) startGBT() {
	e.clearVars()
	e.processing = true
}

// stopGBT resets all state and disables processing. Idempotent: calling
// it from a sub-procedure that is itself guarded by `processing` is a
// no-op in effect, since clearVars always runs but processing is already
// false on the guard's next check.
func (e *Engine) stopGBT() {
	e.clearVars()
	e.processing = false
}

func (e *Engine) clearVars() {
	e.vars = newStateVars(e.cfg, e.cfg.PeerBTW)
	e.sq = make(map[uint16]Block)
	e.rq = make(map[uint16]Block)
	if e.onClear != nil {
		e.onClear()
	}
}

// fillSQ slices payload into blocks of at most cfg.MaxPayload bytes,
// numbered from 1, with LB set on the final block. A zero-length payload
// creates no block; SendGBTAPDUStream synthesizes a single empty LB block
// for that case (spec section 4.3, preserving the documented ambiguity
// rather than silently fixing it).
func (e *Engine) fillSQ(payload []byte) {
	if len(payload) == 0 {
		e.vars.nextBN = 1
		return
	}
	start := 0
	length := len(payload)
	bn := uint16(1)
	for length > e.cfg.MaxPayload {
		e.sq[bn] = Block{LB: false, BN: bn, BD: payload[start : start+e.cfg.MaxPayload]}
		start += e.cfg.MaxPayload
		length -= e.cfg.MaxPayload
		bn++
	}
	e.sq[bn] = Block{LB: true, BN: bn, BD: payload[start : start+length]}
	e.vars.nextBN = bn + 1
}

// sendGBTAPDUStream emits up to Wpeer consecutive blocks from SQ, starting
// at the lowest BN, per spec section 4.4.
func (e *Engine) sendGBTAPDUStream() {
	if !e.processing {
		return
	}
	e.saSCount++
	e.log.Debugf("[%s] SAS [%d] send GBT APDU stream", e.cfg.Role, e.saSCount)

	if len(e.sq) == 0 {
		bn := e.vars.nextBN
		e.log.Debugf("[%s] SAS [%d] add single ack-only block BN=%d", e.cfg.Role, e.saSCount, bn)
		e.sq[bn] = Block{LB: true, BN: bn}
		e.vars.nextBN = bn + 1
	}

	keys := sortedKeys(e.sq)
	sent := 0
	for _, bn := range keys {
		blk := e.sq[bn]
		apdu := apduFromBlock(blk)

		endOfWindow := bn == keys[len(keys)-1] ||
			sent == int(e.vars.wPeer)-1 ||
			blk.LB

		if endOfWindow {
			apdu.STR = false
		} else {
			apdu.STR = e.vars.strSelf
		}
		apdu.W = e.vars.wSelf
		apdu.BNA = e.vars.bnaSelf

		if apdu.BN > e.cfg.RunawayThreshold {
			e.log.Warnf("[%s] runaway, BN=%d exceeds threshold %d", e.cfg.Role, apdu.BN, e.cfg.RunawayThreshold)
		}
		e.log.Debugf("[%s] SAS [%d] sending %s", e.cfg.Role, e.saSCount, apdu)
		e.sink.Deliver(apdu)
		sent++

		if !apdu.STR {
			e.log.Debugf("[%s] SAS [%d] end of window", e.cfg.Role, e.saSCount)
			e.timer.Start()
			break
		}
	}
}

// processGBTAPDU handles a received APDU Gr, per spec section 4.5.
func (e *Engine) processGBTAPDU(gr APDU) {
	if !e.processing {
		return
	}
	e.pgaCount++
	e.log.Debugf("[%s] PGA [%d] process GBT APDU %s", e.cfg.Role, e.pgaCount, gr)

	if !gr.STR {
		e.timer.Stop()
	}

	if gr.BN == 1 && gr.BNA == 0 {
		e.log.Debugf("[%s] PGA [%d] initialising BNAself, STRself, Wself", e.cfg.Role, e.pgaCount)
		e.vars.bnaSelf = 0
		e.vars.strSelf = e.cfg.BTS
		e.vars.wSelf = e.cfg.BTW
	}

	if gr.LB && gr.STR {
		e.log.Warnf("[%s] PGA [%d] incoherent fields: LB and STR both set", e.cfg.Role, e.pgaCount)
	}

	e.vars.strPeer = gr.STR

	if gr.BN > e.vars.bnaSelf {
		if _, ok := e.rq[gr.BN]; !ok {
			e.log.Debugf("[%s] PGA [%d] adding BN=%d to RQ", e.cfg.Role, e.pgaCount, gr.BN)
			e.rq[gr.BN] = Block{LB: gr.LB, BN: gr.BN, BD: gr.BD}
		}
	}

	e.vars.wPeer = gr.W
	e.vars.bnaPeer = gr.BNA
	e.log.Debugf("[%s] PGA [%d] Wpeer=%d, BNApeer=%d", e.cfg.Role, e.pgaCount, gr.W, gr.BNA)

	var prevBlk *Block
	for _, bn := range sortedKeys(e.sq) {
		if bn > e.vars.bnaPeer {
			break
		}
		e.log.Debugf("[%s] PGA [%d] removing BN=%d from SQ", e.cfg.Role, e.pgaCount, bn)
		blk := e.sq[bn]
		delete(e.sq, bn)
		prevBlk = &blk
	}

	windowFinished := !e.vars.strPeer

	if len(e.sq) == 0 && prevBlk != nil && prevBlk.BD != nil {
		e.log.Debugf("[%s] PGA [%d] finished sending stream", e.cfg.Role, e.pgaCount)
		e.timer.Stop()
		e.stopGBT()
		if e.onComplete != nil {
			e.onComplete(CompletionSentStream)
		}
		return
	}
	if windowFinished {
		e.checkRQAndFillGaps()
	}
}

// checkRQAndFillGaps runs at the end of every received window, per spec
// section 4.6.
func (e *Engine) checkRQAndFillGaps() {
	if !e.processing {
		return
	}
	e.crfCount++
	e.log.Debugf("[%s] CRF [%d] check RQ and fill gaps", e.cfg.Role, e.crfCount)

	bns := sortedKeys(e.rq)
	if len(bns) == 0 {
		e.log.Debugf("[%s] CRF [%d] RQ empty", e.cfg.Role, e.crfCount)
		e.vars.wSelf = e.cfg.BTW
		e.sendGBTAPDUStream()
		e.timer.Start()
		return
	}

	bnCheck := uint16(0)
	gap := false
	gapSize := uint16(0)
	last := bnCheck
	for _, bn := range bns {
		gapSize = bn - bnCheck
		if gapSize > 1 {
			gap = true
			break
		}
		bnCheck = bn
		last = bn
	}

	if gap {
		e.vars.bnaSelf = bnCheck
		e.vars.wSelf = uint8(gapSize - 1)
		e.log.Debugf("[%s] CRF [%d] gap, BNAself=%d Wself=%d", e.cfg.Role, e.crfCount, e.vars.bnaSelf, e.vars.wSelf)
		e.sendGBTAPDUStream()
		e.timer.Start()
		return
	}

	e.vars.bnaSelf = last
	e.vars.wSelf = e.cfg.BTW
	e.log.Debugf("[%s] CRF [%d] no gap, BNAself=%d Wself=%d", e.cfg.Role, e.crfCount, e.vars.bnaSelf, e.vars.wSelf)
	e.sendGBTAPDUStream()

	top := e.rq[bns[len(bns)-1]]
	if top.LB && top.BD != nil {
		e.log.Debugf("[%s] CRF [%d] finished receiving stream", e.cfg.Role, e.crfCount)
		e.timer.Stop()
		e.stopGBT()
		if e.onComplete != nil {
			e.onComplete(CompletionReceivedStream)
		}
		return
	}
	e.timer.Start()
}

func sortedKeys(m map[uint16]Block) []uint16 {
	keys := make([]uint16, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
