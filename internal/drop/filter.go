// Package drop implements the deterministic inbound-message loss filter
// used to exercise the engine's gap-recovery path (spec section 4.8).
package drop

// Filter decides, by message index within the current transaction,
// whether an inbound APDU should be discarded before it ever reaches
// ProcessGBTAPDU. It is not safe for concurrent use; callers serialize
// access to it the same way they serialize access to the engine it
// guards.
type Filter struct {
	indices map[int]bool
	count   int
}

// New builds a Filter that drops the inbound messages at the given
// zero-based indices (first message received in a transaction is index 0).
func New(indices ...int) *Filter {
	f := &Filter{indices: make(map[int]bool, len(indices))}
	for _, i := range indices {
		f.indices[i] = true
	}
	return f
}

// ShouldDrop reports whether the next inbound message should be dropped,
// and advances the internal counter regardless of the answer.
func (f *Filter) ShouldDrop() bool {
	i := f.count
	f.count++
	return f.indices[i]
}

// Reset zeroes the message counter. Wired to Engine.OnClearVars so the
// index space restarts with each new transaction, matching the original
// msgCount reset in ClearVars.
func (f *Filter) Reset() {
	f.count = 0
}

// Count reports how many messages have been evaluated since the last Reset.
func (f *Filter) Count() int {
	return f.count
}
