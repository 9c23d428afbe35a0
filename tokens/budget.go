package tokens

// Budget carries the configured ceilings for one request and a running
// consumed total. Scoped to a single request; never shared.
type Budget struct {
	// MaxMemory bounds the memory region (hot + warm + summary).
	MaxMemory int

	// MaxPrompt bounds the full assembled prompt.
	MaxPrompt int

	consumed int
}

// NewBudget creates a budget with the given ceilings.
func NewBudget(maxMemory, maxPrompt int) *Budget {
	return &Budget{MaxMemory: maxMemory, MaxPrompt: maxPrompt}
}

// Spend records n consumed tokens and returns the new total.
func (b *Budget) Spend(n int) int {
	b.consumed += n
	return b.consumed
}

// Consumed returns the running total.
func (b *Budget) Consumed() int {
	return b.consumed
}

// Reset clears the running total, keeping the ceilings.
func (b *Budget) Reset() {
	b.consumed = 0
}

// FitsMemory reports whether n tokens fit the memory-region ceiling.
func (b *Budget) FitsMemory(n int) bool {
	return n <= b.MaxMemory
}

// FitsPrompt reports whether n tokens fit the full-prompt ceiling.
func (b *Budget) FitsPrompt(n int) bool {
	return n <= b.MaxPrompt
}
