package journal

// DefaultDepth is the number of committed transactions kept for reversal
// when the caller doesn't ask for a different depth.
const DefaultDepth = 10

// History is the bounded list of committed transactions, oldest first.
// Pushing beyond the capacity evicts the oldest transaction, which can
// never be reverted again.
type History[S any, K comparable] struct {
	capacity int
	txs      []*Transaction[S, K]
}

// NewHistory constructs a history holding at most capacity transactions.
// A capacity below 1 uses DefaultDepth.
func NewHistory[S any, K comparable](capacity int) *History[S, K] {
	if capacity < 1 {
		capacity = DefaultDepth
	}

	return &History[S, K]{
		capacity: capacity,
		txs:      make([]*Transaction[S, K], 0, capacity),
	}
}

// Push appends tx as the newest transaction and returns the transaction
// evicted to make room for it, if any.
func (h *History[S, K]) Push(tx *Transaction[S, K]) *Transaction[S, K] {
	var evicted *Transaction[S, K]
	if len(h.txs) == h.capacity {
		evicted = h.txs[0]
		copy(h.txs, h.txs[1:])
		h.txs = h.txs[:len(h.txs)-1]
	}

	h.txs = append(h.txs, tx)
	return evicted
}

// Find returns the newest transaction with the specified number.
func (h *History[S, K]) Find(number uint64) (*Transaction[S, K], bool) {
	for i := len(h.txs) - 1; i >= 0; i-- {
		if h.txs[i].number == number {
			return h.txs[i], true
		}
	}

	return nil, false
}

// Newest returns the most recently pushed transaction.
func (h *History[S, K]) Newest() (*Transaction[S, K], bool) {
	if len(h.txs) == 0 {
		return nil, false
	}

	return h.txs[len(h.txs)-1], true
}

// PopNewest removes the most recently pushed transaction.
func (h *History[S, K]) PopNewest() (*Transaction[S, K], bool) {
	tx, ok := h.Newest()
	if !ok {
		return nil, false
	}

	h.txs[len(h.txs)-1] = nil
	h.txs = h.txs[:len(h.txs)-1]
	return tx, true
}

// Len returns the number of transactions held.
func (h *History[S, K]) Len() int {
	return len(h.txs)
}

// Capacity returns the maximum number of transactions held.
func (h *History[S, K]) Capacity() int {
	return h.capacity
}

// Numbers returns the transaction numbers, oldest first.
func (h *History[S, K]) Numbers() []uint64 {
	nums := make([]uint64, len(h.txs))
	for i, tx := range h.txs {
		nums[i] = tx.number
	}

	return nums
}

// Reset drops every transaction.
func (h *History[S, K]) Reset() {
	clear(h.txs)
	h.txs = h.txs[:0]
}
