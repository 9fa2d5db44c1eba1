package track

import "sync"

// heap is the registry of live blocks: an intrusive doubly-linked list
// whose head is the most recently added block.  Insertion and removal
// are O(1) and allocate nothing.  The counters are cumulative; remove
// does not decrement them.
type heap struct {
	mu              sync.Mutex
	head            uintptr
	numAllocations  uint64
	sizeAllocations uint64
}

func (h *heap) add(a *allocation) {
	h.mu.Lock()
	defer h.mu.Unlock()

	a.prev = 0
	a.next = h.head
	if h.head != 0 {
		asAllocation(h.head).prev = a.base()
	}
	h.head = a.base()

	h.numAllocations++
	h.sizeAllocations += uint64(a.size)
}

func (h *heap) remove(a *allocation) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if a.prev != 0 {
		asAllocation(a.prev).next = a.next
	}
	if a.next != 0 {
		asAllocation(a.next).prev = a.prev
	}
	if h.head == a.base() {
		h.head = a.next
	}
}

// begin returns the current head for a reporter pass.
func (h *heap) begin() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.head
}

func (h *heap) totals() (uint64, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.numAllocations, h.sizeAllocations
}

// isCorrupted walks the chain from start and reports whether any node
// lost its head signature.
func (h *heap) isCorrupted(start uintptr) bool {
	for mem := start; mem != 0; {
		a := asAllocation(mem)
		if !a.isOwnSignatureValid() {
			return true
		}
		mem = a.next
	}
	return false
}
