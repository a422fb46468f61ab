package session

// nonceSet remembers the most recent nonces, evicting the oldest.
type nonceSet struct {
	ring []string
	next int
	seen map[string]struct{}
}

func newNonceSet(size int) *nonceSet {
	if size <= 0 {
		size = DefaultNonceMemory
	}
	return &nonceSet{
		ring: make([]string, size),
		seen: make(map[string]struct{}, size),
	}
}

// Add records nonce and reports whether it was new. The empty nonce is
// never recorded.
func (n *nonceSet) Add(nonce string) bool {
	if nonce == "" {
		return true
	}
	if _, ok := n.seen[nonce]; ok {
		return false
	}
	if old := n.ring[n.next]; old != "" {
		delete(n.seen, old)
	}
	n.ring[n.next] = nonce
	n.next = (n.next + 1) % len(n.ring)
	n.seen[nonce] = struct{}{}
	return true
}

func (n *nonceSet) Reset() {
	for i := range n.ring {
		n.ring[i] = ""
	}
	n.next = 0
	clear(n.seen)
}
