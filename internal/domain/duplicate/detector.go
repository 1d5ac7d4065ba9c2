// Package duplicate tracks invoice numbers seen within one batch
package duplicate

import "sync"

// Detector is the batch-scoped set of invoice numbers already observed.
// Seen is a compare-and-insert, so concurrent callers agree on which
// occurrence came first.
type Detector struct {
	mu   sync.Mutex
	seen map[string]int
}

// NewDetector creates an empty detector for one batch
func NewDetector() *Detector {
	return &Detector{seen: make(map[string]int)}
}

// Seen reports whether the invoice number was already registered and
// registers it if not. Empty numbers are never duplicates.
func (d *Detector) Seen(invoiceNumber string) bool {
	if invoiceNumber == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.seen[invoiceNumber]++
	return d.seen[invoiceNumber] > 1
}

// Occurrences returns how many times the invoice number was offered
func (d *Detector) Occurrences(invoiceNumber string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[invoiceNumber]
}

// Len returns the number of distinct invoice numbers registered
func (d *Detector) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
