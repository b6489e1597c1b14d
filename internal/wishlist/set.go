// Package wishlist keeps a subject's liked products: a local cache updated
// optimistically and a server mirror that is the source of truth across devices.
package wishlist

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Entry is a wishlist member with the product snapshot taken when it was added.
type Entry struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ImageRef  string          `json:"image_ref"`
	AddedAt   time.Time       `json:"added_at"`
}

// Set is a membership set ordered by insertion. It has no quantity semantics.
type Set struct {
	entries []Entry
	index   map[string]int
}

// NewSet builds a set; duplicate product ids keep the first entry.
func NewSet(entries ...Entry) *Set {
	s := &Set{index: make(map[string]int)}
	for _, e := range entries {
		s.Add(e)
	}
	return s
}

// Toggle flips membership for entry.ProductID and reports whether it is now a member.
func (s *Set) Toggle(entry Entry) bool {
	if s.Has(entry.ProductID) {
		s.Remove(entry.ProductID)
		return false
	}
	return s.Add(entry)
}

// Has reports membership.
func (s *Set) Has(productID string) bool {
	_, ok := s.index[productID]
	return ok
}

// Add inserts entry when absent. It reports whether the product is a member afterwards.
func (s *Set) Add(entry Entry) bool {
	entry.ProductID = strings.TrimSpace(entry.ProductID)
	if entry.ProductID == "" {
		return false
	}
	if s.Has(entry.ProductID) {
		return true
	}
	s.index[entry.ProductID] = len(s.entries)
	s.entries = append(s.entries, entry)
	return true
}

// Remove deletes the product if present.
func (s *Set) Remove(productID string) {
	i, ok := s.index[productID]
	if !ok {
		return
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	s.index = make(map[string]int, len(s.entries))
	for j, e := range s.entries {
		s.index[e.ProductID] = j
	}
}

// Items returns a copy of the members in insertion order.
func (s *Set) Items() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Set) Len() int {
	return len(s.entries)
}
