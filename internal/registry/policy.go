package registry

import (
	"sort"
	"time"
)

// Policy decides which registered documents should be evicted.
// It receives a snapshot of all entries and returns the handles to drop.
type Policy interface {
	Evict(entries []*Entry, now time.Time) []string
}

// NoEviction keeps every document until it is removed explicitly.
type NoEviction struct{}

func (NoEviction) Evict([]*Entry, time.Time) []string { return nil }

// TTLPolicy evicts documents that have not been looked up for longer than TTL.
type TTLPolicy struct {
	TTL time.Duration
}

func (p TTLPolicy) Evict(entries []*Entry, now time.Time) []string {
	if p.TTL <= 0 {
		return nil
	}
	var out []string
	for _, e := range entries {
		if now.Sub(e.LastAccess()) > p.TTL {
			out = append(out, e.Handle)
		}
	}
	return out
}

// CapacityPolicy keeps at most Max documents, evicting the least recently used.
// Equal access times fall back to registration order, oldest first.
// Max <= 0 disables the limit.
type CapacityPolicy struct {
	Max int
}

func (p CapacityPolicy) Evict(entries []*Entry, _ time.Time) []string {
	if p.Max <= 0 || len(entries) <= p.Max {
		return nil
	}
	sorted := make([]*Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return olderThan(sorted[i], sorted[j])
	})
	excess := len(sorted) - p.Max
	out := make([]string, 0, excess)
	for _, e := range sorted[:excess] {
		out = append(out, e.Handle)
	}
	return out
}

// Policies evicts the union of what each member policy selects.
type Policies []Policy

func (ps Policies) Evict(entries []*Entry, now time.Time) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range ps {
		for _, h := range p.Evict(entries, now) {
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			out = append(out, h)
		}
	}
	return out
}

// olderThan orders entries by last access, then creation time, then registration sequence.
func olderThan(a, b *Entry) bool {
	if la, lb := a.LastAccess(), b.LastAccess(); !la.Equal(lb) {
		return la.Before(lb)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if a.seq != b.seq {
		return a.seq < b.seq
	}
	return a.Handle < b.Handle
}
