package reports

import (
	"slices"

	"financify/internal/core"
)

// Buckets groups statements by month, keeping each bucket in input order.
type Buckets struct {
	keys  []core.MonthKey
	items map[core.MonthKey][]core.Statement
}

// BucketByMonth groups statements by their "YYYY-MM" key. Input is expected
// to be sorted by date; order within a bucket follows input order.
func BucketByMonth(statements []core.Statement) *Buckets {
	b := &Buckets{items: make(map[core.MonthKey][]core.Statement)}
	for _, s := range statements {
		key := s.Date.MonthKey()
		if _, ok := b.items[key]; !ok {
			b.keys = append(b.keys, key)
		}
		b.items[key] = append(b.items[key], s)
	}
	return b
}

// Get returns the statements of a month, or nil when the month has none.
func (b *Buckets) Get(key core.MonthKey) []core.Statement {
	return b.items[key]
}

// Keys returns the month keys in ascending order.
func (b *Buckets) Keys() []core.MonthKey {
	keys := slices.Clone(b.keys)
	slices.Sort(keys)
	return keys
}

// UnionKeys merges the keys of several bucket sets, ascending, without
// duplicates.
func UnionKeys(sets ...*Buckets) []core.MonthKey {
	var keys []core.MonthKey
	for _, s := range sets {
		keys = append(keys, s.keys...)
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

// SortByDate sorts statements ascending by date. Ties keep read order.
func SortByDate(statements []core.Statement) {
	slices.SortStableFunc(statements, func(a, b core.Statement) int {
		return a.Date.Compare(b.Date.Time)
	})
}
