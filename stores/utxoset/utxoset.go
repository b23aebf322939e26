// Package utxoset holds the in-memory set of unspent outputs built during replay.
package utxoset

import (
	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/model"
	"github.com/dolthub/swiss"
)

// Entry is the payload stored per unspent output.
type Entry struct {
	Height   uint32
	Value    uint64
	Address  string
	Coinbase bool
}

// Set maps outpoint keys to entries. It is not safe for concurrent use.
type Set struct {
	m *swiss.Map[model.Key, Entry]
}

// New returns an empty set pre-sized for expectedSize entries.
func New(expectedSize uint32) *Set {
	// the swiss map uses a lot less memory than the standard map
	return &Set{
		m: swiss.NewMap[model.Key, Entry](expectedSize),
	}
}

// Add inserts a new entry. Inserting over a live key fails with ERR_UTXO_COLLISION
// and leaves the live entry untouched.
func (s *Set) Add(key model.Key, entry Entry) error {
	if existing, ok := s.m.Get(key); ok {
		return errors.NewUtxoCollisionError(key.String(), existing.Height, entry.Height)
	}

	s.m.Put(key, entry)

	return nil
}

// Replace overwrites the entry for key and returns the previous one, if any.
func (s *Set) Replace(key model.Key, entry Entry) (Entry, bool) {
	previous, ok := s.m.Get(key)

	s.m.Put(key, entry)

	return previous, ok
}

// Spend removes key and reports whether it was present. Spending an absent key is a no-op.
func (s *Set) Spend(key model.Key) bool {
	return s.m.Delete(key)
}

func (s *Set) Get(key model.Key) (Entry, bool) {
	return s.m.Get(key)
}

func (s *Set) Has(key model.Key) bool {
	return s.m.Has(key)
}

func (s *Set) Len() int {
	return s.m.Count()
}

// Iterate calls fn for every entry in unspecified order until fn returns false.
// fn must not modify the set.
func (s *Set) Iterate(fn func(key model.Key, entry Entry) bool) {
	s.m.Iter(func(k model.Key, v Entry) bool {
		return !fn(k, v)
	})
}
