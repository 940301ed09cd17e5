// Package memstore keeps the production collections in process memory.
// It backs unit tests and single-process dry runs.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/m3rciful/shiftbot/internal/production"
)

// Store implements production.Store over plain maps.
type Store struct {
	mu sync.RWMutex

	plans     map[string]production.Plan
	orders    map[string]production.Order
	bundles   map[string]production.Bundle
	products  map[string]production.Product
	operators map[string]production.Operator
	shifts    map[string]production.ShiftEntry
	progress  map[string]production.ProgressEntry
	lines     map[string]production.ProductionLine
	idles     map[string]production.IdleEntry
	accounts  map[string]production.Account

	txMu sync.Mutex
}

func New() *Store {
	return &Store{
		plans:     map[string]production.Plan{},
		orders:    map[string]production.Order{},
		bundles:   map[string]production.Bundle{},
		products:  map[string]production.Product{},
		operators: map[string]production.Operator{},
		shifts:    map[string]production.ShiftEntry{},
		progress:  map[string]production.ProgressEntry{},
		lines:     map[string]production.ProductionLine{},
		idles:     map[string]production.IdleEntry{},
		accounts:  map[string]production.Account{},
	}
}

// Tx serialises transactions and restores a snapshot when fn fails.
func (s *Store) Tx(_ context.Context, fn func(production.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(txStore{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// txStore runs nested Tx calls inline.
type txStore struct {
	*Store
}

func (t txStore) Tx(_ context.Context, fn func(production.Store) error) error {
	return fn(t)
}

type snapshot struct {
	plans     map[string]production.Plan
	orders    map[string]production.Order
	bundles   map[string]production.Bundle
	products  map[string]production.Product
	operators map[string]production.Operator
	shifts    map[string]production.ShiftEntry
	progress  map[string]production.ProgressEntry
	lines     map[string]production.ProductionLine
	idles     map[string]production.IdleEntry
	accounts  map[string]production.Account
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{
		plans:     maps.Clone(s.plans),
		orders:    maps.Clone(s.orders),
		bundles:   maps.Clone(s.bundles),
		products:  maps.Clone(s.products),
		operators: maps.Clone(s.operators),
		shifts:    maps.Clone(s.shifts),
		progress:  maps.Clone(s.progress),
		lines:     maps.Clone(s.lines),
		idles:     maps.Clone(s.idles),
		accounts:  maps.Clone(s.accounts),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reset(s.plans, snap.plans)
	reset(s.orders, snap.orders)
	reset(s.bundles, snap.bundles)
	reset(s.products, snap.products)
	reset(s.operators, snap.operators)
	reset(s.shifts, snap.shifts)
	reset(s.progress, snap.progress)
	reset(s.lines, snap.lines)
	reset(s.idles, snap.idles)
	reset(s.accounts, snap.accounts)
}

func reset[T any](dst, src map[string]T) {
	clear(dst)
	maps.Copy(dst, src)
}

// table is the generic Find/Save/Delete shared by every repository.
type table[T any] struct {
	s    *Store
	rows map[string]T
	id   func(T) string
	kind string
}

func (t table[T]) Find(_ context.Context, id string) (T, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	v, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %s: %w", t.kind, id, production.ErrNotFound)
	}
	return v, nil
}

func (t table[T]) Save(_ context.Context, v T) error {
	id := t.id(v)
	if id == "" {
		return fmt.Errorf("%s: empty id", t.kind)
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.rows[id] = v
	return nil
}

func (t table[T]) Delete(_ context.Context, id string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.rows[id]; !ok {
		return fmt.Errorf("%s %s: %w", t.kind, id, production.ErrNotFound)
	}
	delete(t.rows, id)
	return nil
}

// where returns the rows accepted by keep, sorted by cmpFn.
func (t table[T]) where(keep func(T) bool, cmpFn func(a, b T) int) []T {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	out := make([]T, 0)
	for _, v := range t.rows {
		if keep(v) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, cmpFn)
	return out
}

// latest returns the matching row with the greatest start time. On equal
// starts an open row wins.
func latest[T any](t table[T], keep func(T) bool, start func(T) time.Time, open func(T) bool) (T, error) {
	rows := t.where(keep, func(a, b T) int {
		if c := start(a).Compare(start(b)); c != 0 {
			return c
		}
		switch {
		case open(a) == open(b):
			return 0
		case open(a):
			return 1
		default:
			return -1
		}
	})
	if len(rows) == 0 {
		var zero T
		return zero, fmt.Errorf("%s: %w", t.kind, production.ErrNotFound)
	}
	return rows[len(rows)-1], nil
}

func bySeq[T any](seq func(T) int) func(a, b T) int {
	return func(a, b T) int { return cmp.Compare(seq(a), seq(b)) }
}
