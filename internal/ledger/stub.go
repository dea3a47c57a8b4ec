package ledger

import (
	"context"
	"fmt"
	"sync"
)

// Stub is the deterministic in-process backend for tests and offline
// operation. Every call succeeds; tx refs are a simple counter.
type Stub struct {
	mu    sync.Mutex
	seq   int
	stock map[string]int
}

func NewStub() *Stub {
	return &Stub{stock: map[string]int{}}
}

func (s *Stub) next() string {
	s.seq++
	return fmt.Sprintf("stub-tx-%06d", s.seq)
}

func (s *Stub) RegisterProduct(_ context.Context, productID, _ string, initialStock int) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[productID] = initialStock
	return Result{Success: true, TxRef: s.next()}
}

func (s *Stub) UpdateStock(_ context.Context, productID string, newStock int) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[productID] = newStock
	return Result{Success: true, TxRef: s.next()}
}

func (s *Stub) ReserveStock(_ context.Context, productID string, qty int) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[productID] -= qty
	return Result{Success: true, TxRef: s.next()}
}

func (s *Stub) GetStock(_ context.Context, productID string) (int, Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[productID], Result{Success: true}
}

// Calls reports how many mutating calls the stub has served.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}
