package ledger

import (
	"context"
	"testing"
)

func TestStubRegisterAndGet(t *testing.T) {
	s := NewStub()
	ctx := context.Background()

	res := s.RegisterProduct(ctx, "p1", "Widget", 10)
	if !res.Success {
		t.Fatalf("register failed: %s", res.Error)
	}
	if res.TxRef != "stub-tx-000001" {
		t.Errorf("tx ref = %q, want deterministic counter", res.TxRef)
	}

	n, r := s.GetStock(ctx, "p1")
	if !r.Success || n != 10 {
		t.Errorf("GetStock = %d, %+v", n, r)
	}
}

func TestStubReserveAndUpdate(t *testing.T) {
	s := NewStub()
	ctx := context.Background()
	s.RegisterProduct(ctx, "p1", "Widget", 10)

	res := s.ReserveStock(ctx, "p1", 4)
	if !res.Success || res.TxRef != "stub-tx-000002" {
		t.Fatalf("reserve: %+v", res)
	}
	if n, _ := s.GetStock(ctx, "p1"); n != 6 {
		t.Errorf("stock after reserve = %d, want 6", n)
	}

	res = s.UpdateStock(ctx, "p1", 42)
	if !res.Success {
		t.Fatalf("update: %+v", res)
	}
	if n, _ := s.GetStock(ctx, "p1"); n != 42 {
		t.Errorf("stock after update = %d, want 42", n)
	}
	if s.Calls() != 3 {
		t.Errorf("mutating calls = %d, want 3", s.Calls())
	}
}
