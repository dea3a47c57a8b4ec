package orders

import (
	"errors"
	"testing"
	"time"
)

func fixedMachine(now time.Time) *Machine {
	return &Machine{
		Now:  func() time.Time { return now },
		IntN: func(n int) int { return 0 },
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusShipped, false},
		{StatusPending, StatusDelivered, false},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusProcessing, StatusDelivered, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusPending, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusProcessing, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.ok {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []Status{StatusDelivered, StatusCancelled} {
		if !IsTerminal(s) {
			t.Errorf("%s should be terminal", s)
		}
		for _, to := range []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled} {
			if CanTransition(s, to) {
				t.Errorf("terminal %s must not allow transition to %s", s, to)
			}
		}
	}
}

func TestNewOrderStartsPending(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := fixedMachine(now)
	o := m.NewOrder("o1", "buyer", "seller", []OrderItem{{ProductID: "p1", Qty: 2, PriceCents: 500}}, 1000, "addr", PaymentCard)

	if o.Status != StatusPending {
		t.Fatalf("status = %s, want pending", o.Status)
	}
	if len(o.StatusHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(o.StatusHistory))
	}
	if o.StatusHistory[0].Status != StatusPending || !o.StatusHistory[0].At.Equal(now) {
		t.Errorf("unexpected first history entry: %+v", o.StatusHistory[0])
	}
}

func TestTransitionAppendsHistory(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := fixedMachine(now)
	o := m.NewOrder("o1", "b", "s", nil, 0, "", PaymentCOD)

	if err := m.Transition(o, StatusProcessing, "accepted"); err != nil {
		t.Fatal(err)
	}
	if o.Status != StatusProcessing {
		t.Errorf("status = %s", o.Status)
	}
	if len(o.StatusHistory) != 2 {
		t.Fatalf("history length = %d, want 2", len(o.StatusHistory))
	}
	last := o.StatusHistory[1]
	if last.Status != StatusProcessing || last.Notes != "accepted" {
		t.Errorf("unexpected history entry: %+v", last)
	}
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	m := fixedMachine(time.Now())
	o := m.NewOrder("o1", "b", "s", nil, 0, "", PaymentCOD)

	err := m.Transition(o, StatusDelivered, "")
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}
	if ite.From != StatusPending || ite.To != StatusDelivered {
		t.Errorf("unexpected error detail: %+v", ite)
	}
	if o.Status != StatusPending || len(o.StatusHistory) != 1 {
		t.Errorf("order mutated by rejected transition")
	}
}

func TestShippedSetsEstimatedDelivery(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for intn := 0; intn < 5; intn++ {
		m := fixedMachine(now)
		m.IntN = func(n int) int { return intn }
		o := m.NewOrder("o1", "b", "s", nil, 0, "", PaymentCOD)
		_ = m.Transition(o, StatusProcessing, "")
		if err := m.Transition(o, StatusShipped, ""); err != nil {
			t.Fatal(err)
		}
		if o.EstimatedDelivery == nil {
			t.Fatal("estimated delivery not set")
		}
		days := int(o.EstimatedDelivery.Sub(now).Hours() / 24)
		if days < 3 || days > 7 {
			t.Errorf("eta %d days out, want 3..7", days)
		}
	}
}

func TestDeliveredSetsActualDelivery(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := fixedMachine(now)
	o := m.NewOrder("o1", "b", "s", nil, 0, "", PaymentCOD)
	_ = m.Transition(o, StatusProcessing, "")
	_ = m.Transition(o, StatusShipped, "")
	if err := m.Transition(o, StatusDelivered, ""); err != nil {
		t.Fatal(err)
	}
	if o.ActualDelivery == nil || !o.ActualDelivery.Equal(now) {
		t.Errorf("actual delivery = %v, want %v", o.ActualDelivery, now)
	}
	if len(o.StatusHistory) != 4 {
		t.Errorf("history length = %d, want 4", len(o.StatusHistory))
	}
}

func TestDwellGuard(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start
	m := &Machine{
		MinDwell: map[Status]time.Duration{StatusShipped: 2 * time.Hour},
		Now:      func() time.Time { return now },
		IntN:     func(n int) int { return 0 },
	}
	o := m.NewOrder("o1", "b", "s", nil, 0, "", PaymentCOD)
	if err := m.Transition(o, StatusProcessing, ""); err != nil {
		t.Fatal(err)
	}

	// too early for shipped
	now = start.Add(30 * time.Minute)
	err := m.Transition(o, StatusShipped, "")
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("err = %v, want dwell violation", err)
	}
	if o.Status != StatusProcessing {
		t.Errorf("order mutated by rejected transition")
	}

	// past the dwell
	now = start.Add(3 * time.Hour)
	if err := m.Transition(o, StatusShipped, ""); err != nil {
		t.Fatalf("transition past dwell: %v", err)
	}
}

func TestDwellGuardOffByDefault(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMachine(nil)
	m.Now = func() time.Time { return now }
	o := m.NewOrder("o1", "b", "s", nil, 0, "", PaymentCOD)
	if err := m.Transition(o, StatusProcessing, ""); err != nil {
		t.Fatalf("immediate transition with empty dwell table: %v", err)
	}
}
