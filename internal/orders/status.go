package orders

import (
	"math/rand"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func IsTerminal(s Status) bool {
	return len(validNext[s]) == 0
}

// Machine applies status transitions and their side effects. All
// mutation of an order after creation goes through Transition; nothing
// is hidden in the persistence layer.
type Machine struct {
	// MinDwell, keyed by target status, is the minimum time an order
	// must sit in its current status before moving to that target.
	// Empty map = guard off.
	MinDwell map[Status]time.Duration

	// Now and IntN are swappable for tests.
	Now  func() time.Time
	IntN func(n int) int
}

func NewMachine(dwell map[string]time.Duration) *Machine {
	m := &Machine{MinDwell: map[Status]time.Duration{}}
	for k, v := range dwell {
		m.MinDwell[Status(k)] = v
	}
	return m
}

func (m *Machine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

func (m *Machine) intN(n int) int {
	if m.IntN != nil {
		return m.IntN(n)
	}
	return rand.Intn(n)
}

// Transition moves o to target if the transition table allows it,
// appends the status history entry, and applies delivery-date side
// effects. The order is mutated only on success.
func (m *Machine) Transition(o *Order, target Status, notes string) error {
	if !CanTransition(o.Status, target) {
		return &InvalidTransitionError{From: o.Status, To: target}
	}
	now := m.now()
	if d := m.MinDwell[target]; d > 0 && len(o.StatusHistory) > 0 {
		last := o.StatusHistory[len(o.StatusHistory)-1].At
		if now.Sub(last) < d {
			return &InvalidTransitionError{From: o.Status, To: target, Reason: "minimum dwell time not reached"}
		}
	}

	o.Status = target
	o.StatusHistory = append(o.StatusHistory, StatusChange{Status: target, Notes: notes, At: now})
	switch target {
	case StatusShipped:
		// 3..7 days out
		eta := now.AddDate(0, 0, 3+m.intN(5))
		o.EstimatedDelivery = &eta
	case StatusDelivered:
		t := now
		o.ActualDelivery = &t
	}
	o.UpdatedAt = now
	return nil
}

// NewOrder builds a pending order with its first status history entry.
// The initial entry is written here, not via Transition.
func (m *Machine) NewOrder(id, buyerID, sellerID string, items []OrderItem, totalCents int, shippingAddress string, payment PaymentMethod) *Order {
	now := m.now()
	return &Order{
		ID:              id,
		BuyerID:         buyerID,
		SellerID:        sellerID,
		Status:          StatusPending,
		Items:           items,
		TotalCents:      totalCents,
		ShippingAddress: shippingAddress,
		PaymentMethod:   payment,
		StatusHistory:   []StatusChange{{Status: StatusPending, Notes: "order placed", At: now}},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
