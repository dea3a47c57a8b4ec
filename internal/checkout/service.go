// Package checkout orchestrates order placement and cancellation: the
// validate -> reserve -> create -> mirror pipeline with local
// compensation when the mirror step fails.
package checkout

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/Reeshan-shrestha/fyp-final-sub000/internal/kafka"
	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/ledger"
	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/orders"
)

type ProductStore interface {
	GetProduct(ctx context.Context, productID string) (*orders.Product, error)
}

type InventoryStore interface {
	// ReserveAll is all-or-nothing across the items.
	ReserveAll(ctx context.Context, items []orders.ItemQty) error
	Restore(ctx context.Context, productID string, qty int) (int, error)
	AttachTxRef(ctx context.Context, productID, txRef string) error
}

type OrderStore interface {
	Create(ctx context.Context, o *orders.Order) error
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	UpdateStatus(ctx context.Context, o *orders.Order) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Products  ProductStore
	Inventory InventoryStore
	Orders    OrderStore
	Ledger    ledger.Adapter
	Machine   *orders.Machine

	PlacedProducer    Publisher // order.placed
	CancelledProducer Publisher // order.cancelled
	ServiceName       string
}

type PlaceOrderInput struct {
	BuyerID         string
	SellerID        string // canonical id, already resolved at the boundary
	Items           []orders.ItemQty
	ShippingAddress string
	PaymentMethod   orders.PaymentMethod
	TraceID         string
}

// PlaceOrder validates the request, reserves stock for all items in one
// local transaction, mirrors the reservation for ledger-managed
// products, then creates the pending order. Any ledger failure rolls
// the local reservation back via restores; the local commit plus
// best-effort mirror is not a distributed transaction.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*orders.Order, error) {
	if in.BuyerID == "" {
		return nil, orders.Invalid("buyer is required")
	}
	if in.SellerID == "" {
		return nil, orders.Invalid("seller is required")
	}
	if len(in.Items) == 0 {
		return nil, orders.Invalid("order has no items")
	}
	if !in.PaymentMethod.Valid() {
		return nil, orders.Invalid("unknown payment method %q", in.PaymentMethod)
	}

	// 1-2) validate every item against the catalog snapshot before any
	// write: existence, seller ownership, qty, advisory stock check.
	items := make([]orders.OrderItem, 0, len(in.Items))
	mirrored := make([]orders.ItemQty, 0, len(in.Items))
	total := 0
	for _, it := range in.Items {
		if it.Qty < 1 {
			return nil, orders.Invalid("invalid qty %d for product %s", it.Qty, it.ProductID)
		}
		p, err := s.Products.GetProduct(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if p.SellerID != in.SellerID {
			return nil, orders.Invalid("product %s does not belong to seller %s", p.ID, in.SellerID)
		}
		if p.CountInStock < it.Qty {
			return nil, &orders.InsufficientStockError{ProductID: p.ID, Requested: it.Qty, Available: p.CountInStock}
		}
		// unit price comes from the catalog, never from the client
		items = append(items, orders.OrderItem{ProductID: p.ID, ProductName: p.Name, Qty: it.Qty, PriceCents: p.PriceCents})
		total += p.PriceCents * it.Qty
		if p.LedgerManaged {
			mirrored = append(mirrored, it)
		}
	}

	// 3) one scoped transaction across all items; a stale snapshot shows
	// up here as InsufficientStockError and nothing persists.
	if err := s.Inventory.ReserveAll(ctx, in.Items); err != nil {
		return nil, err
	}

	// 4) mirror ledger-managed items before the order row exists, so a
	// failed placement leaves no order behind. One failure fails the
	// whole placement: every local reservation is restored, including
	// items whose ledger call already went through (those stay reserved
	// on the ledger; accepted gap).
	txRefs := make(map[string]string, len(mirrored))
	for _, it := range mirrored {
		res := s.Ledger.ReserveStock(ctx, it.ProductID, it.Qty)
		if !res.Success {
			s.compensate(ctx, in.Items)
			return nil, &orders.LedgerError{Op: "reserveStock", Reason: res.Error}
		}
		txRefs[it.ProductID] = res.TxRef
	}

	// 5) create the pending order with its first status history entry.
	o := s.Machine.NewOrder(uuid.NewString(), in.BuyerID, in.SellerID, items, total, in.ShippingAddress, in.PaymentMethod)
	if err := s.Orders.Create(ctx, o); err != nil {
		s.compensate(ctx, in.Items)
		return nil, fmt.Errorf("create order: %w", err)
	}

	// 6) persist confirmations onto the audit trail.
	for pid, ref := range txRefs {
		if err := s.Inventory.AttachTxRef(ctx, pid, ref); err != nil {
			log.Printf("attach tx ref product=%s: %v", pid, err)
		}
	}

	s.publishPlaced(o, in.TraceID)
	return o, nil
}

// CancelOrder reverses a placed order when the state machine allows it.
// Local stock is restored per item. Ledger-side reservations are left
// in place; the divergence is accepted eventual-consistency debt.
func (s *Service) CancelOrder(ctx context.Context, orderID, requesterID string, requesterIsAdmin bool) (*orders.Order, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != requesterID && !requesterIsAdmin {
		return nil, orders.ErrNotAuthorized
	}

	notes := "cancelled by buyer"
	if requesterIsAdmin && o.BuyerID != requesterID {
		notes = "cancelled by admin"
	}
	if err := s.Machine.Transition(o, orders.StatusCancelled, notes); err != nil {
		return nil, err
	}
	if err := s.Orders.UpdateStatus(ctx, o); err != nil {
		return nil, err
	}

	for _, it := range o.Items {
		if _, err := s.Inventory.Restore(ctx, it.ProductID, it.Qty); err != nil {
			log.Printf("restore product=%s qty=%d order=%s: %v", it.ProductID, it.Qty, o.ID, err)
		}
	}

	s.publishCancelled(o, requesterID)
	return o, nil
}

// compensate restores every locally reserved item of a failed placement.
func (s *Service) compensate(ctx context.Context, items []orders.ItemQty) {
	for _, it := range items {
		if _, err := s.Inventory.Restore(ctx, it.ProductID, it.Qty); err != nil {
			log.Printf("compensate product=%s qty=%d: %v", it.ProductID, it.Qty, err)
		}
	}
}

func (s *Service) publishPlaced(o *orders.Order, traceID string) {
	if s.PlacedProducer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       traceID,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderPlacedPayload{
			OrderID: o.ID, BuyerID: o.BuyerID, SellerID: o.SellerID,
			Items: o.Items, TotalCents: o.TotalCents,
		}),
	}
	s.PlacedProducer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) publishCancelled(o *orders.Order, requesterID string) {
	if s.CancelledProducer == nil {
		return
	}
	items := make([]orders.ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orders.ItemQty{ProductID: it.ProductID, Qty: it.Qty})
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCancelled,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderCancelledPayload{
			OrderID: o.ID, CancelledBy: requesterID, Items: items,
		}),
	}
	s.CancelledProducer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCancelled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
