package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/checkout"
	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/inventory"
	kafkax "github.com/Reeshan-shrestha/fyp-final-sub000/internal/kafka"
	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/ledger"
	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/orders"
)

type ProductsHandler struct {
	Inventory *inventory.Store
	Ledger    ledger.Adapter
	Producer  checkout.Publisher // stock.adjusted
	Service   string
}

type setStockReq struct {
	CountInStock int `json:"count_in_stock"`
}

func (h *ProductsHandler) Register(r *chi.Mux) {
	r.Patch("/products/{id}/stock", h.setStock)
	r.Post("/products/{id}/enable-blockchain", h.enableLedger)
}

// setStock is the admin correction path. For ledger-managed products
// the mirror must accept the new level before the local store commits.
func (h *ProductsHandler) setStock(w http.ResponseWriter, r *http.Request) {
	id := CallerIdentity(r)
	if !id.Admin {
		writeJSON(w, http.StatusForbidden, map[string]any{"message": "admin only"})
		return
	}
	productID := chi.URLParam(r, "id")

	var req setStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid json"})
		return
	}
	if req.CountInStock < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "stock must be >= 0"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	p, err := h.Inventory.GetProduct(ctx, productID)
	if err != nil {
		writeErr(w, err)
		return
	}

	txRef := ""
	if p.LedgerManaged {
		res := h.Ledger.UpdateStock(ctx, p.ID, req.CountInStock)
		if !res.Success {
			writeErr(w, &orders.LedgerError{Op: "updateStock", Reason: res.Error})
			return
		}
		txRef = res.TxRef
	}

	n, err := h.Inventory.SetStock(ctx, p.ID, req.CountInStock, txRef)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.publishAdjusted(p.ID, p.CountInStock, n, txRef, p.LedgerManaged)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "stock updated",
		"product_id":     p.ID,
		"count_in_stock": n,
		"on_chain":       p.LedgerManaged,
	})
}

// enableLedger is idempotent: already-managed products no-op with success.
func (h *ProductsHandler) enableLedger(w http.ResponseWriter, r *http.Request) {
	id := CallerIdentity(r)
	if !id.Admin {
		writeJSON(w, http.StatusForbidden, map[string]any{"message": "admin only"})
		return
	}
	productID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	p, err := h.Inventory.GetProduct(ctx, productID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if p.LedgerManaged {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":    "already ledger managed",
			"product_id": p.ID,
			"tx_ref":     p.LedgerLastTxRef,
		})
		return
	}

	res := h.Ledger.RegisterProduct(ctx, p.ID, p.Name, p.CountInStock)
	if !res.Success {
		writeErr(w, &orders.LedgerError{Op: "registerProduct", Reason: res.Error})
		return
	}
	if err := h.Inventory.EnableLedger(ctx, p.ID, res.TxRef); err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "ledger management enabled",
		"product_id": p.ID,
		"tx_ref":     res.TxRef,
	})
}

func (h *ProductsHandler) publishAdjusted(productID string, prev, next int, txRef string, onChain bool) {
	if h.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventStockAdjusted,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		CorrelationID: productID,
		Payload: kafkax.MustMarshal(orders.StockAdjustedPayload{
			ProductID: productID, PreviousStock: prev, NewStock: next,
			TxRef: txRef, OnChain: onChain,
		}),
	}
	h.Producer.Publish([]byte(productID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventStockAdjusted)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
