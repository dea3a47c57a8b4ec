package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/checkout"
	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/inventory"
	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/orders"
	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/redisx"
)

type OrdersHandler struct {
	Checkout *checkout.Service
	Repo     *orders.Repo
	Catalog  *inventory.Store
	Redis    *redis.Client
}

type placeOrderReq struct {
	SellerID        string           `json:"seller_id"`
	SellerName      string           `json:"seller_name"`
	Items           []orders.ItemQty `json:"items"`
	ShippingAddress string           `json:"shipping_address"`
	PaymentMethod   string           `json:"payment_method"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.placeOrder)
	r.Get("/orders/myorders", h.myOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Patch("/orders/{id}/cancel", h.cancelOrder)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the domain error taxonomy onto HTTP. Unexpected errors
// stay generic so internals never leak.
func writeErr(w http.ResponseWriter, err error) {
	var (
		ve  *orders.ValidationError
		ise *orders.InsufficientStockError
		ite *orders.InvalidTransitionError
		le  *orders.LedgerError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": ve.Msg})
	case errors.As(err, &ise):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message":    ise.Error(),
			"product_id": ise.ProductID,
			"requested":  ise.Requested,
			"available":  ise.Available,
		})
	case errors.As(err, &le):
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": le.Error()})
	case errors.As(err, &ite):
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": ite.Error()})
	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, orders.ErrProductNotFound),
		errors.Is(err, orders.ErrSellerNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"message": err.Error()})
	case errors.Is(err, orders.ErrNotAuthorized):
		writeJSON(w, http.StatusForbidden, map[string]any{"message": "not authorized"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "internal error"})
	}
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	id := CallerIdentity(r)
	if id.UserID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "missing caller identity"})
		return
	}

	var req placeOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	// seller may arrive as id or display name; resolve to canonical id
	// here, never inside the core.
	var ref orders.SellerRef
	if req.SellerID != "" {
		ref = orders.SellerByID(req.SellerID)
	} else if req.SellerName != "" {
		ref = orders.SellerByName(req.SellerName)
	}
	sellerID, err := h.Catalog.ResolveSeller(ctx, ref)
	if err != nil {
		writeErr(w, err)
		return
	}

	if req.PaymentMethod == "" {
		req.PaymentMethod = string(orders.PaymentCOD)
	}
	o, err := h.Checkout.PlaceOrder(ctx, checkout.PlaceOrderInput{
		BuyerID:         id.UserID,
		SellerID:        sellerID,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   orders.PaymentMethod(req.PaymentMethod),
		TraceID:         r.Header.Get("X-Request-Id"),
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	h.cacheOrder(ctx, o)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "order placed", "order": o})
}

func (h *OrdersHandler) myOrders(w http.ResponseWriter, r *http.Request) {
	id := CallerIdentity(r)
	if id.UserID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "missing caller identity"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Repo.ListByBuyer(ctx, id.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := CallerIdentity(r)
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "missing id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// cache first; authorization still runs against the cached document
	key := fmt.Sprintf(redisx.KeyOrder, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		var o orders.Order
		if json.Unmarshal([]byte(s), &o) == nil {
			if o.BuyerID != id.UserID && !id.Admin {
				writeJSON(w, http.StatusForbidden, map[string]any{"message": "not authorized"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"order": o})
			return
		}
	}

	o, err := h.Repo.Get(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if o.BuyerID != id.UserID && !id.Admin {
		writeJSON(w, http.StatusForbidden, map[string]any{"message": "not authorized"})
		return
	}
	h.cacheOrder(ctx, o)
	writeJSON(w, http.StatusOK, map[string]any{"order": o})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id := CallerIdentity(r)
	if id.UserID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "missing caller identity"})
		return
	}
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := h.Checkout.CancelOrder(ctx, orderID, id.UserID, id.Admin)
	if err != nil {
		var ite *orders.InvalidTransitionError
		if errors.As(err, &ite) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"message":        "Cannot cancel order in current status",
				"current_status": ite.From,
			})
			return
		}
		writeErr(w, err)
		return
	}

	h.cacheOrder(ctx, o)
	writeJSON(w, http.StatusOK, map[string]any{"message": "order cancelled", "order": o})
}

func (h *OrdersHandler) cacheOrder(ctx context.Context, o *orders.Order) {
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrder, o.ID)
	_ = h.Redis.Set(ctx, key, b, redisx.TTLOrderCache).Err()
}
