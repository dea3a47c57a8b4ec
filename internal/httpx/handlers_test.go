package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/orders"
)

func TestCallerIdentity(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/orders/myorders", nil)
	r.Header.Set("X-User-Id", "u-1")
	id := CallerIdentity(r)
	if id.UserID != "u-1" || id.Admin {
		t.Errorf("identity = %+v", id)
	}

	r.Header.Set("X-User-Role", "admin")
	if id := CallerIdentity(r); !id.Admin {
		t.Error("admin role not detected")
	}

	r.Header.Set("X-User-Role", "buyer")
	if id := CallerIdentity(r); id.Admin {
		t.Error("non-admin role treated as admin")
	}
}

func TestWriteErrMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", orders.Invalid("bad input"), http.StatusBadRequest},
		{"insufficient stock", &orders.InsufficientStockError{ProductID: "p1", Requested: 5, Available: 2}, http.StatusBadRequest},
		{"ledger", &orders.LedgerError{Op: "reserveStock", Reason: "down"}, http.StatusBadRequest},
		{"bad transition", &orders.InvalidTransitionError{From: orders.StatusShipped, To: orders.StatusCancelled}, http.StatusBadRequest},
		{"order not found", orders.ErrOrderNotFound, http.StatusNotFound},
		{"product not found", orders.ErrProductNotFound, http.StatusNotFound},
		{"seller not found", orders.ErrSellerNotFound, http.StatusNotFound},
		{"forbidden", orders.ErrNotAuthorized, http.StatusForbidden},
		{"unexpected", http.ErrBodyNotAllowed, http.StatusInternalServerError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeErr(w, c.err)
			if w.Code != c.code {
				t.Errorf("code = %d, want %d", w.Code, c.code)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("body not json: %v", err)
			}
			if body["message"] == "" {
				t.Error("message missing")
			}
		})
	}
}

func TestWriteErrInsufficientStockDetail(t *testing.T) {
	w := httptest.NewRecorder()
	writeErr(w, &orders.InsufficientStockError{ProductID: "p1", Requested: 5, Available: 2})
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["product_id"] != "p1" || body["requested"].(float64) != 5 || body["available"].(float64) != 2 {
		t.Errorf("detail = %v", body)
	}
}

func TestWriteErrHidesInternals(t *testing.T) {
	w := httptest.NewRecorder()
	writeErr(w, http.ErrHandlerTimeout)
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["message"] != "internal error" {
		t.Errorf("internal error leaked: %q", body["message"])
	}
}
