// Package ledger is the client side of the secondary stock mirror.
// Two interchangeable backends exist: a live one talking to a remote
// ledger gateway, and an in-process deterministic stub. The backend is
// chosen once, from configuration, at construction time.
package ledger

import (
	"context"

	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/config"
)

// Result is the uniform outcome of every mutating call. The adapter
// never panics and never retries: callers branch on Success.
type Result struct {
	Success bool   `json:"success"`
	TxRef   string `json:"tx_ref,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Adapter interface {
	RegisterProduct(ctx context.Context, productID, name string, initialStock int) Result
	UpdateStock(ctx context.Context, productID string, newStock int) Result
	ReserveStock(ctx context.Context, productID string, qty int) Result
	GetStock(ctx context.Context, productID string) (int, Result)
}

// New picks the backend from config. Nothing else in the process reads
// the ledger mode.
func New(cfg config.Config) Adapter {
	if cfg.LedgerMode == config.LedgerModeLive {
		return NewLive(cfg.LedgerURL, cfg.LedgerTimeout)
	}
	return NewStub()
}

func failed(op string, err error) Result {
	return Result{Success: false, Error: op + ": " + err.Error()}
}
