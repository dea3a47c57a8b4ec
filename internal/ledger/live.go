package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Live talks to the remote ledger gateway. Mutating calls go through
// estimate -> submit (with a +10% margin on the estimated cost) ->
// confirmation poll, all bounded by one deadline. Every failure comes
// back as Result{Success:false}; retry policy belongs to the caller.
type Live struct {
	base    string
	hc      *http.Client
	timeout time.Duration
	poll    time.Duration
}

func NewLive(baseURL string, timeout time.Duration) *Live {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Live{
		base:    baseURL,
		hc:      &http.Client{Timeout: timeout},
		timeout: timeout,
		poll:    500 * time.Millisecond,
	}
}

type callRequest struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
	Limit  int64          `json:"limit,omitempty"`
}

func (l *Live) RegisterProduct(ctx context.Context, productID, name string, initialStock int) Result {
	return l.mutate(ctx, "registerProduct", map[string]any{
		"product_id": productID, "name": name, "initial_stock": initialStock,
	})
}

func (l *Live) UpdateStock(ctx context.Context, productID string, newStock int) Result {
	return l.mutate(ctx, "updateStock", map[string]any{
		"product_id": productID, "new_stock": newStock,
	})
}

func (l *Live) ReserveStock(ctx context.Context, productID string, qty int) Result {
	return l.mutate(ctx, "reserveStock", map[string]any{
		"product_id": productID, "qty": qty,
	})
}

func (l *Live) GetStock(ctx context.Context, productID string) (int, Result) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var out struct {
		Stock int `json:"stock"`
	}
	if err := l.post(ctx, "/call", callRequest{
		Method: "getStock",
		Params: map[string]any{"product_id": productID},
	}, &out); err != nil {
		return 0, failed("getStock", err)
	}
	return out.Stock, Result{Success: true}
}

func (l *Live) mutate(ctx context.Context, method string, params map[string]any) Result {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	// 1) estimate cost
	var est struct {
		Cost int64 `json:"cost"`
	}
	if err := l.post(ctx, "/estimate", callRequest{Method: method, Params: params}, &est); err != nil {
		return failed(method+" estimate", err)
	}

	// 2) submit with a 10% safety margin over the estimate
	var sub struct {
		TxRef string `json:"tx_ref"`
	}
	req := callRequest{Method: method, Params: params, Limit: est.Cost + est.Cost/10}
	if err := l.post(ctx, "/submit", req, &sub); err != nil {
		return failed(method+" submit", err)
	}
	if sub.TxRef == "" {
		return Result{Success: false, Error: method + " submit: no tx ref returned"}
	}

	// 3) wait for confirmation
	if err := l.awaitConfirmation(ctx, sub.TxRef); err != nil {
		return failed(method+" confirm", err)
	}
	return Result{Success: true, TxRef: sub.TxRef}
}

func (l *Live) awaitConfirmation(ctx context.Context, txRef string) error {
	t := time.NewTicker(l.poll)
	defer t.Stop()
	for {
		var st struct {
			Confirmed bool   `json:"confirmed"`
			Rejected  bool   `json:"rejected"`
			Reason    string `json:"reason"`
		}
		if err := l.get(ctx, "/tx/"+txRef, &st); err != nil {
			return err
		}
		if st.Rejected {
			if st.Reason == "" {
				st.Reason = "transaction rejected"
			}
			return errors.New(st.Reason)
		}
		if st.Confirmed {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation of %s: %w", txRef, ctx.Err())
		case <-t.C:
		}
	}
}

func (l *Live) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.base+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return l.do(req, out)
}

func (l *Live) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.base+path, nil)
	if err != nil {
		return err
	}
	return l.do(req, out)
}

func (l *Live) do(req *http.Request, out any) error {
	resp, err := l.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error != "" {
			return errors.New(e.Error)
		}
		return fmt.Errorf("ledger gateway returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
