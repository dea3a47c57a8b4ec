package orders

import "time"

type Product struct {
	ID              string    `json:"id"`
	SellerID        string    `json:"seller_id"`
	Name            string    `json:"name"`
	PriceCents      int       `json:"price_cents"`
	CountInStock    int       `json:"count_in_stock"`
	LedgerManaged   bool      `json:"ledger_managed"`
	LedgerLastTxRef string    `json:"ledger_last_tx_ref,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StockChange is one append-only stock_history row.
type StockChange struct {
	ProductID     string    `json:"product_id"`
	PreviousStock int       `json:"previous_stock"`
	NewStock      int       `json:"new_stock"`
	TxRef         string    `json:"tx_ref,omitempty"`
	At            time.Time `json:"at"`
}

type Order struct {
	ID                string         `json:"id"`
	BuyerID           string         `json:"buyer_id"`
	SellerID          string         `json:"seller_id"`
	Status            Status         `json:"status"`
	Items             []OrderItem    `json:"items"`
	TotalCents        int            `json:"total_cents"`
	ShippingAddress   string         `json:"shipping_address,omitempty"`
	PaymentMethod     PaymentMethod  `json:"payment_method"`
	StatusHistory     []StatusChange `json:"status_history"`
	EstimatedDelivery *time.Time     `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time     `json:"actual_delivery,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

type OrderItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Qty         int    `json:"qty"`
	PriceCents  int    `json:"price_cents"`
}

type StatusChange struct {
	Status Status    `json:"status"`
	Notes  string    `json:"notes,omitempty"`
	At     time.Time `json:"at"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type PaymentMethod string

const (
	PaymentCard   PaymentMethod = "card"
	PaymentWallet PaymentMethod = "wallet"
	PaymentCOD    PaymentMethod = "cod"
	PaymentCrypto PaymentMethod = "crypto"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentWallet, PaymentCOD, PaymentCrypto:
		return true
	}
	return false
}

// SellerRef identifies a seller either by canonical id or by display
// name. It is resolved to an id at the API boundary and never carried
// through the core as a bare string.
type SellerRef struct {
	id   string
	name string
}

func SellerByID(id string) SellerRef     { return SellerRef{id: id} }
func SellerByName(name string) SellerRef { return SellerRef{name: name} }

func (r SellerRef) ByID() (string, bool)   { return r.id, r.id != "" }
func (r SellerRef) ByName() (string, bool) { return r.name, r.id == "" && r.name != "" }
func (r SellerRef) IsZero() bool           { return r.id == "" && r.name == "" }
