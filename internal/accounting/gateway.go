// Package accounting talks to the external accounting system that books
// vendor bills and payments.
package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"budgetwise/internal/services"
)

// ErrNotConfigured is returned by the disabled gateway used when no
// accounting endpoint is set.
var ErrNotConfigured = errors.New("accounting gateway not configured")

// Disabled is the gateway wired when ACCOUNTING_URL is unset. Every call
// fails fast so the invoice endpoint reports a clear error.
type Disabled struct{}

func (Disabled) CreateVendorBill(context.Context, services.VendorBill) (services.PostedBill, error) {
	return services.PostedBill{}, ErrNotConfigured
}

func (Disabled) CreatePayment(context.Context, services.Payment) (int64, error) {
	return 0, ErrNotConfigured
}

func (Disabled) Reconcile(context.Context, int64, int64) error {
	return ErrNotConfigured
}

// HTTPGateway posts bills and payments to the accounting service's JSON
// API.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

func NewHTTPGateway(baseURL string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type billLinePayload struct {
	ProductID int64  `json:"product_id"`
	Label     string `json:"label"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Account   string `json:"account"`
}

type billPayload struct {
	VendorID  int64             `json:"vendor_id"`
	JournalID int64             `json:"journal_id"`
	Date      string            `json:"date"`
	DueDate   string            `json:"due_date"`
	Reference string            `json:"reference"`
	Currency  string            `json:"currency"`
	Lines     []billLinePayload `json:"lines"`
}

type billReply struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`
	Total  string `json:"total"`
}

func (g *HTTPGateway) CreateVendorBill(ctx context.Context, bill services.VendorBill) (services.PostedBill, error) {
	payload := billPayload{
		VendorID:  bill.VendorID,
		JournalID: bill.JournalID,
		Date:      bill.Date.Format("2006-01-02"),
		DueDate:   bill.DueDate.Format("2006-01-02"),
		Reference: bill.Reference,
		Currency:  bill.Currency,
	}
	for _, line := range bill.Lines {
		payload.Lines = append(payload.Lines, billLinePayload{
			ProductID: line.ProductID,
			Label:     line.Label,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.StringFixed(2),
			Account:   line.Account,
		})
	}

	var reply billReply
	if err := g.post(ctx, "/vendor-bills", payload, &reply); err != nil {
		return services.PostedBill{}, err
	}
	total, err := decimal.NewFromString(reply.Total)
	if err != nil {
		return services.PostedBill{}, fmt.Errorf("parse bill total %q: %w", reply.Total, err)
	}
	return services.PostedBill{ID: reply.ID, Number: reply.Number, Total: total}, nil
}

type paymentPayload struct {
	BillID    int64  `json:"bill_id"`
	VendorID  int64  `json:"vendor_id"`
	JournalID int64  `json:"journal_id"`
	Amount    string `json:"amount"`
	Date      string `json:"date"`
	Reference string `json:"reference"`
}

func (g *HTTPGateway) CreatePayment(ctx context.Context, p services.Payment) (int64, error) {
	payload := paymentPayload{
		BillID:    p.BillID,
		VendorID:  p.VendorID,
		JournalID: p.JournalID,
		Amount:    p.Amount.StringFixed(2),
		Date:      p.Date.Format("2006-01-02"),
		Reference: p.Reference,
	}
	var reply struct {
		ID int64 `json:"id"`
	}
	if err := g.post(ctx, "/payments", payload, &reply); err != nil {
		return 0, err
	}
	return reply.ID, nil
}

func (g *HTTPGateway) Reconcile(ctx context.Context, billID, paymentID int64) error {
	payload := struct {
		BillID    int64 `json:"bill_id"`
		PaymentID int64 `json:"payment_id"`
	}{BillID: billID, PaymentID: paymentID}
	return g.post(ctx, "/reconciliations", payload, nil)
}

func (g *HTTPGateway) post(ctx context.Context, path string, payload, reply any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: unexpected status %d", path, resp.StatusCode)
	}
	if reply == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(reply); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
