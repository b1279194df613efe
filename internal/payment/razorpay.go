package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// RazorpayConfig configures the REST adapter.
type RazorpayConfig struct {
	BaseURL     string
	KeyID       string
	Secret      string
	Currency    string
	Timeout     time.Duration
	MaxAttempts int
}

// Razorpay talks to the provider's orders API. Amounts travel in the
// smallest currency unit (paise).
type Razorpay struct {
	cfg    RazorpayConfig
	client *http.Client
	log    *logrus.Logger
}

func NewRazorpay(cfg RazorpayConfig, log *logrus.Logger) *Razorpay {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Razorpay{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

type rzpOrder struct {
	ID         string            `json:"id"`
	Amount     int64             `json:"amount"`
	AmountPaid int64             `json:"amount_paid"`
	Currency   string            `json:"currency"`
	Receipt    string            `json:"receipt"`
	Status     string            `json:"status"`
	Notes      map[string]string `json:"notes,omitempty"`
}

type rzpOrderList struct {
	Count int        `json:"count"`
	Items []rzpOrder `json:"items"`
}

type rzpPayment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// CreateOrder returns the order already filed under req.Receipt when there
// is one. The POST itself is sent once: the provider does not deduplicate
// orders by receipt, so a lost response is recovered by the lookup on the
// caller's next attempt, never by re-posting.
func (r *Razorpay) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	if req.Receipt != "" {
		existing, found, err := r.orderByReceipt(ctx, req.Receipt)
		if err != nil {
			return Order{}, fmt.Errorf("razorpay find order: %w", err)
		}
		if found {
			return existing, nil
		}
	}

	body, err := json.Marshal(map[string]any{
		"amount":   toMinorUnits(req.Amount),
		"currency": r.cfg.Currency,
		"receipt":  req.Receipt,
		"notes":    map[string]string{"booking_id": req.BookingID},
	})
	if err != nil {
		return Order{}, err
	}

	var out rzpOrder
	if _, err := r.once(ctx, http.MethodPost, "/v1/orders", body, &out); err != nil {
		return Order{}, fmt.Errorf("razorpay create order: %w", err)
	}
	return Order{Reference: out.ID, Amount: fromMinorUnits(out.Amount)}, nil
}

func (r *Razorpay) orderByReceipt(ctx context.Context, receipt string) (Order, bool, error) {
	var list rzpOrderList
	if err := r.do(ctx, http.MethodGet, "/v1/orders?receipt="+url.QueryEscape(receipt), nil, &list); err != nil {
		return Order{}, false, err
	}
	for _, o := range list.Items {
		if o.Receipt == receipt {
			return Order{Reference: o.ID, Amount: fromMinorUnits(o.Amount)}, true, nil
		}
	}
	return Order{}, false, nil
}

// VerifyPayment checks the checkout signature, then asks the provider for
// the payment itself. Only a captured payment on the signed order counts,
// and the confirmed amount is what was captured.
func (r *Razorpay) VerifyPayment(ctx context.Context, v Verification) (Confirmation, error) {
	if !ValidSignature(r.cfg.Secret, v.OrderReference, v.PaymentReference, v.Signature) {
		return Confirmation{}, ErrVerificationFailed
	}

	var p rzpPayment
	if err := r.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(v.PaymentReference), nil, &p); err != nil {
		return Confirmation{}, fmt.Errorf("razorpay fetch payment: %w", err)
	}
	if p.OrderID != v.OrderReference {
		return Confirmation{}, fmt.Errorf("payment %s belongs to order %q: %w", p.ID, p.OrderID, ErrVerificationFailed)
	}
	switch p.Status {
	case "captured":
	case "authorized":
		// Capture is still pending on the provider side.
		return Confirmation{}, fmt.Errorf("payment %s not captured yet: %w", p.ID, ErrGatewayUnavailable)
	default:
		return Confirmation{}, fmt.Errorf("payment %s is %s: %w", p.ID, p.Status, ErrVerificationFailed)
	}
	return Confirmation{
		OrderReference:   v.OrderReference,
		PaymentReference: p.ID,
		Amount:           fromMinorUnits(p.Amount),
	}, nil
}

// do performs a request with bounded retries on transport errors, 429 and 5xx.
func (r *Razorpay) do(ctx context.Context, method, path string, body []byte, out any) error {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		retry, err := r.once(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
		r.log.WithFields(logrus.Fields{
			"path":    path,
			"attempt": attempt,
		}).WithError(err).Warn("gateway request failed")

		if attempt == r.cfg.MaxAttempts {
			break
		}
		t := time.NewTimer(time.Duration(attempt) * 200 * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%v: %w", ctx.Err(), ErrGatewayUnavailable)
		case <-t.C:
		}
	}
	return lastErr
}

func (r *Razorpay) once(ctx context.Context, method, path string, body []byte, out any) (bool, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, rdr)
	if err != nil {
		return false, err
	}
	req.SetBasicAuth(r.cfg.KeyID, r.cfg.Secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("%v: %w", err, ErrGatewayUnavailable)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, fmt.Errorf("status=%d: %w", resp.StatusCode, ErrGatewayUnavailable)
	case resp.StatusCode == http.StatusNotFound && method == http.MethodGet:
		return false, fmt.Errorf("status=404: %w", ErrVerificationFailed)
	case resp.StatusCode >= 300:
		return false, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func fromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}
