package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	rzp "github.com/razorpay/razorpay-go"

	"github.com/thalibox/marketplace-backend/pkg/config"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/security"
)

var (
	errCredentialsRequired = errors.New("razorpay key id and secret are required")
	errAmountRequired      = errors.New("razorpay amount must be positive")
	errOrderIDRequired     = errors.New("razorpay order id required")
)

type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(orderID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Order is the subset of a Razorpay order returned to clients.
type Order struct {
	ID         string `json:"id"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amountPaid,omitempty"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt,omitempty"`
	Status     string `json:"status"`
}

// Client wraps the Razorpay SDK for order creation and checkout signature checks.
type Client struct {
	orders    orderAPI
	keyID     string
	keySecret string
	currency  string
}

func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errCredentialsRequired
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	secret := strings.TrimSpace(cfg.KeySecret)
	api := rzp.NewClient(keyID, secret)

	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "INR"
	}

	if logg != nil {
		logg.Info(ctx, "razorpay client initialized")
	}
	return &Client{
		orders:    api.Order,
		keyID:     keyID,
		keySecret: secret,
		currency:  currency,
	}, nil
}

// KeyID is the public key the checkout widget needs.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// CreateOrder registers a gateway order for amountPaise. The SDK has no
// context support, so cancellation is only honoured before the call.
func (c *Client) CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (*Order, error) {
	if c == nil || c.orders == nil {
		return nil, errCredentialsRequired
	}
	if amountPaise <= 0 {
		return nil, errAmountRequired
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = c.currency
	}

	data := map[string]interface{}{
		"amount":   amountPaise,
		"currency": currency,
	}
	if receipt = strings.TrimSpace(receipt); receipt != "" {
		data["receipt"] = receipt
	}

	resp, err := c.orders.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}
	return orderFromResponse("create order", resp)
}

// FetchOrder loads a gateway order so its amount can be checked against the
// cart being paid for.
func (c *Client) FetchOrder(ctx context.Context, gatewayOrderID string) (*Order, error) {
	if c == nil || c.orders == nil {
		return nil, errCredentialsRequired
	}
	gatewayOrderID = strings.TrimSpace(gatewayOrderID)
	if gatewayOrderID == "" {
		return nil, errOrderIDRequired
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := c.orders.Fetch(gatewayOrderID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay fetch order: %w", err)
	}
	return orderFromResponse("fetch order", resp)
}

// VerifyPaymentSignature checks the checkout signature, an HMAC-SHA256 hex of
// "<order_id>|<payment_id>" keyed with the account secret.
func (c *Client) VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool {
	if c == nil {
		return false
	}
	return security.VerifyHMACSHA256Hex(c.keySecret, gatewayOrderID+"|"+paymentID, signature)
}

func orderFromResponse(op string, resp map[string]interface{}) (*Order, error) {
	id, _ := resp["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay %s: response missing id", op)
	}
	order := &Order{
		ID:         id,
		Amount:     paise(resp["amount"]),
		AmountPaid: paise(resp["amount_paid"]),
	}
	order.Currency, _ = resp["currency"].(string)
	order.Receipt, _ = resp["receipt"].(string)
	order.Status, _ = resp["status"].(string)
	return order, nil
}

// paise reads an amount the SDK decoded from JSON.
func paise(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}
