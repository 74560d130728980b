package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"texplicit_backend/internal/config"
	"texplicit_backend/internal/platform/httpclient"

	"go.uber.org/zap"
)

// ErrGatewayDisabled is returned when no Razorpay credentials are configured.
var ErrGatewayDisabled = errors.New("payment: razorpay credentials are not configured")

// Gateway creates payment orders.
type Gateway interface {
	CreateOrder(ctx context.Context, amountPaise int64, currency string) (string, error)
}

// Razorpay talks to the Razorpay orders API with basic auth.
type Razorpay struct {
	apiURL string
	keyID  string
	secret string
	client *http.Client
	logger *zap.Logger
}

func NewRazorpay(cfg *config.Config, logger *zap.Logger) *Razorpay {
	return &Razorpay{
		apiURL: strings.TrimSuffix(cfg.RazorpayAPIURL, "/"),
		keyID:  cfg.RazorpayKeyID,
		secret: cfg.RazorpayKeySecret,
		client: httpclient.New(30 * time.Second),
		logger: logger,
	}
}

type orderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (r *Razorpay) CreateOrder(ctx context.Context, amountPaise int64, currency string) (string, error) {
	if r.keyID == "" || r.secret == "" {
		return "", ErrGatewayDisabled
	}
	body, err := json.Marshal(orderRequest{Amount: amountPaise, Currency: currency})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(r.keyID, r.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create razorpay order: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		r.logger.Error("Razorpay rejected order", zap.Int("status", resp.StatusCode), zap.ByteString("body", msg))
		return "", fmt.Errorf("create razorpay order: status %d", resp.StatusCode)
	}
	var order struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return "", fmt.Errorf("decode razorpay order: %w", err)
	}
	if order.ID == "" {
		return "", errors.New("razorpay order has no id")
	}
	return order.ID, nil
}

// Signature is the hex HMAC-SHA256 of "<orderID>|<paymentID>" under the key secret.
func Signature(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a checkout signature in constant time.
func VerifySignature(orderID, paymentID, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Signature(orderID, paymentID, secret)), []byte(strings.ToLower(signature)))
}
