package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/config"
)

// GatewayService talks to the hosted-checkout payment gateway. It implements
// PaymentInitiator: Initiate opens a checkout and returns the redirect URL,
// settlement arrives asynchronously through the webhook.
type GatewayService struct {
	config config.GatewayConfig
	client *http.Client
	logger *logrus.Logger
}

// NewGatewayService creates a new GatewayService
func NewGatewayService(cfg config.GatewayConfig, logger *logrus.Logger) *GatewayService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GatewayService{
		config: cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type initializeRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	TxRef       string `json:"tx_ref"`
	ReturnURL   string `json:"return_url,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type initializeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		CheckoutURL string `json:"checkout_url"`
	} `json:"data"`
}

// Initiate opens a hosted checkout for the given amount and returns the URL
// the customer is redirected to. The reference becomes the gateway's tx_ref
// and comes back on the webhook.
func (s *GatewayService) Initiate(amount float64, currency, reference, returnURL string) (string, error) {
	if s.config.SecretKey == "" {
		return "", fmt.Errorf("gateway secret key is not configured")
	}

	payload := initializeRequest{
		Amount:      fmt.Sprintf("%.2f", amount),
		Currency:    currency,
		TxRef:       reference,
		ReturnURL:   returnURL,
		CallbackURL: s.config.WebhookURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal checkout request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.config.BaseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build checkout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.SecretKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("checkout request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed initializeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode checkout response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || parsed.Status != "success" {
		s.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"message":     parsed.Message,
			"tx_ref":      reference,
		}).Error("Gateway rejected checkout initialization")
		return "", fmt.Errorf("gateway rejected checkout: %s", parsed.Message)
	}

	return parsed.Data.CheckoutURL, nil
}

// VerifyWebhookSignature checks the HMAC-SHA256 signature the gateway sends
// with webhook deliveries.
func (s *GatewayService) VerifyWebhookSignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(s.config.SecretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
