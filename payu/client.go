package payu

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	apperrors "booking_service/errors"
)

const (
	maxIPLength          = 39
	maxUserAgentLength   = 255
	maxDeviceTokenLength = 255

	submitCommand = "SUBMIT_TRANSACTION"
	orderLanguage = "es"
)

// ErrTimeout marks a gateway call that expired before a response
// arrived. The payment must stay Pending in that case and settle through
// the webhook, never be marked Failed.
var ErrTimeout = errors.New("payment gateway call timed out")

// ClientInfo is the buyer's device metadata forwarded to the gateway.
// PayU enforces hard length limits on every field.
type ClientInfo struct {
	IPAddress       string
	UserAgent       string
	Cookie          string
	DeviceSessionID string
}

type Buyer struct {
	FullName string `json:"fullName"`
	Email    string `json:"emailAddress"`
	Phone    string `json:"contactPhone,omitempty"`
}

type CardData struct {
	Number         string `json:"number"`
	SecurityCode   string `json:"securityCode"`
	ExpirationDate string `json:"expirationDate"`
	Name           string `json:"name"`
}

// PaymentRequest is the adapter-level view of one checkout attempt.
type PaymentRequest struct {
	ReferenceCode   string
	Description     string
	Amount          float64
	Currency        string
	PaymentMethod   string
	Buyer           Buyer
	Client          ClientInfo
	Card            *CardData
	OTPCode         string
	ResponseURL     string
	ConfirmationURL string
}

type TransactionResponse struct {
	OrderID           json.Number `json:"orderId"`
	TransactionID     string      `json:"transactionId"`
	State             string      `json:"state"`
	ResponseCode      string      `json:"responseCode"`
	PaymentNetwork    string      `json:"paymentNetworkResponseCode,omitempty"`
	AuthorizationCode string      `json:"authorizationCode,omitempty"`
	PendingReason     string      `json:"pendingReason,omitempty"`
	ResponseMessage   string      `json:"responseMessage,omitempty"`
}

type SubmitResponse struct {
	Code                string               `json:"code"`
	Error               string               `json:"error,omitempty"`
	TransactionResponse *TransactionResponse `json:"transactionResponse,omitempty"`
}

type Client struct {
	config GatewayConfig
	http   *http.Client
	cb     *gobreaker.CircuitBreaker
	logger *log.Logger
}

func NewClient(config GatewayConfig, logger *log.Logger) *Client {
	return &Client{
		config: config,
		http:   &http.Client{Timeout: 30 * time.Second},
		cb:     circuitBreaker("payuGateway"),
		logger: logger,
	}
}

func (c *Client) Config() GatewayConfig {
	return c.config
}

// SubmitTransaction signs and posts one transaction to PayU. A transport
// timeout surfaces as ErrTimeout so the caller leaves the payment
// Pending for webhook reconciliation.
func (c *Client) SubmitTransaction(ctx context.Context, request PaymentRequest) (*SubmitResponse, error) {
	if !c.config.Configured() {
		return nil, apperrors.ErrGatewayNotConfigured
	}

	body, err := json.Marshal(c.buildSubmitBody(request))
	if err != nil {
		return nil, err
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.PaymentsURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpRequest.Header.Set("Content-Type", "application/json")
		httpRequest.Header.Set("Accept", "application/json")

		httpResponse, err := c.http.Do(httpRequest)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, ErrTimeout
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			return nil, err
		}
		defer httpResponse.Body.Close()

		responseBody, err := io.ReadAll(httpResponse.Body)
		if err != nil {
			return nil, err
		}

		var submitResponse SubmitResponse
		if err := json.Unmarshal(responseBody, &submitResponse); err != nil {
			c.logger.Printf("payu: unparseable gateway response: %s", responseBody)
			return nil, err
		}
		if submitResponse.Code != "SUCCESS" {
			return nil, fmt.Errorf("gateway error: %s", submitResponse.Error)
		}
		return &submitResponse, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*SubmitResponse), nil
}

func (c *Client) buildSubmitBody(request PaymentRequest) map[string]interface{} {
	amount := FormatAmount(request.Amount)
	client := SanitizeClientInfo(request.Client)

	order := map[string]interface{}{
		"accountId":     c.config.AccountID,
		"referenceCode": request.ReferenceCode,
		"description":   request.Description,
		"language":      orderLanguage,
		"signature":     RequestSignature(c.config, request.ReferenceCode, amount, request.Currency),
		"additionalValues": map[string]interface{}{
			"TX_VALUE": map[string]interface{}{
				"value":    request.Amount,
				"currency": request.Currency,
			},
		},
		"buyer": request.Buyer,
		"shippingAddress": map[string]interface{}{
			"country": "CO",
		},
		"notifyUrl": request.ConfirmationURL,
	}

	transaction := map[string]interface{}{
		"order":           order,
		"type":            "AUTHORIZATION_AND_CAPTURE",
		"paymentMethod":   request.PaymentMethod,
		"paymentCountry":  "CO",
		"deviceSessionId": client.DeviceSessionID,
		"ipAddress":       client.IPAddress,
		"cookie":          client.Cookie,
		"userAgent":       client.UserAgent,
		"payer": map[string]interface{}{
			"fullName":     request.Buyer.FullName,
			"emailAddress": request.Buyer.Email,
			"contactPhone": request.Buyer.Phone,
		},
	}
	if request.Card != nil {
		transaction["creditCard"] = request.Card
	}
	extraParameters := map[string]interface{}{
		"RESPONSE_URL": request.ResponseURL,
	}
	if request.OTPCode != "" {
		extraParameters["OTP_CODE"] = request.OTPCode
	}
	transaction["extraParameters"] = extraParameters

	return map[string]interface{}{
		"language": orderLanguage,
		"command":  submitCommand,
		"merchant": map[string]string{
			"apiKey":   c.config.APIKey,
			"apiLogin": c.config.APILogin,
		},
		"transaction": transaction,
		"test":        c.config.Test,
	}
}

// RequestSignature is the outbound MD5 signature:
// apiKey~merchantId~referenceCode~amount~currency.
func RequestSignature(config GatewayConfig, referenceCode, amount, currency string) string {
	return md5Hex(strings.Join([]string{
		config.APIKey, config.MerchantID, referenceCode, amount, currency,
	}, "~"))
}

// FormatAmount renders the transaction value the way PayU expects it in
// signatures: two decimals.
func FormatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// SanitizeClientInfo applies the gateway hard constraints: first IP of a
// proxy chain truncated to 39 chars, user agent to 255, and generated
// fallback tokens for cookie / device session.
func SanitizeClientInfo(client ClientInfo) ClientInfo {
	ip := client.IPAddress
	if idx := strings.Index(ip, ","); idx >= 0 {
		ip = ip[:idx]
	}
	ip = strings.TrimSpace(ip)
	if len(ip) > maxIPLength {
		ip = ip[:maxIPLength]
	}

	userAgent := client.UserAgent
	if len(userAgent) > maxUserAgentLength {
		userAgent = userAgent[:maxUserAgentLength]
	}

	cookie := client.Cookie
	if cookie == "" {
		cookie = "cookie_" + uuid.NewString()
	}
	if len(cookie) > maxDeviceTokenLength {
		cookie = cookie[:maxDeviceTokenLength]
	}

	deviceSession := client.DeviceSessionID
	if deviceSession == "" {
		deviceSession = uuid.NewString()
	}
	if len(deviceSession) > maxDeviceTokenLength {
		deviceSession = deviceSession[:maxDeviceTokenLength]
	}

	return ClientInfo{
		IPAddress:       ip,
		UserAgent:       userAgent,
		Cookie:          cookie,
		DeviceSessionID: deviceSession,
	}
}

func md5Hex(value string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(value)))
}

func circuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(
		gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     10 * time.Second,
			Interval:    0,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 2
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				log.Printf("Circuit Breaker '%s' changed from '%s' to '%s'\n", name, from, to)
			},
		},
	)
}
