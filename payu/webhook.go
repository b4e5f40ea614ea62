package payu

import (
	"encoding/json"
	"log"
	"net/url"
	"strconv"
	"strings"

	"booking_service/domain"
	apperrors "booking_service/errors"
)

// Notification is the canonical shape every inbound webhook format is
// normalized into before the promotion workflow sees it.
type Notification struct {
	TransactionID string
	ReferenceCode string
	Amount        float64
	Currency      string
	State         string
	Status        domain.PaymentStatus
}

// webhook payload formats, discriminated once by field presence
type webhookFormat int

const (
	formatUnknown webhookFormat = iota
	// new JSON format, order data nested under transaction.order
	formatNew
	// direct API-response echo, transactionResponse at top level
	formatDirect
	// legacy form-encoded fields (reference_sale, state_pol, sign)
	formatLegacy
)

type Normalizer struct {
	config GatewayConfig
	logger *log.Logger
}

func NewNormalizer(config GatewayConfig, logger *log.Logger) *Normalizer {
	return &Normalizer{config: config, logger: logger}
}

// Normalize discriminates the payload shape once and produces the
// canonical notification. Legacy notifications carrying a signature are
// verified; a mismatch returns ErrInvalidSignature and must not promote.
func (n *Normalizer) Normalize(contentType string, body []byte) (*Notification, error) {
	if strings.Contains(contentType, "application/x-www-form-urlencoded") {
		values, err := url.ParseQuery(string(body))
		if err == nil && values.Get("reference_sale") != "" {
			return n.fromLegacyForm(values)
		}
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch detectFormat(payload) {
		case formatNew:
			return n.fromNewFormat(payload)
		case formatDirect:
			return n.fromDirectFormat(payload)
		}
	}

	// Raw-text fallback: some gateway retries arrive without a usable
	// content type but with form-encoded bodies.
	if values, err := url.ParseQuery(string(body)); err == nil && values.Get("reference_sale") != "" {
		return n.fromLegacyForm(values)
	}

	n.logger.Printf("payu: unrecognized webhook payload: %s", body)
	return nil, apperrors.ErrUnrecognizedPayload
}

func detectFormat(payload map[string]interface{}) webhookFormat {
	if transaction, ok := payload["transaction"].(map[string]interface{}); ok {
		if _, ok := transaction["order"].(map[string]interface{}); ok {
			return formatNew
		}
	}
	if _, ok := payload["transactionResponse"].(map[string]interface{}); ok {
		return formatDirect
	}
	return formatUnknown
}

func (n *Normalizer) fromNewFormat(payload map[string]interface{}) (*Notification, error) {
	transaction := payload["transaction"].(map[string]interface{})
	order := transaction["order"].(map[string]interface{})

	notification := &Notification{
		ReferenceCode: stringField(order, "referenceCode"),
		Currency:      stringField(order, "currency"),
	}

	if additionalValues, ok := order["additionalValues"].(map[string]interface{}); ok {
		if txValue, ok := additionalValues["TX_VALUE"].(map[string]interface{}); ok {
			notification.Amount = floatField(txValue, "value")
			if currency := stringField(txValue, "currency"); currency != "" {
				notification.Currency = currency
			}
		}
	}

	if response, ok := transaction["transactionResponse"].(map[string]interface{}); ok {
		notification.TransactionID = stringField(response, "transactionId")
		notification.State = stringField(response, "state")
	}
	if notification.State == "" {
		notification.State = stringField(payload, "state")
	}
	if notification.TransactionID == "" {
		notification.TransactionID = stringField(transaction, "id")
	}

	if notification.ReferenceCode == "" {
		return nil, apperrors.ErrUnrecognizedPayload
	}
	notification.Status = MapTransactionStatus(notification.State)
	return notification, nil
}

func (n *Normalizer) fromDirectFormat(payload map[string]interface{}) (*Notification, error) {
	response := payload["transactionResponse"].(map[string]interface{})

	notification := &Notification{
		TransactionID: stringField(response, "transactionId"),
		ReferenceCode: stringField(response, "referenceCode"),
		Amount:        floatField(response, "TX_VALUE"),
		Currency:      stringField(response, "currency"),
		State:         stringField(response, "state"),
	}
	if notification.ReferenceCode == "" {
		notification.ReferenceCode = stringField(payload, "referenceCode")
	}
	if notification.Amount == 0 {
		notification.Amount = floatField(payload, "TX_VALUE")
	}
	if notification.Currency == "" {
		notification.Currency = stringField(payload, "currency")
	}

	if notification.ReferenceCode == "" {
		return nil, apperrors.ErrUnrecognizedPayload
	}
	notification.Status = MapTransactionStatus(notification.State)
	return notification, nil
}

func (n *Normalizer) fromLegacyForm(values url.Values) (*Notification, error) {
	referenceCode := values.Get("reference_sale")
	statePol := values.Get("state_pol")
	value := values.Get("value")
	currency := values.Get("currency")

	if sign := values.Get("sign"); sign != "" {
		if !n.verifyLegacySignature(sign, referenceCode, value, currency, statePol) {
			n.logger.Printf("payu: signature mismatch on legacy notification for %s", referenceCode)
			return nil, apperrors.ErrInvalidSignature
		}
	}

	amount, _ := strconv.ParseFloat(value, 64)
	state := MapPolState(statePol)

	return &Notification{
		TransactionID: values.Get("transaction_id"),
		ReferenceCode: referenceCode,
		Amount:        amount,
		Currency:      currency,
		State:         state,
		Status:        MapTransactionStatus(state),
	}, nil
}

// verifyLegacySignature checks MD5(apiKey~merchantId~referenceCode~value~currency~state_pol).
// PayU renders the value with one decimal when the second decimal digit
// is zero, so both renderings are accepted.
func (n *Normalizer) verifyLegacySignature(sign, referenceCode, value, currency, statePol string) bool {
	sign = strings.ToLower(strings.TrimSpace(sign))
	for _, candidate := range legacyValueRenderings(value) {
		expected := md5Hex(strings.Join([]string{
			n.config.APIKey, n.config.MerchantID, referenceCode, candidate, currency, statePol,
		}, "~"))
		if sign == expected {
			return true
		}
	}
	return false
}

func legacyValueRenderings(value string) []string {
	renderings := []string{value}
	amount, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return renderings
	}
	twoDecimals := strconv.FormatFloat(amount, 'f', 2, 64)
	oneDecimal := strconv.FormatFloat(amount, 'f', 1, 64)
	if strings.HasSuffix(twoDecimals, "0") {
		renderings = append(renderings, oneDecimal, twoDecimals)
	} else {
		renderings = append(renderings, twoDecimals)
	}
	return renderings
}

func stringField(payload map[string]interface{}, key string) string {
	switch value := payload[key].(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return ""
	}
}

func floatField(payload map[string]interface{}, key string) float64 {
	switch value := payload[key].(type) {
	case float64:
		return value
	case string:
		parsed, _ := strconv.ParseFloat(value, 64)
		return parsed
	default:
		return 0
	}
}
