package payu

// GatewayConfig holds the PayU credentials, built once at startup and
// passed by dependency injection instead of read from the environment at
// call time.
type GatewayConfig struct {
	MerchantID  string
	AccountID   string
	APIKey      string
	APILogin    string
	PaymentsURL string
	Test        bool
}

// Configured reports whether the credentials needed to submit and verify
// transactions are all present.
func (c GatewayConfig) Configured() bool {
	return c.MerchantID != "" && c.AccountID != "" && c.APIKey != "" &&
		c.APILogin != "" && c.PaymentsURL != ""
}
