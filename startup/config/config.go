package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port           string
	BookingDBHost  string
	BookingDBPort  string
	CacheHost      string
	CachePort      string
	JaegerAddress  string
	SMTPServer     string
	SMTPPort       int
	SMTPEmail      string
	SMTPPassword   string
	OperatorEmail  string
	PayUMerchantID string
	PayUAccountID  string
	PayUAPIKey     string
	PayUAPILogin   string
	PayUURL        string
	PayUTest       bool
}

func NewConfig() *Config {
	smtpPort, _ := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if smtpPort == 0 {
		smtpPort = 587
	}

	return &Config{
		Port:           os.Getenv("BOOKING_SERVICE_PORT"),
		BookingDBHost:  os.Getenv("BOOKING_DB_HOST"),
		BookingDBPort:  os.Getenv("BOOKING_DB_PORT"),
		CacheHost:      os.Getenv("BOOKING_CACHE_HOST"),
		CachePort:      os.Getenv("BOOKING_CACHE_PORT"),
		JaegerAddress:  os.Getenv("JAEGER_ADDRESS"),
		SMTPServer:     os.Getenv("SMTP_SERVER"),
		SMTPPort:       smtpPort,
		SMTPEmail:      os.Getenv("SMTP_AUTH_MAIL"),
		SMTPPassword:   os.Getenv("SMTP_AUTH_PASSWORD"),
		OperatorEmail:  os.Getenv("OPERATOR_EMAIL"),
		PayUMerchantID: os.Getenv("PAYU_MERCHANT_ID"),
		PayUAccountID:  os.Getenv("PAYU_ACCOUNT_ID"),
		PayUAPIKey:     os.Getenv("PAYU_API_KEY"),
		PayUAPILogin:   os.Getenv("PAYU_API_LOGIN"),
		PayUURL:        os.Getenv("PAYU_PAYMENTS_URL"),
		PayUTest:       os.Getenv("PAYU_TEST") == "true",
	}
}
