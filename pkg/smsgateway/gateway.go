package smsgateway

import (
	"context"
	"errors"
	"fmt"
)

// Backend names
const (
	BackendDemo      = "demo"
	BackendTwilio    = "twilio"
	BackendMSG91     = "msg91"
	BackendTextLocal = "textlocal"
)

var (
	// ErrInvalidPhone is returned when a number does not normalize to 10 digits
	ErrInvalidPhone = errors.New("invalid phone number")
	// ErrUnknownBackend is returned by the registry for an unregistered name
	ErrUnknownBackend = errors.New("unknown sms backend")
	// ErrMalformedResponse is returned when a provider reply cannot be understood
	ErrMalformedResponse = errors.New("malformed provider response")
)

// SendResult is the provider-independent outcome of one send
type SendResult struct {
	OK                bool    `json:"ok"`
	ProviderMessageID string  `json:"providerMessageId,omitempty"`
	ProviderStatus    string  `json:"providerStatus,omitempty"`
	Cost              float64 `json:"cost"`
	Segments          int     `json:"segments,omitempty"`
	Raw               string  `json:"raw,omitempty"`
	Error             string  `json:"error,omitempty"`
}

// GatewayResponse renders the result as the ledger's gateway response map.
// Empty fields are omitted so they never overwrite stored values.
func (r SendResult) GatewayResponse() map[string]interface{} {
	resp := map[string]interface{}{"cost": r.Cost}
	if r.ProviderMessageID != "" {
		resp["providerMessageId"] = r.ProviderMessageID
	}
	if r.ProviderStatus != "" {
		resp["providerStatus"] = r.ProviderStatus
	}
	if r.Segments > 0 {
		resp["segments"] = r.Segments
	}
	if r.Raw != "" {
		resp["raw"] = r.Raw
	}
	return resp
}

// Backend is one SMS transport. Send receives an already normalized
// 10-digit number and returns an error for any failure. The partially
// filled result is kept so provider metadata can still be recorded.
type Backend interface {
	Name() string
	Send(ctx context.Context, phone, message string) (SendResult, error)
}

// ProviderError is a rejection reported by the provider itself
type ProviderError struct {
	Backend string
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s rejected message: %s", e.Backend, e.Message)
	}
	return fmt.Sprintf("%s rejected message (%s): %s", e.Backend, e.Code, e.Message)
}

const maxRawLength = 1024

// truncateRaw bounds the raw provider body kept in the ledger
func truncateRaw(b []byte) string {
	if len(b) <= maxRawLength {
		return string(b)
	}
	return string(b[:maxRawLength])
}
