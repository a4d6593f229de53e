package smsgateway

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the part of the Twilio REST client the backend uses
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioBackend sends through the Twilio Messages API
type TwilioBackend struct {
	api  messageCreator
	from string
}

// NewTwilioBackend needs accountSid, authToken and from credentials
func NewTwilioBackend(creds Credentials) (*TwilioBackend, error) {
	v, err := creds.Require(BackendTwilio, "accountSid", "authToken", "from")
	if err != nil {
		return nil, err
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: v[0],
		Password: v[1],
	})
	return &TwilioBackend{api: client.Api, from: v[2]}, nil
}

// Name returns the backend name
func (t *TwilioBackend) Name() string { return BackendTwilio }

// Send creates one message. The REST client has no context support, so
// cancellation is left to the adapter.
func (t *TwilioBackend) Send(ctx context.Context, phone, message string) (SendResult, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("+" + CountryCode + phone)
	params.SetFrom(t.from)
	params.SetBody(message)

	msg, err := t.api.CreateMessage(params)
	if err != nil {
		var restErr *twilioClient.TwilioRestError
		if errors.As(err, &restErr) {
			return SendResult{ProviderStatus: "rejected"}, &ProviderError{
				Backend: BackendTwilio,
				Code:    strconv.Itoa(restErr.Code),
				Message: restErr.Message,
			}
		}
		return SendResult{}, err
	}
	if msg == nil || msg.Sid == nil || *msg.Sid == "" {
		return SendResult{}, ErrMalformedResponse
	}

	res := SendResult{
		ProviderMessageID: *msg.Sid,
		ProviderStatus:    deref(msg.Status),
		Cost:              parsePrice(deref(msg.Price)),
	}
	if n, err := strconv.Atoi(deref(msg.NumSegments)); err == nil {
		res.Segments = n
	}
	if raw, err := json.Marshal(msg); err == nil {
		res.Raw = truncateRaw(raw)
	}

	switch strings.ToLower(res.ProviderStatus) {
	case "failed", "undelivered", "canceled":
		return res, &ProviderError{Backend: BackendTwilio, Code: res.ProviderStatus, Message: deref(msg.ErrorMessage)}
	}
	res.OK = true
	return res, nil
}

// parsePrice reads Twilio's signed price string ("-0.00750") as a positive cost
func parsePrice(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return math.Abs(f)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
