package smsgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const msg91DefaultBaseURL = "https://api.msg91.com"

// MSG91Backend posts JSON to the MSG91 v2 send API
type MSG91Backend struct {
	baseURL    string
	authKey    string
	sender     string
	route      string
	httpClient *http.Client
}

// NewMSG91Backend needs authKey and senderId credentials. route and baseUrl
// are optional.
func NewMSG91Backend(creds Credentials, client *http.Client) (*MSG91Backend, error) {
	v, err := creds.Require(BackendMSG91, "authKey", "senderId")
	if err != nil {
		return nil, err
	}
	b := &MSG91Backend{
		baseURL:    msg91DefaultBaseURL,
		authKey:    v[0],
		sender:     v[1],
		route:      "4",
		httpClient: client,
	}
	if u := creds.Get("baseUrl"); u != "" {
		b.baseURL = strings.TrimRight(u, "/")
	}
	if r := creds.Get("route"); r != "" {
		b.route = r
	}
	if b.httpClient == nil {
		b.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return b, nil
}

// Name returns the backend name
func (m *MSG91Backend) Name() string { return BackendMSG91 }

type msg91Request struct {
	Sender  string     `json:"sender"`
	Route   string     `json:"route"`
	Country string     `json:"country"`
	SMS     []msg91SMS `json:"sms"`
}

type msg91SMS struct {
	Message string   `json:"message"`
	To      []string `json:"to"`
}

// msg91Response carries the request id in Message on success and the
// reason on error
type msg91Response struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Send posts one message
func (m *MSG91Backend) Send(ctx context.Context, phone, message string) (SendResult, error) {
	body, err := json.Marshal(msg91Request{
		Sender:  m.sender,
		Route:   m.route,
		Country: CountryCode,
		SMS:     []msg91SMS{{Message: message, To: []string{phone}}},
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to marshal msg91 request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/api/v2/sendsms", bytes.NewReader(body))
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to create msg91 request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("authkey", m.authKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("msg91 request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to read msg91 response: %w", err)
	}
	return parseMSG91(resp.StatusCode, raw)
}

func parseMSG91(status int, raw []byte) (SendResult, error) {
	res := SendResult{Raw: truncateRaw(raw)}

	var parsed msg91Response
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.Type == "" {
		if status >= 300 {
			return res, fmt.Errorf("msg91 returned HTTP %d", status)
		}
		return res, fmt.Errorf("%w: msg91 body %q", ErrMalformedResponse, res.Raw)
	}

	res.ProviderStatus = parsed.Type
	switch strings.ToLower(parsed.Type) {
	case "success":
		if parsed.Message == "" {
			return res, fmt.Errorf("%w: msg91 success without request id", ErrMalformedResponse)
		}
		res.OK = true
		res.ProviderMessageID = parsed.Message
		return res, nil
	case "error":
		return res, &ProviderError{Backend: BackendMSG91, Code: parsed.Code, Message: parsed.Message}
	default:
		return res, fmt.Errorf("%w: msg91 type %q", ErrMalformedResponse, parsed.Type)
	}
}
