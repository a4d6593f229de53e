package smsgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const textLocalDefaultBaseURL = "https://api.textlocal.in"

// TextLocalBackend posts form data to the Textlocal send API
type TextLocalBackend struct {
	baseURL    string
	apiKey     string
	sender     string
	httpClient *http.Client
}

// NewTextLocalBackend needs apiKey and sender credentials. baseUrl is optional.
func NewTextLocalBackend(creds Credentials, client *http.Client) (*TextLocalBackend, error) {
	v, err := creds.Require(BackendTextLocal, "apiKey", "sender")
	if err != nil {
		return nil, err
	}
	b := &TextLocalBackend{
		baseURL:    textLocalDefaultBaseURL,
		apiKey:     v[0],
		sender:     v[1],
		httpClient: client,
	}
	if u := creds.Get("baseUrl"); u != "" {
		b.baseURL = strings.TrimRight(u, "/")
	}
	if b.httpClient == nil {
		b.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return b, nil
}

// Name returns the backend name
func (t *TextLocalBackend) Name() string { return BackendTextLocal }

// flexID accepts ids Textlocal encodes as either numbers or strings
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type textLocalResponse struct {
	Status   string         `json:"status"`
	BatchID  flexID         `json:"batch_id"`
	Cost     json.Number    `json:"cost"`
	Messages []textLocalMsg `json:"messages"`
	Errors   []textLocalErr `json:"errors"`
}

type textLocalMsg struct {
	ID        flexID `json:"id"`
	Recipient flexID `json:"recipient"`
}

type textLocalErr struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send posts one message
func (t *TextLocalBackend) Send(ctx context.Context, phone, message string) (SendResult, error) {
	form := url.Values{}
	form.Set("apikey", t.apiKey)
	form.Set("numbers", CountryCode+phone)
	form.Set("sender", t.sender)
	form.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/send/", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to create textlocal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("textlocal request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to read textlocal response: %w", err)
	}
	return parseTextLocal(resp.StatusCode, raw)
}

func parseTextLocal(status int, raw []byte) (SendResult, error) {
	res := SendResult{Raw: truncateRaw(raw)}

	var parsed textLocalResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.Status == "" {
		if status >= 300 {
			return res, fmt.Errorf("textlocal returned HTTP %d", status)
		}
		return res, fmt.Errorf("%w: textlocal body %q", ErrMalformedResponse, res.Raw)
	}

	res.ProviderStatus = parsed.Status
	switch strings.ToLower(parsed.Status) {
	case "success":
		switch {
		case len(parsed.Messages) > 0 && parsed.Messages[0].ID != "":
			res.ProviderMessageID = string(parsed.Messages[0].ID)
		case parsed.BatchID != "":
			res.ProviderMessageID = string(parsed.BatchID)
		default:
			return res, fmt.Errorf("%w: textlocal success without message id", ErrMalformedResponse)
		}
		if parsed.Cost != "" {
			if c, err := strconv.ParseFloat(parsed.Cost.String(), 64); err == nil {
				res.Cost = c
			}
		}
		res.OK = true
		return res, nil
	case "failure":
		pe := &ProviderError{Backend: BackendTextLocal, Message: "unspecified failure"}
		if len(parsed.Errors) > 0 {
			pe.Code = strconv.Itoa(parsed.Errors[0].Code)
			pe.Message = parsed.Errors[0].Message
		}
		return res, pe
	default:
		return res, fmt.Errorf("%w: textlocal status %q", ErrMalformedResponse, parsed.Status)
	}
}
