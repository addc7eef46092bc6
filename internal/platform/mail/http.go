package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSender posts messages to a JSON email API.
type HTTPSender struct {
	url    string
	apiKey string
	http   *http.Client
}

type HTTPOptions struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewHTTPSender(opts HTTPOptions) *HTTPSender {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPSender{url: opts.URL, apiKey: opts.APIKey, http: hc}
}

type httpRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

type httpResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (s *HTTPSender) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(httpRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		ReplyTo: msg.ReplyTo,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mail: post: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out httpResponse
	_ = json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := out.Message
		if reason == "" {
			reason = fmt.Sprintf("http %d", resp.StatusCode)
		}
		return &SendResult{Success: false, Error: reason}, nil
	}
	return &SendResult{Success: true, ID: out.ID}, nil
}
