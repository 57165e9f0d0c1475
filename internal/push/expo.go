package push

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"
)

// Sender delivers push notifications to rider and driver devices. All
// sends are best effort; a failed push never fails the calling flow.
type Sender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) bool
}

type expoSender struct {
	url    string
	client *http.Client
}

func NewExpoSender(url string) Sender {
	return &expoSender{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type expoMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound"`
}

func (s *expoSender) Send(ctx context.Context, token, title, body string, data map[string]string) bool {
	if !strings.HasPrefix(token, "ExponentPushToken[") {
		return false
	}

	payload, err := json.Marshal(expoMessage{
		To:    token,
		Title: title,
		Body:  body,
		Data:  data,
		Sound: "default",
	})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("push: send failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Printf("push: expo returned status %d", resp.StatusCode)
		return false
	}
	return true
}

// NopSender discards all notifications. Used in tests and when no push
// endpoint is configured.
type NopSender struct{}

func (NopSender) Send(ctx context.Context, token, title, body string, data map[string]string) bool {
	return false
}
