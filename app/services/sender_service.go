// Package services provides external service integrations and technical concerns like message delivery
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/wahelp/mailing-engine/config"
	"github.com/wahelp/mailing-engine/utils"
)

// MessageSender performs the delivery attempt for one recipient. The
// dispatch engine treats it as an external capability; the default
// implementation is a stub that always succeeds.
type MessageSender interface {
	Send(ctx context.Context, phoneNumber, title, text string) error
}

// NewMessageSender picks a sender implementation based on configuration.
// Provider "mock" (the default) returns the logging stub.
func NewMessageSender(cfg *config.SenderConfig) MessageSender {
	if cfg == nil || cfg.Provider == "" || cfg.Provider == "mock" {
		return NewMockMessageSender()
	}
	return NewWebhookMessageSender(cfg)
}

// WebhookMessageSender delivers messages by posting JSON to an external
// provider endpoint.
type WebhookMessageSender struct {
	config *config.SenderConfig
	client *http.Client
}

// SendRequest represents the request payload for the delivery API
type SendRequest struct {
	Recipient  string `json:"recipient"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	RetryCount int    `json:"retryCount"`
}

// SendResponse represents the delivery API response
type SendResponse struct {
	Recipient  string `json:"recipient"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
}

// NewWebhookMessageSender creates a sender backed by an HTTP provider
func NewWebhookMessageSender(cfg *config.SenderConfig) MessageSender {
	return &WebhookMessageSender{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (s *WebhookMessageSender) Send(ctx context.Context, phoneNumber, title, text string) error {
	payload := SendRequest{
		Recipient:  phoneNumber,
		Title:      title,
		Body:       text,
		RetryCount: s.config.RetryCount,
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal send request: %w", err)
	}

	url := fmt.Sprintf("https://%s/api/v1/send", s.config.ProviderDomain)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message request: %w", err)
	}
	defer resp.Body.Close()

	var result SendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode send response: %w", err)
	}
	if result.StatusCode != 200 || result.Status != "ACCEPTED" {
		return fmt.Errorf("delivery rejected for %s: %s (%d)", result.Recipient, result.Status, result.StatusCode)
	}
	return nil
}

// MockMessageSender implements MessageSender for local runs and testing.
// It always succeeds and records what it was asked to send.
type MockMessageSender struct {
	mu           sync.Mutex
	SentMessages []MockSentMessage
}

// MockSentMessage represents one recorded delivery attempt
type MockSentMessage struct {
	Recipient string
	Title     string
	Text      string
	SentAt    time.Time
}

// NewMockMessageSender creates a new mock sender
func NewMockMessageSender() *MockMessageSender {
	return &MockMessageSender{
		SentMessages: make([]MockSentMessage, 0),
	}
}

func (m *MockMessageSender) Send(ctx context.Context, phoneNumber, title, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = append(m.SentMessages, MockSentMessage{
		Recipient: phoneNumber,
		Title:     title,
		Text:      text,
		SentAt:    utils.UTCNow(),
	})
	return nil
}

// SentCount returns how many deliveries the mock has recorded
func (m *MockMessageSender) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SentMessages)
}
