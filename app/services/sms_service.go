// Package services provides external service integrations and technical concerns like notifications and senders
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/citystash/pickup-sms/config"
	"github.com/google/uuid"
)

// SMSService is the outbound SMS transport: one phone plus one body in, a
// provider message id or an *SMSError out.
type SMSService interface {
	Send(ctx context.Context, recipient, body string) (string, error)
}

// SMSError is the single error shape surfaced by the transport. Validation
// rejections (4xx) and gateway/availability failures (5xx, network) both map
// onto it; callers never retry automatically.
type SMSError struct {
	Code    int
	Message string
}

func (e *SMSError) Error() string {
	return fmt.Sprintf("sms gateway error %d: %s", e.Code, e.Message)
}

// SMSServiceImpl implements SMSService against the HTTP gateway
type SMSServiceImpl struct {
	config *config.SMSConfig
	client *http.Client
}

// smsRequest represents the request payload for the gateway send endpoint
type smsRequest struct {
	From      string `json:"from"`
	Recipient string `json:"recipient"` // E.164
	Body      string `json:"body"`
	Reference string `json:"reference"` // our correlation id
}

// smsResponse represents a single message result from the gateway
type smsResponse struct {
	MessageID  string `json:"messageId"`
	Recipient  string `json:"recipient"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	Detail     string `json:"detail,omitempty"`
}

// NewSMSService creates a new SMS service instance
func NewSMSService(cfg *config.SMSConfig) SMSService {
	return &SMSServiceImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Send submits one message to the gateway and returns the provider message id.
func (s *SMSServiceImpl) Send(ctx context.Context, recipient, body string) (string, error) {
	payload := smsRequest{
		From:      s.config.SourceNumber,
		Recipient: recipient,
		Body:      body,
		Reference: uuid.NewString(),
	}
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	url := fmt.Sprintf("https://%s/api/v1/messages", s.config.ProviderDomain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &SMSError{Code: http.StatusServiceUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &SMSError{Code: resp.StatusCode, Message: "gateway rejected request: " + resp.Status}
	}

	var result smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode SMS response: %w", err)
	}
	if result.StatusCode != 0 && result.StatusCode != 200 {
		return "", &SMSError{Code: result.StatusCode, Message: result.Status + ": " + result.Detail}
	}
	if result.MessageID == "" {
		return "", &SMSError{Code: http.StatusBadGateway, Message: "gateway returned no message id"}
	}
	return result.MessageID, nil
}

// MockSMSService implements SMSService for testing and local runs. It records
// every message and can be primed to fail specific recipients.
type MockSMSService struct {
	mu       sync.Mutex
	messages []MockSentMessage
	failures map[string]*SMSError
	nextID   int
}

// MockSentMessage is one message captured by MockSMSService
type MockSentMessage struct {
	Recipient string
	Body      string
}

func NewMockSMSService() *MockSMSService {
	return &MockSMSService{failures: make(map[string]*SMSError)}
}

func (m *MockSMSService) Send(ctx context.Context, recipient, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failures[recipient]; ok {
		return "", err
	}
	m.nextID++
	m.messages = append(m.messages, MockSentMessage{Recipient: recipient, Body: body})
	return "mock-" + strconv.Itoa(m.nextID), nil
}

// FailFor primes the mock to fail every send to recipient with the given error.
func (m *MockSMSService) FailFor(recipient string, err *SMSError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[recipient] = err
}

// SentMessages returns a copy of everything sent so far.
func (m *MockSMSService) SentMessages() []MockSentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockSentMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// ClearSentMessages drops the recorded messages.
func (m *MockSMSService) ClearSentMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}
