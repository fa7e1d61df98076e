package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/paragonau/api/drover-sms-platform/pkg/logger"
)

// MockMessageProvider accepts every well-formed submission without touching a
// carrier. It is the default provider in development and the test double in
// service tests.
type MockMessageProvider struct {
	mu   sync.Mutex
	sent []SendResult
}

// NewMockMessageProvider returns an empty mock provider.
func NewMockMessageProvider() *MockMessageProvider {
	return &MockMessageProvider{}
}

func (m *MockMessageProvider) SendSms(ctx context.Context, recipient, message string, parts int) (*SendResult, error) {
	result := SendResult{
		Recipient:    recipient,
		Accepted:     true,
		MessageParts: parts,
		ProviderRef:  "mock-sms-" + shortRef(),
	}
	m.record(result)

	logger.FromContext(ctx).Debug("Mock SMS accepted",
		zap.String("recipient", recipient),
		zap.Int("parts", parts),
		zap.String("provider_ref", result.ProviderRef))
	return &result, nil
}

func (m *MockMessageProvider) SendMms(ctx context.Context, recipient, message, mediaURL, subject string) (*SendResult, error) {
	result := SendResult{
		Recipient:    recipient,
		Accepted:     true,
		MessageParts: 1,
		ProviderRef:  "mock-mms-" + shortRef(),
	}
	m.record(result)

	logger.FromContext(ctx).Debug("Mock MMS accepted",
		zap.String("recipient", recipient),
		zap.String("media_url", mediaURL),
		zap.String("provider_ref", result.ProviderRef))
	return &result, nil
}

func (m *MockMessageProvider) record(r SendResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, r)
}

// Sent returns a copy of every result the mock has produced, in order.
func (m *MockMessageProvider) Sent() []SendResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SendResult, len(m.sent))
	copy(out, m.sent)
	return out
}

// MockStorageProvider keeps uploads in memory and serves URLs under a fixed
// mock prefix.
type MockStorageProvider struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMockStorageProvider returns an empty in-memory store.
func NewMockStorageProvider() *MockStorageProvider {
	return &MockStorageProvider{files: make(map[string][]byte)}
}

func (m *MockStorageProvider) Store(ctx context.Context, name, contentType string, data []byte) (*UploadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	m.files[name] = stored

	return &UploadResult{
		URL:        fmt.Sprintf("https://storage.mock.invalid/media/%s", name),
		StoredName: name,
	}, nil
}

// File returns a stored upload by name.
func (m *MockStorageProvider) File(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	return data, ok
}

func shortRef() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
