package provider

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/apperrors"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/logger"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/smsutil"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/utils"
)

// MaxUploadBytes is the largest accepted MMS media payload.
const MaxUploadBytes = 400 * 1024

// allowedUploadTypes maps accepted upload content types to the stored file
// extension.
var allowedUploadTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
}

// SendResult reports the outcome of a single message submission.
type SendResult struct {
	Recipient     string `json:"recipient"`
	Accepted      bool   `json:"accepted"`
	MessageParts  int    `json:"message_parts"`
	ProviderRef   string `json:"provider_ref,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// BulkResult aggregates per-recipient outcomes of a bulk submission. Results
// preserve the input recipient order.
type BulkResult struct {
	Total      int          `json:"total"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Results    []SendResult `json:"results"`
}

// UploadResult describes a stored media file.
type UploadResult struct {
	URL        string `json:"url"`
	StoredName string `json:"stored_name"`
}

// MessageProvider is the carrier-facing transport. Implementations receive
// normalised local-format numbers and precomputed part counts.
type MessageProvider interface {
	SendSms(ctx context.Context, recipient, message string, parts int) (*SendResult, error)
	SendMms(ctx context.Context, recipient, message, mediaURL, subject string) (*SendResult, error)
}

// StorageProvider persists MMS media and returns a dereferenceable URL.
type StorageProvider interface {
	Store(ctx context.Context, name string, contentType string, data []byte) (*UploadResult, error)
}

// Gateway fronts a MessageProvider and StorageProvider with the platform's
// recipient, segmentation, and upload rules. All provider traffic goes
// through here so implementations stay free of validation concerns.
type Gateway struct {
	messages MessageProvider
	storage  StorageProvider
}

// NewGateway builds a Gateway over the given implementations.
func NewGateway(messages MessageProvider, storage StorageProvider) *Gateway {
	return &Gateway{messages: messages, storage: storage}
}

// SendSms validates and normalises the recipient, computes the part count,
// and submits the message. An invalid recipient yields a non-accepted result
// rather than an error so callers can record the failure on the schedule.
func (g *Gateway) SendSms(ctx context.Context, recipient, message string) (*SendResult, error) {
	normalized := smsutil.NormalizePhone(recipient)
	if !smsutil.ValidPhone(normalized) {
		return &SendResult{
			Recipient:     recipient,
			Accepted:      false,
			FailureReason: "invalid recipient number",
		}, nil
	}

	parts := smsutil.MessageParts(message)
	result, err := g.messages.SendSms(ctx, normalized, message, parts)
	if err != nil {
		return nil, apperrors.NewRetryable(apperrors.ErrProvider, "sms submission to %s failed: %v", normalized, err)
	}
	return result, nil
}

// SendBulkSms submits one message to many recipients and aggregates the
// per-recipient outcomes. Individual rejections do not abort the batch; a
// transport error does.
func (g *Gateway) SendBulkSms(ctx context.Context, recipients []string, message string) (*BulkResult, error) {
	log := logger.FromContext(ctx)

	bulk := &BulkResult{
		Total:   len(recipients),
		Results: make([]SendResult, 0, len(recipients)),
	}
	for _, recipient := range recipients {
		result, err := g.SendSms(ctx, recipient, message)
		if err != nil {
			return nil, err
		}
		if result.Accepted {
			bulk.Successful++
		} else {
			bulk.Failed++
			log.Warn("Bulk recipient rejected",
				zap.String("recipient", recipient),
				zap.String("reason", result.FailureReason))
		}
		bulk.Results = append(bulk.Results, *result)
	}
	return bulk, nil
}

// SendMms validates the recipient and submits an MMS. The media URL is
// expected to come from UploadFile and is passed through untouched.
func (g *Gateway) SendMms(ctx context.Context, recipient, message, mediaURL, subject string) (*SendResult, error) {
	normalized := smsutil.NormalizePhone(recipient)
	if !smsutil.ValidPhone(normalized) {
		return &SendResult{
			Recipient:     recipient,
			Accepted:      false,
			FailureReason: "invalid recipient number",
		}, nil
	}

	result, err := g.messages.SendMms(ctx, normalized, message, mediaURL, subject)
	if err != nil {
		return nil, apperrors.NewRetryable(apperrors.ErrProvider, "mms submission to %s failed: %v", normalized, err)
	}
	return result, nil
}

// UploadFile checks the content type and size, derives an opaque stored name,
// and hands the bytes to the storage provider.
func (g *Gateway) UploadFile(ctx context.Context, originalName, contentType string, data []byte) (*UploadResult, error) {
	ext, ok := allowedUploadTypes[strings.ToLower(contentType)]
	if !ok {
		return nil, apperrors.NewFatal(apperrors.ErrValidation, "unsupported upload content type %q", contentType)
	}
	if len(data) == 0 {
		return nil, apperrors.NewFatal(apperrors.ErrValidation, "empty upload %q", originalName)
	}
	if len(data) > MaxUploadBytes {
		return nil, apperrors.NewFatal(apperrors.ErrValidation,
			"upload %q is %s, limit is %s", originalName, utils.ByteCountSI(len(data)), utils.ByteCountSI(MaxUploadBytes))
	}

	// The original filename never reaches storage; only its extension is kept
	// when it agrees with the content type.
	if declared := strings.ToLower(filepath.Ext(originalName)); declared != "" && declared != ext && !(declared == ".jpeg" && ext == ".jpg") {
		return nil, apperrors.NewFatal(apperrors.ErrValidation,
			"upload %q extension does not match content type %q", originalName, contentType)
	}

	stored := StoredFileName(ext)
	result, err := g.storage.Store(ctx, stored, contentType, data)
	if err != nil {
		return nil, apperrors.NewRetryable(apperrors.ErrProvider, "storing upload %q failed: %v", originalName, err)
	}
	return result, nil
}

// StoredFileName derives an opaque, collision-resistant name for an upload.
func StoredFileName(ext string) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16] + ext
}
