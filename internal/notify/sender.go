package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/Project-Sylos/Archivist/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusError is a non-2xx answer from the mail utility
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mail utility returned HTTP %d: %s", e.Status, e.Body)
}

// Sender posts emails to the mail utility
type Sender struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewSender creates a sender for url. A zero timeout means no limit.
func NewSender(url string, timeout time.Duration, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.Named("mail"),
	}
}

// Send posts email as a multipart form with a JSON "data" part and an
// empty "file" part
func (s *Sender) Send(ctx context.Context, email types.Email) error {
	body, contentType, err := encodeEmail(email)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, body)
	if err != nil {
		return fmt.Errorf("failed to build mail request: %w", err)
	}
	requestID := uuid.New().String()
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Request-ID", requestID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach mail utility: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	s.logger.Info("notification sent",
		zap.String("request_id", requestID),
		zap.Strings("to", email.Recipients()),
		zap.String("subject", email.Subject()))
	return nil
}

func encodeEmail(email types.Email) (*bytes.Buffer, string, error) {
	payload, err := json.Marshal(email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode email: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	dataHeader := make(textproto.MIMEHeader)
	dataHeader.Set("Content-Disposition", `form-data; name="data"`)
	dataHeader.Set("Content-Type", "application/json")
	part, err := writer.CreatePart(dataHeader)
	if err != nil {
		return nil, "", fmt.Errorf("create data part: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, "", fmt.Errorf("write data part: %w", err)
	}

	// the mail utility expects the attachment field even when there is none
	fileHeader := make(textproto.MIMEHeader)
	fileHeader.Set("Content-Disposition", `form-data; name="file"`)
	if _, err := writer.CreatePart(fileHeader); err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
