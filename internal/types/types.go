package types

import (
	"encoding/json"
	"time"
)

// Config represents the complete configuration for Archivist
type Config struct {
	API          APIConfig          `json:"api" yaml:"api"`
	Repository   RepositoryConfig   `json:"repository" yaml:"repository"`
	Notification NotificationConfig `json:"notification" yaml:"notification"`
	Logging      LoggingConfig      `json:"logging" yaml:"logging"`
}

// APIConfig represents the HTTP API configuration
type APIConfig struct {
	Host               string `json:"host" yaml:"host"`
	Port               int    `json:"port" yaml:"port"`
	EnableTestEndpoint bool   `json:"enable_test_endpoint" yaml:"enable_test_endpoint"`
	AllowOrigin        string `json:"allow_origin" yaml:"allow_origin"`   // CORS, empty disables
	MaxUploadMB        int    `json:"max_upload_mb" yaml:"max_upload_mb"` // multipart memory limit
}

// RepositoryConfig describes how to reach the content repository
type RepositoryConfig struct {
	Binding         string `json:"binding" yaml:"binding"` // "browser" or "local"
	URL             string `json:"url" yaml:"url"`
	Username        string `json:"username" yaml:"username"`
	Password        string `json:"password" yaml:"password"`
	ConnectionName  string `json:"connection_name" yaml:"connection_name"`
	FileDescription string `json:"file_description" yaml:"file_description"`
	Compression     bool   `json:"compression" yaml:"compression"`
	TimeoutSeconds  int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	DBPath          string `json:"db_path" yaml:"db_path"`     // local binding only
	ReadOnly        bool   `json:"read_only" yaml:"read_only"` // local binding only
}

// Timeout returns the repository request timeout as a duration
func (c RepositoryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NotificationConfig holds the email template and the mail utility endpoint
type NotificationConfig struct {
	Recipient      string `json:"recipient" yaml:"recipient"` // comma separated
	Sender         string `json:"sender" yaml:"sender"`
	Subject        string `json:"subject" yaml:"subject"`
	Message        string `json:"message" yaml:"message"`
	MailUtilityURL string `json:"mail_utility_url" yaml:"mail_utility_url"`
	NotifyOnUpload bool   `json:"notify_on_upload" yaml:"notify_on_upload"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// Timeout returns the mail utility request timeout as a duration
func (c NotificationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoggingConfig controls the zap logger
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json or console
}

// Binding names
const (
	BindingBrowser = "browser"
	BindingLocal   = "local"
)

// UploadRequest is a single file destined for a ticket folder.
// It lives for one HTTP request.
type UploadRequest struct {
	TicketNumber string
	FolderPath   string
	FileName     string
	MimeType     string
	Content      []byte
	Size         int64
	Description  string
}

// Email is a notification message. Build one with notify.Builder; the
// fields cannot be changed afterwards.
type Email struct {
	to      []string
	from    string
	subject string
	body    string
}

// NewEmail copies the recipient list so the caller keeps no handle on it
func NewEmail(to []string, from, subject, body string) Email {
	recipients := make([]string, len(to))
	copy(recipients, to)
	return Email{to: recipients, from: from, subject: subject, body: body}
}

// Recipients returns a copy of the recipient list
func (e Email) Recipients() []string {
	out := make([]string, len(e.to))
	copy(out, e.to)
	return out
}

// Sender returns the from address
func (e Email) Sender() string { return e.from }

// Subject returns the subject line
func (e Email) Subject() string { return e.subject }

// Body returns the message body
func (e Email) Body() string { return e.body }

type emailJSON struct {
	To      []string `json:"to"`
	From    string   `json:"from"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// MarshalJSON renders the shape the mail utility expects
func (e Email) MarshalJSON() ([]byte, error) {
	return json.Marshal(emailJSON{
		To:      e.Recipients(),
		From:    e.from,
		Subject: e.subject,
		Body:    e.body,
	})
}

// APIResponse represents a generic API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
