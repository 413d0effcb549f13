// Package whatsapp wraps the Dripsender send API. Every send attempt, whether
// it reaches the provider or not, leaves exactly one audit log row.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Log is one outbound send attempt. StudentID and TransactionID are set when
// the message relates to a known obligation.
type Log struct {
	ID            uuid.UUID  `json:"id"`
	StudentID     *uuid.UUID `json:"student_id,omitempty"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
	PhoneNumber   string     `json:"phone_number"`
	Message       string     `json:"message"`
	Status        string     `json:"status"` // sent | failed
	Response      string     `json:"response,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`

	// Loaded via JOIN for history listings
	StudentName string `json:"student_name,omitempty"`
}

type LogStore interface {
	InsertLog(ctx context.Context, log *Log) error
}

// SendResult reports the outcome of one provider call. A failed call is a
// result, not an error: callers own the retry decision.
type SendResult struct {
	Success  bool
	Response string
	Error    string
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Gateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logs    LogStore
}

func NewGateway(cfg Config, logs LogStore) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Gateway{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logs:    logs,
	}
}

// NormalizePhone strips whitespace and dashes from a phone number.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '\t':
			return -1
		}
		return r
	}, phone)
}

// Send delivers a message not tied to any particular obligation.
func (g *Gateway) Send(ctx context.Context, phone, text string) *SendResult {
	return g.SendLinked(ctx, phone, text, nil, nil)
}

// SendLinked delivers a message and links its audit log to a student and,
// optionally, a transaction.
func (g *Gateway) SendLinked(ctx context.Context, phone, text string, studentID, transactionID *uuid.UUID) *SendResult {
	phone = NormalizePhone(phone)
	result := g.post(ctx, phone, text)

	status := "sent"
	response := result.Response

	if !result.Success {
		status = "failed"
		if result.Error != "" {
			response = result.Error
		}
	}

	// The log is the only audit trail; a failed write must not fail the send.
	err := g.logs.InsertLog(ctx, &Log{
		StudentID:     studentID,
		TransactionID: transactionID,
		PhoneNumber:   phone,
		Message:       text,
		Status:        status,
		Response:      response,
	})
	if err != nil {
		slog.Error("failed to write whatsapp log", "phone", phone, "error", err)
	}

	return result
}

type sendRequest struct {
	APIKey string `json:"api_key"`
	Phone  string `json:"phone"`
	Text   string `json:"text"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (g *Gateway) post(ctx context.Context, phone, text string) *SendResult {
	payload, err := json.Marshal(sendRequest{APIKey: g.apiKey, Phone: phone, Text: text})
	if err != nil {
		return &SendResult{Error: fmt.Sprintf("encoding request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/send", bytes.NewReader(payload))
	if err != nil {
		return &SendResult{Error: fmt.Sprintf("creating request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return &SendResult{Error: err.Error()}
	}
	defer resp.Body.Close()

	var body sendResponse

	var raw bytes.Buffer
	if err := json.NewDecoder(io.TeeReader(resp.Body, &raw)).Decode(&body); err != nil {
		return &SendResult{
			Response: raw.String(),
			Error:    fmt.Sprintf("decoding provider response: %v", err),
		}
	}

	result := &SendResult{
		Success:  resp.StatusCode == http.StatusOK && body.Success,
		Response: raw.String(),
	}

	if !result.Success && result.Error == "" {
		result.Error = fmt.Sprintf("provider rejected message (status %d): %s", resp.StatusCode, body.Message)
	}

	return result
}
