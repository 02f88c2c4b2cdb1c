// Package mail — клиент внешнего mail API. Каждая попытка отправки
// фиксируется строкой EmailLog (outbox) независимо от исхода.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vpnportal/internal/logs"
	"vpnportal/internal/models"
	"vpnportal/internal/repo"
)

// Sender — то, что нужно сервисам от почты. NopSender — для конфигураций
// без mail.endpoint и для тестов.
type Sender interface {
	Send(ctx context.Context, to, subject, template string, data map[string]any) error
}

type Mailer struct {
	endpoint string
	apiKey   string
	from     string
	http     *http.Client
	emails   *repo.EmailStore
}

func New(endpoint, apiKey, from string, emails *repo.EmailStore) *Mailer {
	return &Mailer{
		endpoint: endpoint,
		apiKey:   apiKey,
		from:     from,
		http:     &http.Client{Timeout: 15 * time.Second},
		emails:   emails,
	}
}

type message struct {
	From     string         `json:"from"`
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

func (m *Mailer) Send(ctx context.Context, to, subject, template string, data map[string]any) error {
	err := m.post(ctx, message{From: m.from, To: to, Subject: subject, Template: template, Data: data})
	m.logAttempt(ctx, to, subject, template, data, err)
	return err
}

func (m *Mailer) post(ctx context.Context, msg message) error {
	buf, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("mail api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("mail api: %s", resp.Status)
	}
	return nil
}

func (m *Mailer) logAttempt(ctx context.Context, to, subject, template string, data map[string]any, sendErr error) {
	entry := &models.EmailLog{To: to, Subject: subject, Template: template, Status: "sent"}
	if raw, err := json.Marshal(data); err == nil {
		entry.Data = raw
	}
	if sendErr != nil {
		entry.Status = "failed"
		entry.Error = sendErr.Error()
	}
	if err := m.emails.Create(ctx, entry); err != nil {
		logs.Logger.Errorf("email log write failed: %v", err)
	}
}

// NopSender молча глотает письма.
type NopSender struct{}

func (NopSender) Send(context.Context, string, string, string, map[string]any) error { return nil }
