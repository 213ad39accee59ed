package email

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
}

// NoOpProvider drops mail. It is used when SMTP is not configured.
type NoOpProvider struct {
	log *zap.Logger
}

func NewNoOp(log *zap.Logger) *NoOpProvider {
	return &NoOpProvider{log: log}
}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	if p.log != nil {
		p.log.Debug("email dropped: smtp not configured", zap.String("subject", subject), zap.Int("recipients", len(to)))
	}
	return nil
}

type SentMessage struct {
	To      []string
	Subject string
	Body    string
}

// MemoryProvider records messages instead of sending them. Err, when set, is
// returned from every Send.
type MemoryProvider struct {
	mu   sync.Mutex
	sent []SentMessage
	Err  error
}

func (p *MemoryProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.sent = append(p.sent, SentMessage{To: append([]string(nil), to...), Subject: subject, Body: htmlBody})
	return nil
}

func (p *MemoryProvider) Sent() []SentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SentMessage, len(p.sent))
	copy(out, p.sent)
	return out
}
