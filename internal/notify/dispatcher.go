package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"sync"
	"time"

	"callscreen-platform/internal/mailer"
	"callscreen-platform/pkg/logger"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultPollInterval = 15 * time.Second
	defaultBatchSize    = 20
	defaultLease        = 2 * time.Minute
	maxRetryDelay       = 30 * time.Minute
)

type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// Lease is how long a claimed message stays hidden from other dispatchers.
	Lease time.Duration
	// SendTimeout bounds each mail send.
	SendTimeout time.Duration
}

// Dispatcher drains the outbox, sending each message and retrying failures
// with exponential backoff until the message's attempts run out.
type Dispatcher struct {
	repo   Repository
	mailer mailer.Mailer
	log    *slog.Logger
	cfg    DispatcherConfig
	clock  func() time.Time

	newBackOff func() backoff.BackOff

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDispatcher(repo Repository, m mailer.Mailer, log *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Lease <= 0 {
		cfg.Lease = defaultLease
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	log = logger.OrDefault(log)
	return &Dispatcher{
		repo:   repo,
		mailer: m,
		log:    log.With("component", "notify"),
		cfg:    cfg,
		clock:  time.Now,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 30 * time.Second
			bo.MaxInterval = maxRetryDelay
			bo.MaxElapsedTime = 0
			return bo
		},
	}
}

// Start runs the poll loop in a goroutine until Stop or ctx cancellation.
// Calling Start on a running dispatcher is a no-op.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.run(ctx, d.done)
}

// Stop cancels the loop and waits for the in-flight batch to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (d *Dispatcher) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(d.cfg.PollInterval)
	defer t.Stop()

	d.log.Info("notification dispatcher started", "poll_interval", d.cfg.PollInterval.String())
	for {
		if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
			d.log.Error("outbox dispatch failed", "err", err)
		}
		select {
		case <-ctx.Done():
			d.log.Info("notification dispatcher stopped")
			return
		case <-t.C:
		}
	}
}

// DispatchOnce claims one batch of due messages and attempts each.
// It returns the number of messages sent.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	msgs, err := d.repo.ClaimDue(ctx, d.clock().UTC(), d.cfg.BatchSize, d.cfg.Lease)
	if err != nil {
		return 0, fmt.Errorf("claim outbox: %w", err)
	}

	sent := 0
	for _, m := range msgs {
		if ctx.Err() != nil {
			break
		}
		if d.deliver(ctx, m) {
			sent++
		}
	}
	return sent, nil
}

func (d *Dispatcher) deliver(ctx context.Context, m Message) bool {
	log := d.log.With("message_id", m.ID, "conversation_id", m.ConversationID, "to", m.RecipientEmail)
	attempts := m.Attempts + 1

	sendErr := d.send(ctx, m)
	now := d.clock().UTC()

	// Outcome writes use a detached context so cancellation mid-batch does
	// not leave a sent message looking pending.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if sendErr == nil {
		if err := d.repo.MarkSent(wctx, m.ID, attempts, now); err != nil {
			log.Error("mark notification sent failed", "err", err)
		}
		return true
	}

	if attempts >= m.MaxAttempts {
		log.Error("notification dead after max attempts", "attempts", attempts, "err", sendErr)
		if err := d.repo.MarkDead(wctx, m.ID, attempts, sendErr.Error(), now); err != nil {
			log.Error("mark notification dead failed", "err", err)
		}
		return false
	}

	next := now.Add(d.retryDelay(attempts))
	log.Warn("notification send failed, will retry", "attempts", attempts, "next_attempt_at", next, "err", sendErr)
	if err := d.repo.MarkRetry(wctx, m.ID, attempts, next, sendErr.Error(), now); err != nil {
		log.Error("mark notification retry failed", "err", err)
	}
	return false
}

func (d *Dispatcher) send(ctx context.Context, m Message) error {
	var call NewCall
	if err := json.Unmarshal(m.Payload, &call); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	msg, err := renderNewCall(m.RecipientEmail, call)
	if err != nil {
		return err
	}
	sctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()
	_, err = d.mailer.Send(sctx, msg)
	return err
}

// retryDelay is the backoff interval after the given number of attempts.
func (d *Dispatcher) retryDelay(attempts int) time.Duration {
	bo := d.newBackOff()
	var delay time.Duration
	for i := 0; i < attempts; i++ {
		delay = bo.NextBackOff()
	}
	if delay == backoff.Stop || delay <= 0 || delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

var newCallHTML = template.Must(template.New("new_call").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
<h2>New call received</h2>
<table cellpadding="6">
<tr><td>Name</td><td>{{.Name}}</td></tr>
<tr><td>Phone</td><td>{{.Phone}}</td></tr>
<tr><td>Status</td><td><strong>{{.Qualification}}</strong></td></tr>
<tr><td>Duration</td><td>{{.CallDuration}}s</td></tr>
<tr><td>Conversation</td><td>{{.ConversationID}}</td></tr>
</table>
{{- if .Summary}}
<p>{{.Summary}}</p>
{{- end}}
</body>
</html>
`))

func renderNewCall(to string, c NewCall) (mailer.Message, error) {
	name := c.Name
	if name == "" {
		name = "Unknown caller"
	}
	c.Name = name

	var html bytes.Buffer
	if err := newCallHTML.Execute(&html, c); err != nil {
		return mailer.Message{}, fmt.Errorf("render notification: %w", err)
	}
	text := fmt.Sprintf("New call received\n\nName: %s\nPhone: %s\nStatus: %s\nDuration: %ds\nConversation: %s\n",
		c.Name, c.Phone, c.Qualification, c.CallDuration, c.ConversationID)
	if c.Summary != "" {
		text += "\n" + c.Summary + "\n"
	}
	return mailer.Message{
		To:      to,
		Subject: fmt.Sprintf("New call: %s (%s)", name, c.Qualification),
		HTML:    html.String(),
		Text:    text,
	}, nil
}
