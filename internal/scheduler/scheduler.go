package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"callscreen-platform/internal/delivery"
	"callscreen-platform/internal/mailer"
	"callscreen-platform/internal/reporting"
	"callscreen-platform/internal/users"
	"callscreen-platform/pkg/logger"
)

// ConfigStore is the subset of report config persistence the scheduler uses.
type ConfigStore interface {
	Get(ctx context.Context, id string) (reporting.ReportConfig, error)
	ListDue(ctx context.Context, now time.Time) ([]reporting.ReportConfig, error)
	ListEnabled(ctx context.Context) ([]reporting.ReportConfig, error)
	UpdateSchedule(ctx context.Context, id string, lastSentAt, nextSendAt time.Time) error
}

type ReportGenerator interface {
	Generate(ctx context.Context, cfg reporting.ReportConfig, p reporting.Period) (reporting.ReportData, error)
}

type DeliveryLog interface {
	RecordSent(ctx context.Context, a delivery.Attempt, messageID string) (delivery.EmailLog, error)
	RecordFailed(ctx context.Context, a delivery.Attempt, sendErr error) (delivery.EmailLog, error)
}

type RecipientSource interface {
	ListNotificationRecipients(ctx context.Context) ([]users.Recipient, error)
}

// Locker guards a dispatch across processes. utils.RedisLocker satisfies it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

type Deps struct {
	Configs    ConfigStore
	Generator  ReportGenerator
	Mailer     mailer.Mailer
	Deliveries DeliveryLog
	Recipients RecipientSource
	// Locker is optional. Without it dispatches are only serialized within
	// this process, so a single scheduler instance is assumed.
	Locker Locker
	Log    *slog.Logger
}

type Config struct {
	TickInterval   time.Duration
	ReloadInterval time.Duration
	SendTimeout    time.Duration
	LockTTL        time.Duration
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Minute
	}
	if c.ReloadInterval <= 0 {
		c.ReloadInterval = time.Hour
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 10 * time.Minute
	}
	return c
}

// DispatchResult summarizes one report run.
type DispatchResult struct {
	ConfigID   string    `json:"config_id"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Skipped    bool      `json:"skipped,omitempty"`
	NextSendAt time.Time `json:"next_send_at"`
	Err        error     `json:"-"`
	Error      string    `json:"error,omitempty"`
}

type ConfigStatus struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Frequency  reporting.Frequency `json:"frequency"`
	LastSentAt *time.Time          `json:"last_sent_at,omitempty"`
	NextSendAt *time.Time          `json:"next_send_at,omitempty"`
}

type Status struct {
	Running      bool             `json:"running"`
	LastTickAt   *time.Time       `json:"last_tick_at,omitempty"`
	LastReloadAt *time.Time       `json:"last_reload_at,omitempty"`
	Configs      []ConfigStatus   `json:"configs"`
	LastResults  []DispatchResult `json:"last_results"`
}

var ErrNotConfigured = errors.New("scheduler: dependencies not configured")

// Scheduler sends due report configs on a fixed tick.
type Scheduler struct {
	deps  Deps
	cfg   Config
	log   *slog.Logger
	clock func() time.Time

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

func New(deps Deps, cfg Config) *Scheduler {
	log := logger.OrDefault(deps.Log)
	if deps.Locker == nil {
		deps.Locker = newLocalLocker()
	}
	return &Scheduler{
		deps:   deps,
		cfg:    cfg.withDefaults(),
		log:    log.With("component", "scheduler"),
		clock:  time.Now,
		status: Status{Configs: []ConfigStatus{}, LastResults: []DispatchResult{}},
	}
}

func (s *Scheduler) ready() bool {
	d := s.deps
	return d.Configs != nil && d.Generator != nil && d.Mailer != nil && d.Deliveries != nil && d.Recipients != nil
}

// Start launches the tick loop. It returns an error if the scheduler is
// already running or lacks dependencies.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.ready() {
		return ErrNotConfigured
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler: already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.status.Running = true
	go s.run(ctx, s.done)
	return nil
}

// Stop cancels the loop and waits for the current tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.status.Running = false
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	tick := time.NewTicker(s.cfg.TickInterval)
	defer tick.Stop()
	reload := time.NewTicker(s.cfg.ReloadInterval)
	defer reload.Stop()

	s.log.Info("scheduler started", "tick", s.cfg.TickInterval.String(), "reload", s.cfg.ReloadInterval.String())
	if err := s.Refresh(ctx); err != nil {
		s.log.Error("config reload failed", "err", err)
	}
	s.tickLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-tick.C:
			s.tickLogged(ctx)
		case <-reload.C:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("config reload failed", "err", err)
			}
		}
	}
}

func (s *Scheduler) tickLogged(ctx context.Context) {
	if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
		s.log.Error("scheduler tick failed", "err", err)
	}
}

// Refresh reloads enabled configs into the status snapshot.
func (s *Scheduler) Refresh(ctx context.Context) error {
	if s.deps.Configs == nil {
		return ErrNotConfigured
	}
	cfgs, err := s.deps.Configs.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list enabled configs: %w", err)
	}
	out := make([]ConfigStatus, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, ConfigStatus{
			ID:         c.ID,
			Name:       c.Name,
			Frequency:  c.Frequency,
			LastSentAt: c.LastSentAt,
			NextSendAt: c.NextSendAt,
		})
	}
	now := s.clock().UTC()
	s.mu.Lock()
	s.status.Configs = out
	s.status.LastReloadAt = &now
	s.mu.Unlock()
	s.log.Debug("report configs reloaded", "count", len(out))
	return nil
}

// Tick dispatches every due config in order.
func (s *Scheduler) Tick(ctx context.Context) ([]DispatchResult, error) {
	if !s.ready() {
		return nil, ErrNotConfigured
	}
	now := s.clock().UTC()
	due, err := s.deps.Configs.ListDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list due configs: %w", err)
	}

	results := make([]DispatchResult, 0, len(due))
	for _, cfg := range due {
		if ctx.Err() != nil {
			break
		}
		results = append(results, s.dispatch(ctx, cfg))
	}

	s.mu.Lock()
	s.status.LastTickAt = &now
	if len(results) > 0 {
		s.status.LastResults = results
	}
	s.mu.Unlock()

	if len(results) > 0 {
		// Keep the snapshot's cursors current.
		if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn("config reload after tick failed", "err", err)
		}
	}
	return results, nil
}

// RunNow dispatches one config immediately, due or not.
func (s *Scheduler) RunNow(ctx context.Context, configID string) (DispatchResult, error) {
	if !s.ready() {
		return DispatchResult{}, ErrNotConfigured
	}
	cfg, err := s.deps.Configs.Get(ctx, configID)
	if err != nil {
		return DispatchResult{}, err
	}
	res := s.dispatch(ctx, cfg)
	if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn("config reload after manual run failed", "err", err)
	}
	return res, nil
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.status
	out.Configs = append([]ConfigStatus(nil), s.status.Configs...)
	out.LastResults = append([]DispatchResult(nil), s.status.LastResults...)
	return out
}

func (s *Scheduler) dispatch(ctx context.Context, cfg reporting.ReportConfig) DispatchResult {
	log := s.log.With("config_id", cfg.ID, "config_name", cfg.Name)
	res := DispatchResult{ConfigID: cfg.ID}

	release, ok, err := s.deps.Locker.TryLock(ctx, "report:"+cfg.ID, s.cfg.LockTTL)
	if err != nil {
		log.Warn("dispatch lock unavailable, skipping", "err", err)
		res.Skipped = true
		res.setErr(fmt.Errorf("lock: %w", err))
		return res
	}
	if !ok {
		log.Info("report dispatch already in progress")
		res.Skipped = true
		return res
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := release(rctx); err != nil {
			log.Warn("dispatch lock release failed", "err", err)
		}
	}()

	now := s.clock().UTC()
	sent, failed, err := s.send(ctx, log, cfg, now)
	res.Sent, res.Failed = sent, failed
	if err != nil {
		log.Error("report generation failed", "err", err)
		res.setErr(err)
	}

	// The schedule advances even after failures so a broken config does not
	// fire every tick. The write outlives cancellation of ctx.
	next := reporting.NextSendAt(cfg, now)
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.deps.Configs.UpdateSchedule(wctx, cfg.ID, now, next); err != nil {
		log.Error("schedule update failed", "err", err)
		res.setErr(errors.Join(res.Err, fmt.Errorf("update schedule: %w", err)))
		return res
	}
	res.NextSendAt = next

	log.Info("report dispatched", "sent", sent, "failed", failed, "next_send_at", next)
	return res
}

// send generates the report once and mails it to each recipient in turn.
// A failed recipient is logged and does not stop the rest.
func (s *Scheduler) send(ctx context.Context, log *slog.Logger, cfg reporting.ReportConfig, now time.Time) (sent, failed int, err error) {
	period := reporting.PeriodFor(cfg.Frequency, now)
	data, err := s.deps.Generator.Generate(ctx, cfg, period)
	if err != nil {
		return 0, 0, fmt.Errorf("generate report: %w", err)
	}
	email, err := reporting.RenderEmail(cfg, data)
	if err != nil {
		return 0, 0, err
	}
	recipients, err := s.deps.Recipients.ListNotificationRecipients(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list recipients: %w", err)
	}
	if len(recipients) == 0 {
		log.Warn("report has no recipients")
	}

	for _, r := range recipients {
		if ctx.Err() != nil {
			log.Warn("report dispatch interrupted", "remaining", len(recipients)-sent-failed)
			break
		}
		attempt := delivery.Attempt{
			ReportConfigID:  cfg.ID,
			RecipientEmail:  r.Email,
			RecipientUserID: r.UserID,
			Subject:         email.Subject,
			PeriodStart:     period.Start,
			PeriodEnd:       period.End,
			Snapshot:        data,
		}

		sctx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		msgID, sendErr := s.deps.Mailer.Send(sctx, mailer.Message{
			To:          r.Email,
			Subject:     email.Subject,
			HTML:        email.HTML,
			Text:        email.Text,
			Attachments: email.Attachments,
		})
		cancel()

		lctx, lcancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if sendErr != nil {
			failed++
			log.Warn("report send failed", "to", r.Email, "err", sendErr)
			if _, err := s.deps.Deliveries.RecordFailed(lctx, attempt, sendErr); err != nil {
				log.Error("email log append failed", "to", r.Email, "err", err)
			}
		} else {
			sent++
			if _, err := s.deps.Deliveries.RecordSent(lctx, attempt, msgID); err != nil {
				log.Error("email log append failed", "to", r.Email, "err", err)
			}
		}
		lcancel()
	}
	return sent, failed, nil
}

func (r *DispatchResult) setErr(err error) {
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
}
