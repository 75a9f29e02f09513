// Package worker scores assessment requests arriving on the event bus.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/opensource-finance/nexis/internal/assessment"
	"github.com/opensource-finance/nexis/internal/bus"
	"github.com/opensource-finance/nexis/internal/domain"
)

// Worker consumes TopicAssessmentRequested and runs each request through
// the assessment service.
type Worker struct {
	bus     domain.EventBus
	service *assessment.Service

	mu            sync.Mutex
	subscriptions []domain.Subscription
	stopped       bool
	sem           chan struct{}
	wg            sync.WaitGroup

	// ctx ends intake on Stop. workCtx outlives it until in-flight
	// assessments have drained.
	ctx        context.Context
	cancel     context.CancelFunc
	workCtx    context.Context
	workCancel context.CancelFunc

	processed atomic.Int64
	failed    atomic.Int64
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process. Empty subscribes to all tenants.
	TenantIDs []string

	// WorkerCount caps concurrent assessments across all subscriptions.
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(eventBus domain.EventBus, service *assessment.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	workCtx, workCancel := context.WithCancel(context.Background())
	return &Worker{
		bus:        eventBus,
		service:    service,
		ctx:        ctx,
		cancel:     cancel,
		workCtx:    workCtx,
		workCancel: workCancel,
	}
}

// errStopped rejects messages delivered after Stop.
var errStopped = errors.New("worker stopped")

// Start subscribes to assessment requests for the configured tenants.
func (w *Worker) Start(cfg Config) error {
	count := cfg.WorkerCount
	if count <= 0 {
		count = 1
	}
	w.sem = make(chan struct{}, count)

	if len(cfg.TenantIDs) == 0 {
		if err := w.subscribe(domain.AllTenants); err != nil {
			return err
		}
		slog.Info("worker started for all tenants", "workers", count)
		return nil
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.subscribe(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
		"workers", count,
	)
	return nil
}

func (w *Worker) subscribe(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicAssessmentRequested, w.dispatch)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	slog.Debug("subscribed to assessment requests",
		"tenant_id", tenantID,
		"topic", domain.TopicAssessmentRequested,
	)
	return nil
}

// dispatch hands a message to a free worker slot. It blocks the
// subscription while every slot is busy.
func (w *Worker) dispatch(_ context.Context, msg *domain.Message) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return errStopped
	}
	w.wg.Add(1)
	w.mu.Unlock()

	select {
	case w.sem <- struct{}{}:
	case <-w.ctx.Done():
		w.wg.Done()
		return errStopped
	}

	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()

		if err := w.processRequest(w.workCtx, msg); err != nil {
			w.failed.Add(1)
			return
		}
		w.processed.Add(1)
	}()
	return nil
}

// processRequest scores one request message.
func (w *Worker) processRequest(ctx context.Context, msg *domain.Message) error {
	req, err := bus.Decode[domain.AssessmentRequest](msg)
	if err != nil {
		slog.Error("failed to decode assessment request",
			"message_id", msg.ID,
			"tenant_id", msg.TenantID,
			"error", err,
		)
		return err
	}
	if req.RequestID == "" {
		req.RequestID = msg.ID
	}

	traceID := msg.Metadata["trace_id"]
	if traceID == "" {
		traceID = msg.ID
	}

	if _, err := w.service.Assess(ctx, msg.TenantID, req, traceID); err != nil {
		slog.Error("assessment request failed",
			"request_id", req.RequestID,
			"tenant_id", msg.TenantID,
			"subject_id", req.SubjectID,
			"error", err,
		)
		return err
	}
	return nil
}

// Stop unsubscribes and waits for in-flight assessments to finish.
// It is safe to call more than once.
func (w *Worker) Stop() error {
	w.mu.Lock()
	w.stopped = true
	subs := w.subscriptions
	w.subscriptions = nil
	w.mu.Unlock()

	w.cancel()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}

	w.wg.Wait()
	w.workCancel()

	slog.Info("workers stopped",
		"processed", w.processed.Load(),
		"failed", w.failed.Load(),
	)
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Processed         int64    `json:"processed"`
	Failed            int64    `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Processed:         w.processed.Load(),
		Failed:            w.failed.Load(),
	}
}
