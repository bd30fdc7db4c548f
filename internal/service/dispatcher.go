package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/isdb-fas/fasdesk/internal/chat"
	"github.com/isdb-fas/fasdesk/internal/model"
	"github.com/isdb-fas/fasdesk/internal/responder"
	"github.com/isdb-fas/fasdesk/pkg/logger"
	"github.com/isdb-fas/fasdesk/pkg/metrics"
)

// Dispatcher runs response procedures in the background. Each one marks the store as
// responding, asks the responder and appends the answer to the conversation holding the
// question.
type Dispatcher struct {
	responder responder.Responder
	timeout   time.Duration
	logger    *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A zero timeout lets a response run until the
// responder gives up on its own.
func NewDispatcher(r responder.Responder, timeout time.Duration, log *logger.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		responder: r,
		timeout:   timeout,
		logger:    log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Dispatch starts the response procedure for a user message. category is the active
// category when the message was sent and picks the responder endpoint. After Shutdown
// has begun the message is left unanswered and false is returned.
func (d *Dispatcher) Dispatch(store *chat.Store, category model.ScenarioCategory, msg model.Message) bool {
	req := responder.Request{
		Category: category,
		Text:     msg.Content,
		Standard: model.StandardFor(category, msg.Standard),
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("response not requested, dispatcher is shut down", zap.String("message_id", msg.ID))
		return false
	}
	d.wg.Add(1)
	d.mu.Unlock()

	store.BeginResponse()
	metrics.ResponsesPending.Inc()

	go func() {
		defer d.wg.Done()
		defer metrics.ResponsesPending.Dec()
		defer store.EndResponse()

		ctx := d.ctx
		if d.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}

		answer := d.responder.Respond(ctx, req)
		if _, ok := store.AppendReply(msg.ID, answer); !ok {
			d.logger.Info("reply dropped, conversation no longer exists",
				zap.String("category", string(category)),
				zap.String("message_id", msg.ID),
			)
		}
	}()
	return true
}

// Shutdown stops accepting work and waits for running responses. When ctx ends first the
// remaining responses are cancelled, which turns them into apologies, and ctx's error is
// returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
