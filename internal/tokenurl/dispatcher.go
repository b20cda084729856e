package tokenurl

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/token-url-service/internal/email"
	"github.com/iliyamo/token-url-service/internal/model"
	"github.com/iliyamo/token-url-service/internal/queue"
)

// EventPublisher is satisfied by *queue.Publisher.
type EventPublisher interface {
	PublishTokenURLCreated(ctx context.Context, ev queue.TokenURLCreatedEvent) error
}

// Dispatcher hands confirmations to the mailer asynchronously. Failures
// never reach the issuing request; they are logged and counted.
type Dispatcher struct {
	pub     EventPublisher
	timeout time.Duration

	wg       sync.WaitGroup
	failures atomic.Int64
}

func NewDispatcher(pub EventPublisher) *Dispatcher {
	return &Dispatcher{pub: pub, timeout: 10 * time.Second}
}

// Dispatch returns immediately; publishing happens in the background on a
// context detached from the request.
func (d *Dispatcher) Dispatch(tok model.TokenURL, notice model.Notice) {
	ev := queue.TokenURLCreatedEvent{
		TokenURLID:            tok.ID,
		Email:                 tok.Email,
		Token:                 tok.Token,
		NoticeID:              notice.ID,
		NoticeTitle:           notice.Title,
		DocumentsNotification: tok.DocumentsNotification,
		CreatedAt:             time.Now().UTC().Format(time.RFC3339),
	}
	if tok.ExpiresAt != nil {
		ev.ExpiresAt = tok.ExpiresAt.UTC().Format(time.RFC3339)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.pub.PublishTokenURLCreated(ctx, ev); err != nil {
			d.failures.Add(1)
			log.Errorj(log.JSON{
				"msg":          "confirmation dispatch failed",
				"token_url_id": ev.TokenURLID,
				"email":        email.Redact(ev.Email),
				"error":        err.Error(),
			})
		}
	}()
}

// Failures is the number of confirmations that could not be published.
func (d *Dispatcher) Failures() int64 { return d.failures.Load() }

// Wait blocks until in-flight dispatches finish; used on shutdown.
func (d *Dispatcher) Wait() { d.wg.Wait() }
