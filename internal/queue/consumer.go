package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sync"
    "time"

    "github.com/labstack/gommon/log"
    amqp "github.com/rabbitmq/amqp091-go"
)

// Mailer delivers a confirmation for a freshly created token url.
type Mailer interface {
    SendConfirmation(ctx context.Context, ev TokenURLCreatedEvent) error
}

// StartConfirmationConsumer connects to RabbitMQ, declares the confirmation
// queue and hands every message to mailer.  It reconnects with exponential
// backoff until ctx is cancelled, which is the only way it returns.
// Messages the mailer fails on are rejected without requeue so a poison
// message cannot spin the consumer.
func StartConfirmationConsumer(ctx context.Context, url string, mailer Mailer) error {
    if url == "" {
        url = DefaultURL
    }
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := dial(ctx, url)
        if err != nil {
            log.Warnj(log.JSON{"msg": "confirmation consumer: dial failed", "error": err.Error(), "retry_in": backoff.String()})
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, mailer)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Warnj(log.JSON{"msg": "confirmation consumer: loop ended, reconnecting", "error": fmt.Sprint(err)})
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, mailer Mailer) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Warnj(log.JSON{"msg": "confirmation consumer: set QoS failed", "error": err.Error()})
    }
    if _, err := ch.QueueDeclare(ConfirmationQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(ConfirmationQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := HandleMessage(ctx, d.Body, mailer); err != nil {
                log.Errorj(log.JSON{"msg": "confirmation consumer: handle message failed", "error": err.Error()})
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// HandleMessage decodes one delivery body and passes it to mailer.
func HandleMessage(ctx context.Context, body []byte, mailer Mailer) error {
    var ev TokenURLCreatedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Email == "" || ev.Token == "" {
        return errors.New("event without email or token")
    }
    return mailer.SendConfirmation(ctx, ev)
}

// LogMailer stands in for SMTP delivery by appending one line per
// confirmation to <Dir>/confirmation.log.
type LogMailer struct {
    Dir string

    mu sync.Mutex
}

func (m *LogMailer) SendConfirmation(_ context.Context, ev TokenURLCreatedEvent) error {
    dir := m.Dir
    if dir == "" {
        dir = "logs"
    }
    m.mu.Lock()
    defer m.mu.Unlock()

    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join(dir, "confirmation.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    line := fmt.Sprintf("[%s] Token url confirmation | token_url_id=%d | to=%s | notice_id=%d | notice=%q | expires_at=%s | token=%s\n",
        time.Now().UTC().Format(time.RFC3339), ev.TokenURLID, ev.Email, ev.NoticeID, ev.NoticeTitle, ev.ExpiresAt, ev.Token)
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}
