package queue

import (
    "context"
    "errors"
    "net"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

// silentBroker accepts connections and never answers the AMQP handshake.
func silentBroker(t *testing.T) string {
    t.Helper()
    ln, err := net.Listen("tcp", "127.0.0.1:0")
    require.NoError(t, err)

    var mu sync.Mutex
    var conns []net.Conn
    go func() {
        for {
            c, err := ln.Accept()
            if err != nil {
                return
            }
            mu.Lock()
            conns = append(conns, c)
            mu.Unlock()
        }
    }()
    t.Cleanup(func() {
        _ = ln.Close()
        mu.Lock()
        defer mu.Unlock()
        for _, c := range conns {
            _ = c.Close()
        }
    })
    return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func TestPublisher_DialBoundedByContext(t *testing.T) {
    p := NewPublisher(silentBroker(t))
    ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
    defer cancel()

    start := time.Now()
    err := p.PublishTokenURLCreated(ctx, TokenURLCreatedEvent{TokenURLID: 1, Email: "user@ok.com"})
    assert.Error(t, err)
    assert.Less(t, time.Since(start), 2*time.Second)
}

func TestPublisher_ExpiredContext(t *testing.T) {
    p := NewPublisher(silentBroker(t))
    ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
    defer cancel()

    err := p.PublishTokenURLCreated(ctx, TokenURLCreatedEvent{TokenURLID: 1, Email: "user@ok.com"})
    assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)

    ctx, cancel = context.WithCancel(context.Background())
    cancel()
    err = p.PublishTokenURLCreated(ctx, TokenURLCreatedEvent{TokenURLID: 1, Email: "user@ok.com"})
    assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}
