package tokenurl

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iliyamo/token-url-service/internal/model"
	"github.com/iliyamo/token-url-service/internal/queue"
	"github.com/iliyamo/token-url-service/internal/repository"
)

type fakeNotices struct {
	notices map[uint64]model.Notice
	err     error
}

func (f *fakeNotices) GetByID(_ context.Context, id uint64) (model.Notice, error) {
	if f.err != nil {
		return model.Notice{}, f.err
	}
	n, ok := f.notices[id]
	if !ok {
		return model.Notice{}, repository.ErrNotFound
	}
	return n, nil
}

type fakeCaptcha struct {
	calls atomic.Int32
	ok    bool
	err   error
}

func (f *fakeCaptcha) Verify(context.Context, string, string) (bool, error) {
	f.calls.Add(1)
	return f.ok, f.err
}

type fakeSpam struct {
	calls atomic.Int32
	spam  bool
	err   error
}

func (f *fakeSpam) Check(context.Context, string) (bool, error) {
	f.calls.Add(1)
	return f.spam, f.err
}

// memStore mirrors the repository: CreateTemporary refuses a second live
// temporary token for the same email.
type memStore struct {
	mu     sync.Mutex
	nextID uint64
	tokens map[uint64]*model.TokenURL

	lookups   atomic.Int32
	skipCheck bool // pretend the pre-check raced and saw nothing
	createErr error
	lookupErr error
}

func newMemStore() *memStore { return &memStore{tokens: map[uint64]*model.TokenURL{}} }

func (s *memStore) activeLocked(email string, now time.Time) bool {
	for _, t := range s.tokens {
		if t.Email == email && !t.ValidForever && t.IsActive(now) {
			return true
		}
	}
	return false
}

func (s *memStore) ActiveTemporaryExists(_ context.Context, email string, now time.Time) (bool, error) {
	s.lookups.Add(1)
	if s.lookupErr != nil {
		return false, s.lookupErr
	}
	if s.skipCheck {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked(email, now), nil
}

func (s *memStore) insert(t *model.TokenURL) {
	s.nextID++
	t.ID = s.nextID
	cp := *t
	s.tokens[t.ID] = &cp
}

func (s *memStore) CreateTemporary(_ context.Context, t *model.TokenURL, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if s.activeLocked(t.Email, now) {
		return repository.ErrEmailInUse
	}
	s.insert(t)
	return nil
}

func (s *memStore) CreatePermanent(_ context.Context, t *model.TokenURL) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.insert(t)
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uint64) (model.TokenURL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return model.TokenURL{}, repository.ErrNotFound
	}
	return *t, nil
}

func (s *memStore) DisableDocumentsNotification(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.DocumentsNotification = false
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.TokenURLCreatedEvent
	err    error
}

func (p *fakePublisher) PublishTokenURLCreated(_ context.Context, ev queue.TokenURLCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) Events() []queue.TokenURLCreatedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.TokenURLCreatedEvent(nil), p.events...)
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var errDB = errors.New("db down")
