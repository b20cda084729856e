package tokenurl

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/token-url-service/internal/authz"
	"github.com/iliyamo/token-url-service/internal/email"
	"github.com/iliyamo/token-url-service/internal/model"
	"github.com/iliyamo/token-url-service/internal/repository"
)

// Store persists token urls; *repository.TokenURLRepo implements it.
type Store interface {
	ActiveTokenLookup
	CreateTemporary(ctx context.Context, t *model.TokenURL, now time.Time) error
	CreatePermanent(ctx context.Context, t *model.TokenURL) error
	GetByID(ctx context.Context, id uint64) (model.TokenURL, error)
	DisableDocumentsNotification(ctx context.Context, id uint64) error
}

// Notifier sends the post-issuance confirmation.
type Notifier interface {
	Dispatch(tok model.TokenURL, notice model.Notice)
}

// Manager creates token urls and switches their notification off.
type Manager struct {
	Store        Store
	Notices      NoticeFinder
	Validator    *Validator
	Notifier     Notifier
	ActivePeriod time.Duration
	Now          func() time.Time
	NewSecret    func() (string, error)
}

func NewManager(store Store, notices NoticeFinder, v *Validator, n Notifier, activePeriod time.Duration) *Manager {
	return &Manager{
		Store:        store,
		Notices:      notices,
		Validator:    v,
		Notifier:     n,
		ActivePeriod: activePeriod,
		Now:          time.Now,
		NewSecret:    newSecret,
	}
}

// newSecret returns 32 random bytes hex encoded.
func newSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RequestToken runs the whole pipeline for an anonymous request: validate,
// issue, then hand off the confirmation. Rejections are *ValidationError.
func (m *Manager) RequestToken(ctx context.Context, req Request) (model.TokenURL, error) {
	req.Email = email.Normalize(strings.TrimSpace(req.Email))

	d, err := m.Validator.Validate(ctx, req)
	if err != nil {
		return model.TokenURL{}, err
	}
	if !d.Accepted() {
		log.Infoj(log.JSON{"msg": "token url rejected", "notice_id": req.NoticeID, "email": email.Redact(req.Email), "reason": d.Reason})
		return model.TokenURL{}, rejected(d.Reason)
	}

	tok, err := m.Issue(ctx, req.Email, d.Notice.ID)
	if err != nil {
		return model.TokenURL{}, err
	}
	if m.Notifier != nil {
		m.Notifier.Dispatch(tok, d.Notice)
	}
	log.Infoj(log.JSON{"msg": "token url issued", "token_url_id": tok.ID, "notice_id": d.Notice.ID, "email": email.Redact(tok.Email)})
	return tok, nil
}

// Issue stores a temporary token expiring ActivePeriod from now. It must
// only be called once the validator accepted the request.
func (m *Manager) Issue(ctx context.Context, addr string, noticeID uint64) (model.TokenURL, error) {
	addr = email.Normalize(addr)
	if msg := emailProblem(addr); msg != "" {
		return model.TokenURL{}, rejected(msg)
	}
	secret, err := m.NewSecret()
	if err != nil {
		return model.TokenURL{}, fmt.Errorf("generate secret: %w", err)
	}
	now := m.Now()
	exp := now.Add(m.ActivePeriod)
	tok := model.TokenURL{
		Email:                 addr,
		Token:                 secret,
		NoticeID:              &noticeID,
		ExpiresAt:             &exp,
		DocumentsNotification: true,
	}
	if err := m.Store.CreateTemporary(ctx, &tok, now); err != nil {
		return model.TokenURL{}, persistError(err)
	}
	return tok, nil
}

// IssuePermanent stores a token that never expires for an authenticated
// owner. None of the validator's checks apply; the caller's capability
// is checked before this is reached.
func (m *Manager) IssuePermanent(ctx context.Context, owner authz.Subject, noticeID uint64) (model.TokenURL, error) {
	if !owner.Authenticated() {
		return model.TokenURL{}, ErrUnauthorized
	}
	if _, err := m.Notices.GetByID(ctx, noticeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.TokenURL{}, ErrNotFound
		}
		return model.TokenURL{}, fmt.Errorf("find notice: %w", err)
	}
	addr := email.Normalize(strings.TrimSpace(owner.Email))
	if msg := emailProblem(addr); msg != "" {
		return model.TokenURL{}, rejected(msg)
	}
	secret, err := m.NewSecret()
	if err != nil {
		return model.TokenURL{}, fmt.Errorf("generate secret: %w", err)
	}
	userID := owner.UserID
	tok := model.TokenURL{
		Email:                 addr,
		Token:                 secret,
		NoticeID:              &noticeID,
		UserID:                &userID,
		ValidForever:          true,
		DocumentsNotification: true,
	}
	if err := m.Store.CreatePermanent(ctx, &tok); err != nil {
		return model.TokenURL{}, persistError(err)
	}
	log.Infoj(log.JSON{"msg": "permanent token url issued", "token_url_id": tok.ID, "notice_id": noticeID, "user_id": userID})
	return tok, nil
}

// DisableNotifications switches off the documents notification of token
// id when secret matches the stored one exactly. It needs no session: the
// secret is the capability.
func (m *Manager) DisableNotifications(ctx context.Context, id uint64, secret string) error {
	tok, err := m.Store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find token url: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(tok.Token)) != 1 {
		return ErrInvalidSecret
	}
	if !tok.DocumentsNotification {
		return nil
	}
	if err := m.Store.DisableDocumentsNotification(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("disable notification: %w", err)
	}
	return nil
}

func emailProblem(addr string) string {
	if addr == "" {
		return "Email can't be blank"
	}
	if a, err := mail.ParseAddress(addr); err != nil || a.Address != addr {
		return "Email is invalid"
	}
	return ""
}

// persistError maps store failures to what the requester should see.
func persistError(err error) error {
	if errors.Is(err, repository.ErrEmailInUse) {
		return rejected(ReasonEmailUsed)
	}
	var fe *repository.FieldError
	if errors.As(err, &fe) {
		return rejected(fieldMessage(fe))
	}
	return fmt.Errorf("store token url: %w", err)
}

func fieldMessage(fe *repository.FieldError) string {
	name := strings.ReplaceAll(fe.Field, "_", " ")
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	return name + " " + fe.Message
}
