package tokenurl

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/token-url-service/internal/authz"
	"github.com/iliyamo/token-url-service/internal/repository"
)

const activePeriod = 24 * time.Hour

type managerFixture struct {
	*validatorFixture
	pub        *fakePublisher
	dispatcher *Dispatcher
	m          *Manager
}

func newManagerFixture() *managerFixture {
	vf := newValidatorFixture()
	pub := &fakePublisher{}
	d := NewDispatcher(pub)
	m := NewManager(vf.store, vf.notices, vf.v, d, activePeriod)
	m.Now = vf.clock.Now
	return &managerFixture{validatorFixture: vf, pub: pub, dispatcher: d, m: m}
}

func rejectionMessages(t *testing.T, err error) []string {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
	return ve.Messages
}

func TestManager_RequestToken_EndToEnd(t *testing.T) {
	f := newManagerFixture()
	req := validRequest()
	req.Email = "user+tag@ok.com"

	tok, err := f.m.RequestToken(context.Background(), req)
	require.NoError(t, err)
	f.dispatcher.Wait()

	assert.NotZero(t, tok.ID)
	assert.Equal(t, "user@ok.com", tok.Email)
	require.NotNil(t, tok.ExpiresAt)
	assert.True(t, tok.ExpiresAt.Equal(f.clock.Now().Add(activePeriod)))
	assert.False(t, tok.ValidForever)
	assert.True(t, tok.DocumentsNotification)
	assert.Len(t, tok.Token, 64)
	require.NotNil(t, tok.NoticeID)
	assert.Equal(t, uint64(42), *tok.NoticeID)

	events := f.pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, tok.ID, events[0].TokenURLID)
	assert.Equal(t, "user@ok.com", events[0].Email)
	assert.Equal(t, tok.Token, events[0].Token)
	assert.Equal(t, "DMCA", events[0].NoticeTitle)
}

func TestManager_RequestToken_DuplicateUntilExpiry(t *testing.T) {
	f := newManagerFixture()

	_, err := f.m.RequestToken(context.Background(), validRequest())
	require.NoError(t, err)

	req := validRequest()
	req.Email = "user+again@ok.com"
	_, err = f.m.RequestToken(context.Background(), req)
	assert.Equal(t, []string{ReasonEmailUsed}, rejectionMessages(t, err))

	f.clock.Advance(activePeriod)
	_, err = f.m.RequestToken(context.Background(), validRequest())
	require.NoError(t, err)
	f.dispatcher.Wait()
	assert.Len(t, f.pub.Events(), 2)
}

func TestManager_RequestToken_LateUniquenessViolation(t *testing.T) {
	f := newManagerFixture()
	_, err := f.m.RequestToken(context.Background(), validRequest())
	require.NoError(t, err)

	// the pre-check misses the first token, as a concurrent request would
	f.store.skipCheck = true
	_, err = f.m.RequestToken(context.Background(), validRequest())
	assert.Equal(t, []string{ReasonEmailUsed}, rejectionMessages(t, err))
	f.dispatcher.Wait()
	assert.Len(t, f.pub.Events(), 1)
}

func TestManager_RequestToken_RejectionPersistsNothing(t *testing.T) {
	f := newManagerFixture()
	f.spam.spam = true

	_, err := f.m.RequestToken(context.Background(), validRequest())
	assert.Equal(t, []string{ReasonEmailInvalid}, rejectionMessages(t, err))
	f.dispatcher.Wait()
	assert.Empty(t, f.store.tokens)
	assert.Empty(t, f.pub.Events())
}

func TestManager_RequestToken_DispatchFailureIsNotSurfaced(t *testing.T) {
	f := newManagerFixture()
	f.pub.err = errors.New("broker down")

	tok, err := f.m.RequestToken(context.Background(), validRequest())
	require.NoError(t, err)
	assert.NotZero(t, tok.ID)
	f.dispatcher.Wait()
	assert.Equal(t, int64(1), f.dispatcher.Failures())
}

func TestManager_Issue_FieldErrors(t *testing.T) {
	f := newManagerFixture()

	_, err := f.m.Issue(context.Background(), "not an email", 42)
	assert.Equal(t, []string{"Email is invalid"}, rejectionMessages(t, err))

	_, err = f.m.Issue(context.Background(), "", 42)
	assert.Equal(t, []string{"Email can't be blank"}, rejectionMessages(t, err))

	f.store.createErr = &repository.FieldError{Field: "email", Message: "is too long"}
	_, err = f.m.Issue(context.Background(), "user@ok.com", 42)
	assert.Equal(t, []string{"Email is too long"}, rejectionMessages(t, err))

	f.store.createErr = errDB
	_, err = f.m.Issue(context.Background(), "user@ok.com", 42)
	assert.True(t, errors.Is(err, errDB))
	var ve *ValidationError
	assert.False(t, errors.As(err, &ve))
}

func TestManager_Issue_SecretFailure(t *testing.T) {
	f := newManagerFixture()
	f.m.NewSecret = func() (string, error) { return "", fmt.Errorf("entropy") }

	_, err := f.m.Issue(context.Background(), "user@ok.com", 42)
	assert.Error(t, err)
	assert.Empty(t, f.store.tokens)
}

func TestManager_IssuePermanent(t *testing.T) {
	f := newManagerFixture()
	owner := authz.Subject{UserID: 3, Email: "admin@ok.com", Role: "ADMIN"}

	// an active temporary token for the same email does not matter
	_, err := f.m.Issue(context.Background(), "admin@ok.com", 42)
	require.NoError(t, err)

	tok, err := f.m.IssuePermanent(context.Background(), owner, 42)
	require.NoError(t, err)
	assert.True(t, tok.ValidForever)
	assert.Nil(t, tok.ExpiresAt)
	require.NotNil(t, tok.UserID)
	assert.Equal(t, uint64(3), *tok.UserID)
	assert.Equal(t, "admin@ok.com", tok.Email)
	assert.True(t, tok.IsActive(f.clock.Now().Add(100*365*24*time.Hour)))

	assert.Equal(t, int32(0), f.captcha.calls.Load())
	assert.Equal(t, int32(0), f.spam.calls.Load())
	assert.Equal(t, int32(0), f.store.lookups.Load())
	f.dispatcher.Wait()
	assert.Empty(t, f.pub.Events())
}

func TestManager_IssuePermanent_NormalizesOwnerEmail(t *testing.T) {
	f := newManagerFixture()
	owner := authz.Subject{UserID: 3, Email: " admin+staff@ok.com ", Role: "ADMIN"}

	tok, err := f.m.IssuePermanent(context.Background(), owner, 42)
	require.NoError(t, err)
	assert.Equal(t, "admin@ok.com", tok.Email)

	stored, err := f.store.GetByID(context.Background(), tok.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin@ok.com", stored.Email)
}

func TestManager_IssuePermanent_Errors(t *testing.T) {
	f := newManagerFixture()

	_, err := f.m.IssuePermanent(context.Background(), authz.Subject{Role: authz.RoleGuest}, 42)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	_, err = f.m.IssuePermanent(context.Background(), authz.Subject{UserID: 3, Email: "a@ok.com"}, 999)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestManager_DisableNotifications(t *testing.T) {
	f := newManagerFixture()
	tok, err := f.m.Issue(context.Background(), "user@ok.com", 42)
	require.NoError(t, err)

	for _, bad := range []string{"", "wrong", tok.Token[:63], tok.Token + "x"} {
		err := f.m.DisableNotifications(context.Background(), tok.ID, bad)
		assert.True(t, errors.Is(err, ErrInvalidSecret), "secret %q", bad)
		stored, _ := f.store.GetByID(context.Background(), tok.ID)
		assert.True(t, stored.DocumentsNotification)
	}

	require.NoError(t, f.m.DisableNotifications(context.Background(), tok.ID, tok.Token))
	stored, err := f.store.GetByID(context.Background(), tok.ID)
	require.NoError(t, err)
	assert.False(t, stored.DocumentsNotification)
	assert.Equal(t, tok.Token, stored.Token)

	// repeating is harmless and never turns it back on
	require.NoError(t, f.m.DisableNotifications(context.Background(), tok.ID, tok.Token))
	stored, _ = f.store.GetByID(context.Background(), tok.ID)
	assert.False(t, stored.DocumentsNotification)

	err = f.m.DisableNotifications(context.Background(), 999, tok.Token)
	assert.True(t, errors.Is(err, ErrNotFound))
}
