package tokenurl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/token-url-service/internal/authz"
	"github.com/iliyamo/token-url-service/internal/captcha"
	"github.com/iliyamo/token-url-service/internal/email"
	"github.com/iliyamo/token-url-service/internal/model"
	"github.com/iliyamo/token-url-service/internal/repository"
)

// NoticeFinder looks notices up by id and returns repository.ErrNotFound
// for unknown ids.
type NoticeFinder interface {
	GetByID(ctx context.Context, id uint64) (model.Notice, error)
}

// ActiveTokenLookup answers the per-email uniqueness pre-check.
type ActiveTokenLookup interface {
	ActiveTemporaryExists(ctx context.Context, email string, now time.Time) (bool, error)
}

// SpamChecker classifies an address; see reputation.Checker.
type SpamChecker interface {
	Check(ctx context.Context, addr string) (bool, error)
}

// Request is a token url request as submitted by a researcher.
type Request struct {
	Email           string
	NoticeID        uint64
	CaptchaResponse string
	RemoteIP        string
	Subject         authz.Subject
}

// Decision is the validator's verdict. Reason is empty when accepted.
type Decision struct {
	Notice model.Notice
	Reason string
}

func (d Decision) Accepted() bool { return d.Reason == "" }

// Validator runs the issuance checks. The first failing check decides;
// later, costlier checks are skipped.
type Validator struct {
	Notices    NoticeFinder
	Tokens     ActiveTokenLookup
	Captcha    captcha.Verifier
	Reputation SpamChecker
	Authz      authz.Checker
	Now        func() time.Time
}

func NewValidator(n NoticeFinder, t ActiveTokenLookup, c captcha.Verifier, r SpamChecker, a authz.Checker) *Validator {
	return &Validator{Notices: n, Tokens: t, Captcha: c, Reputation: r, Authz: a, Now: time.Now}
}

// Validate returns ErrUnauthorized when the notice exists but the subject
// may not create tokens for it. Store failures are returned as errors;
// everything else is a Decision. req.Email is expected to be normalized.
func (v *Validator) Validate(ctx context.Context, req Request) (Decision, error) {
	notice, err := v.Notices.GetByID(ctx, req.NoticeID)
	if errors.Is(err, repository.ErrNotFound) {
		return Decision{Reason: ReasonNoticeNotFound}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("find notice: %w", err)
	}
	if v.Authz != nil && !v.Authz.Check(authz.CreateAccessToken, req.Subject) {
		return Decision{}, ErrUnauthorized
	}
	d := Decision{Notice: notice}

	ok, err := v.Captcha.Verify(ctx, req.CaptchaResponse, req.RemoteIP)
	if err != nil {
		log.Warnj(log.JSON{"msg": "captcha verification failed", "error": err.Error()})
	}
	if err != nil || !ok {
		d.Reason = ReasonCaptchaFailed
		return d, nil
	}

	used, err := v.Tokens.ActiveTemporaryExists(ctx, req.Email, v.Now())
	if err != nil {
		return Decision{}, fmt.Errorf("active token lookup: %w", err)
	}
	if used {
		d.Reason = ReasonEmailUsed
		return d, nil
	}

	spam, err := v.Reputation.Check(ctx, req.Email)
	if err != nil || spam {
		if err != nil {
			log.Infoj(log.JSON{"msg": "rejecting malformed email", "email": email.Redact(req.Email)})
		}
		d.Reason = ReasonEmailInvalid
		return d, nil
	}
	return d, nil
}
