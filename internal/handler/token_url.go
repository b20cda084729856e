package handler // handler defines http handlers

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/labstack/gommon/log"

    "github.com/iliyamo/token-url-service/internal/authz"
    "github.com/iliyamo/token-url-service/internal/middleware"
    "github.com/iliyamo/token-url-service/internal/model"
    "github.com/iliyamo/token-url-service/internal/repository"
    "github.com/iliyamo/token-url-service/internal/tokenurl"
)

// User-facing outcome messages.
const (
    msgRequested       = "A new single-use link has been generated and sent to your email address."
    msgPermanent       = "A permanent URL for this notice has been created. You can view it below."
    msgDisabled        = "Documents notification has been disabled."
    msgTokenNotFound   = "Token url was not found."
    msgWrongToken      = "Wrong token provided."
    msgInvalidNoticeID = "Invalid notice id."
    msgBadBody         = "Invalid request body."
    msgInternal        = "Something went wrong, please try again later."
)

// TokenURLService is implemented by *tokenurl.Manager.
type TokenURLService interface {
    RequestToken(ctx context.Context, req tokenurl.Request) (model.TokenURL, error)
    IssuePermanent(ctx context.Context, owner authz.Subject, noticeID uint64) (model.TokenURL, error)
    DisableNotifications(ctx context.Context, id uint64, secret string) error
}

// TokenURLHandler serves the token url endpoints.  Every outcome is a
// redirect-style body naming where a browser client should go next.
type TokenURLHandler struct {
    Manager TokenURLService
    Notices tokenurl.NoticeFinder
}

func NewTokenURLHandler(m TokenURLService, notices tokenurl.NoticeFinder) *TokenURLHandler {
    if m == nil || notices == nil {
        panic("nil dependency passed to NewTokenURLHandler")
    }
    return &TokenURLHandler{Manager: m, Notices: notices}
}

// ----- DTOs -----

type requestTokenReq struct {
    Email           string `json:"email"`
    CaptchaResponse string `json:"captcha_response"`
}

type noticePart struct {
    ID         uint64 `json:"id"`
    Title      string `json:"title"`
    Restricted bool   `json:"restricted"`
}

type tokenURLPart struct {
    ID           uint64     `json:"id"`
    Email        string     `json:"email"`
    Token        string     `json:"token,omitempty"`
    NoticeID     *uint64    `json:"notice_id"`
    ExpiresAt    *time.Time `json:"expiration_date"`
    ValidForever bool       `json:"valid_forever"`
    Active       bool       `json:"active"`
}

type redirectResp struct {
    RedirectTo string        `json:"redirect_to"`
    Notice     string        `json:"notice,omitempty"`
    Alerts     []string      `json:"alerts,omitempty"`
    TokenURL   *tokenURLPart `json:"token_url,omitempty"`
}

type newFormResp struct {
    Notice   noticePart `json:"notice"`
    TokenURL struct {
        Email string `json:"email"`
    } `json:"token_url"`
}

func requestAccessPath(id string) string { return "/notices/" + id + "/request_access" }
func noticePath(id string) string        { return "/notices/" + id }

const rootPath = "/"

func alert(c echo.Context, status int, to string, msgs ...string) error {
    return c.JSON(status, redirectResp{RedirectTo: to, Alerts: msgs})
}

func parseID(s string) (uint64, bool) {
    id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
    return id, err == nil && id > 0
}

// NewForm handles GET /v1/notices/:id/token_urls/new and returns what a
// client needs to render the request form.
func (h *TokenURLHandler) NewForm(c echo.Context) error {
    raw := c.Param("id")
    id, ok := parseID(raw)
    if !ok {
        return alert(c, http.StatusBadRequest, rootPath, msgInvalidNoticeID)
    }
    n, err := h.Notices.GetByID(c.Request().Context(), id)
    if errors.Is(err, repository.ErrNotFound) {
        return alert(c, http.StatusNotFound, rootPath, tokenurl.ReasonNoticeNotFound)
    }
    if err != nil {
        return h.internal(c, rootPath, "load notice", err)
    }
    var resp newFormResp
    resp.Notice = noticePart{ID: n.ID, Title: n.Title, Restricted: n.Restricted}
    return c.JSON(http.StatusOK, resp)
}

// RequestToken handles POST /v1/notices/:id/token_urls.  The secret is
// only ever mailed, never returned.
func (h *TokenURLHandler) RequestToken(c echo.Context) error {
    raw := c.Param("id")
    back := requestAccessPath(raw)
    id, ok := parseID(raw)
    if !ok {
        return alert(c, http.StatusBadRequest, back, msgInvalidNoticeID)
    }
    var req requestTokenReq
    if err := c.Bind(&req); err != nil {
        return alert(c, http.StatusBadRequest, back, msgBadBody)
    }

    subject := middleware.CurrentSubject(c)
    _, err := h.Manager.RequestToken(c.Request().Context(), tokenurl.Request{
        Email:           req.Email,
        NoticeID:        id,
        CaptchaResponse: req.CaptchaResponse,
        RemoteIP:        c.RealIP(),
        Subject:         subject,
    })
    var ve *tokenurl.ValidationError
    switch {
    case err == nil:
        return c.JSON(http.StatusCreated, redirectResp{RedirectTo: back, Notice: msgRequested})
    case errors.As(err, &ve):
        return alert(c, http.StatusUnprocessableEntity, back, ve.Messages...)
    case errors.Is(err, tokenurl.ErrUnauthorized):
        return h.denied(c, back, subject.Authenticated())
    default:
        return h.internal(c, back, "request token url", err)
    }
}

// IssuePermanent handles POST /v1/notices/:id/token_urls/permanent for
// subjects holding generate_permanent_notice_token_urls.
func (h *TokenURLHandler) IssuePermanent(c echo.Context) error {
    raw := c.Param("id")
    back := noticePath(raw)
    id, ok := parseID(raw)
    if !ok {
        return alert(c, http.StatusBadRequest, back, msgInvalidNoticeID)
    }
    subject := middleware.CurrentSubject(c)
    tok, err := h.Manager.IssuePermanent(c.Request().Context(), subject, id)
    var ve *tokenurl.ValidationError
    switch {
    case err == nil:
        return c.JSON(http.StatusCreated, redirectResp{RedirectTo: back, Notice: msgPermanent, TokenURL: tokenView(tok)})
    case errors.Is(err, tokenurl.ErrNotFound):
        return alert(c, http.StatusNotFound, back, tokenurl.ReasonNoticeNotFound)
    case errors.As(err, &ve):
        return alert(c, http.StatusUnprocessableEntity, back, ve.Messages...)
    case errors.Is(err, tokenurl.ErrUnauthorized):
        return h.denied(c, back, subject.Authenticated())
    default:
        return h.internal(c, back, "issue permanent token url", err)
    }
}

// DisableNotifications handles GET and POST
// /v1/token_urls/:id/disable_documents_notification?token=... as linked
// from confirmation mails.  The token is the only credential.
func (h *TokenURLHandler) DisableNotifications(c echo.Context) error {
    id, ok := parseID(c.Param("id"))
    if !ok {
        return alert(c, http.StatusNotFound, rootPath, msgTokenNotFound)
    }
    secret := c.QueryParam("token")
    if secret == "" {
        secret = c.FormValue("token")
    }
    err := h.Manager.DisableNotifications(c.Request().Context(), id, secret)
    switch {
    case err == nil:
        return c.JSON(http.StatusOK, redirectResp{RedirectTo: rootPath, Notice: msgDisabled})
    case errors.Is(err, tokenurl.ErrNotFound):
        return alert(c, http.StatusNotFound, rootPath, msgTokenNotFound)
    case errors.Is(err, tokenurl.ErrInvalidSecret):
        log.Warnj(log.JSON{"msg": "wrong token for notification disable", "token_url_id": id, "ip": c.RealIP()})
        return alert(c, http.StatusBadRequest, rootPath, msgWrongToken)
    default:
        return h.internal(c, rootPath, "disable documents notification", err)
    }
}

func tokenView(t model.TokenURL) *tokenURLPart {
    return &tokenURLPart{
        ID:           t.ID,
        Email:        t.Email,
        Token:        t.Token,
        NoticeID:     t.NoticeID,
        ExpiresAt:    t.ExpiresAt,
        ValidForever: t.ValidForever,
        Active:       t.IsActive(time.Now()),
    }
}

func (h *TokenURLHandler) denied(c echo.Context, to string, authenticated bool) error {
    if !authenticated {
        return alert(c, http.StatusUnauthorized, to, "You need to sign in to do that.")
    }
    return alert(c, http.StatusForbidden, to, "You are not authorized to do that.")
}

func (h *TokenURLHandler) internal(c echo.Context, to, op string, err error) error {
    log.Errorj(log.JSON{"msg": op + " failed", "path": c.Path(), "error": err.Error()})
    return alert(c, http.StatusInternalServerError, to, msgInternal)
}
