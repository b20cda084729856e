// Package queue defines message payloads exchanged over the message broker.
package queue

// ConfirmationQueue is the durable queue carrying new token url
// confirmations to the mailer.
const ConfirmationQueue = "token_urls.confirmation"

// TokenURLCreatedEvent is published after a temporary token url has been
// stored.  It carries everything the mailer needs to write the
// confirmation, including the secret, so the consumer never has to query
// the primary database.
type TokenURLCreatedEvent struct {
    TokenURLID            uint64 `json:"token_url_id"`
    Email                 string `json:"email"`
    Token                 string `json:"token"`
    NoticeID              uint64 `json:"notice_id"`
    NoticeTitle           string `json:"notice_title"`
    ExpiresAt             string `json:"expires_at"`
    DocumentsNotification bool   `json:"documents_notification"`
    CreatedAt             string `json:"created_at"`
}
