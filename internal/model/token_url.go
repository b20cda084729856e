package model

import "time"

// TokenURL represents a row in the `token_urls` table.  A token URL
// grants its holder access to a single notice, either until ExpiresAt
// or, for permanent tokens, indefinitely.  Token is the secret part of
// the URL; it is also the capability required to switch off the
// documents notification from an email footer.
//
// Fields:
//  ID                    – primary key identifier.
//  Email                 – normalized address the token was issued to.
//  Token                 – 64 char hex secret, never regenerated.
//  NoticeID              – notice the token grants access to (nullable).
//  UserID                – owner of a permanent token (nullable).
//  ExpiresAt             – expiration timestamp, nil for permanent tokens.
//  ValidForever          – permanent tokens ignore ExpiresAt.
//  DocumentsNotification – whether document updates are mailed; only ever
//                          flipped from true to false.
//  CreatedAt / UpdatedAt – bookkeeping timestamps.
type TokenURL struct {
    ID                    uint64     // token_urls.id
    Email                 string     // token_urls.email
    Token                 string     // token_urls.token
    NoticeID              *uint64    // token_urls.notice_id (nullable)
    UserID                *uint64    // token_urls.user_id (nullable)
    ExpiresAt             *time.Time // token_urls.expiration_date (nullable)
    ValidForever          bool       // token_urls.valid_forever
    DocumentsNotification bool       // token_urls.documents_notification
    CreatedAt             time.Time  // token_urls.created_at
    UpdatedAt             time.Time  // token_urls.updated_at
}

// IsActive reports whether the token still grants access at now.  It is
// the in-memory form of the repository's ActiveTemporaryExists predicate
// (valid_forever or expiration_date > now); keep the two in step.
func (t TokenURL) IsActive(now time.Time) bool {
    if t.ValidForever {
        return true
    }
    return t.ExpiresAt != nil && t.ExpiresAt.After(now)
}
