package model

import "time"

// Notice is the read model of a row in the `notices` table.  The table is
// owned by the wider application; this service only looks notices up by
// id to decide whether a token may be issued for them.
type Notice struct {
    ID         uint64    // notices.id
    Title      string    // notices.title
    Restricted bool      // notices.restricted
    CreatedAt  time.Time // notices.created_at
}
