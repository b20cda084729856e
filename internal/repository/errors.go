// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrNotFound indicates that a notice or token url does not
// exist, while ErrEmailInUse signals that another live token already
// holds the per-email issuance lock.
package repository

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a looked-up row does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrEmailInUse is returned when a temporary token is created for an
// email that still has an active token. Callers surface it with the same
// message as the pre-insert duplicate check.
var ErrEmailInUse = errors.New("email has an active token")

// FieldError reports a column-level constraint the database refused,
// such as a value that is too long.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return fmt.Sprintf("%s %s", e.Field, e.Message) }

const (
	errDupEntry      = 1062
	errDeadlock      = 1213
	errLockTimeout   = 1205
	errDataTooLong   = 1406
	errColumnNotNull = 1048
)

var columnName = regexp.MustCompile(`column '([^']+)'`)

func mysqlErrNumber(err error) (uint16, string, bool) {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number, me.Message, true
	}
	return 0, "", false
}

// fieldError converts column-level MySQL failures into a FieldError and
// returns any other error unchanged.
func fieldError(err error) error {
	num, msg, ok := mysqlErrNumber(err)
	if !ok {
		return err
	}
	field := "value"
	if m := columnName.FindStringSubmatch(msg); m != nil {
		field = m[1]
	}
	switch num {
	case errDataTooLong:
		return &FieldError{Field: field, Message: "is too long"}
	case errColumnNotNull:
		return &FieldError{Field: field, Message: "can't be blank"}
	}
	return err
}
