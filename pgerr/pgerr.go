// Package pgerr defines the error taxonomy shared by every layer of the
// engine: a distinct exported type per §7 error kind, each wrapping its
// cause so errors.As/errors.Is work across package boundaries, following
// the teacher's fmt.Errorf("pkg: verb: %w", err) wrapping idiom at call
// sites (proxy/postgres/conn.go, proxy/mysql/conn.go).
package pgerr

import (
	"fmt"

	"github.com/mickamy/pgwire/message"
)

// ConnectionError wraps a socket failure, unexpected EOF, TLS failure, or
// protocol violation. The connection is no longer usable.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("pgwire: connection: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthenticationError wraps a credential or auth-mechanism failure during
// startup.
type AuthenticationError struct {
	Op  string
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("pgwire: authentication: %s: %v", e.Op, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// PostgresError wraps a structured ErrorResponse from the server. The
// connection remains usable once the Sync barrier that follows it clears.
type PostgresError struct {
	message.Fields
}

func (e *PostgresError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("pgwire: %s (SQLSTATE %s): %s: %s", e.Severity, e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("pgwire: %s (SQLSTATE %s): %s", e.Severity, e.Code, e.Message)
}

// SQLSTATE class prefixes used by the predicate helpers below. Not an
// exhaustive hierarchy of types — a closed set of named predicates is more
// idiomatic Go than mirroring PostgreSQL's class/subclass tree one type per
// node.
const (
	classIntegrityConstraintViolation = "23"
	classTransactionRollback           = "40"
	classOperatorIntervention          = "57"
)

const (
	codeUniqueViolation     = "23505"
	codeSerializationFailure = "40001"
	codeQueryCanceled        = "57014"
)

// IsUniqueViolation reports whether err is a PostgresError for a unique
// constraint violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool { return hasCode(err, codeUniqueViolation) }

// IsSerializationFailure reports whether err is a PostgresError for a
// serialization failure under SERIALIZABLE isolation (SQLSTATE 40001).
func IsSerializationFailure(err error) bool { return hasCode(err, codeSerializationFailure) }

// IsQueryCanceled reports whether err is a PostgresError raised by a
// protocol-level cancellation request (SQLSTATE 57014).
func IsQueryCanceled(err error) bool { return hasCode(err, codeQueryCanceled) }

// IsIntegrityConstraintViolation reports whether err's SQLSTATE class is
// "23" (check/foreign key/not-null/unique violations).
func IsIntegrityConstraintViolation(err error) bool {
	return hasClass(err, classIntegrityConstraintViolation)
}

// IsTransactionRollback reports whether err's SQLSTATE class is "40".
func IsTransactionRollback(err error) bool {
	return hasClass(err, classTransactionRollback)
}

// IsOperatorIntervention reports whether err's SQLSTATE class is "57"
// (admin shutdown, query canceled, connection lost to superuser action).
func IsOperatorIntervention(err error) bool {
	return hasClass(err, classOperatorIntervention)
}

func hasCode(err error, code string) bool {
	pe, ok := err.(*PostgresError)
	return ok && pe.Code == code
}

func hasClass(err error, class string) bool {
	pe, ok := err.(*PostgresError)
	return ok && len(pe.Code) >= 2 && pe.Code[:2] == class
}

// InterfaceError wraps misuse of the API (concurrent use of one
// connection, cursor outside a transaction, mismatched parameter type). It
// never reaches the wire and never invalidates the connection.
type InterfaceError struct {
	Msg string
}

func (e *InterfaceError) Error() string { return "pgwire: interface: " + e.Msg }

// DataError wraps an encode/decode failure for a single value. The
// connection remains usable.
type DataError struct {
	OID uint32
	Op  string
	Err error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("pgwire: data: oid %d: %s: %v", e.OID, e.Op, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// TimeoutError wraps a command or acquire-timeout deadline being exceeded.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("pgwire: timeout: %s: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// PoolError wraps a pool-level failure: closed pool, exhausted acquisition,
// or a health check rejecting every idle connection.
type PoolError struct {
	Op  string
	Err error
}

func (e *PoolError) Error() string {
	return fmt.Sprintf("pgwire: pool: %s: %v", e.Op, e.Err)
}

func (e *PoolError) Unwrap() error { return e.Err }

// FromErrorResponse converts a decoded wire ErrorResponse into a
// *PostgresError.
func FromErrorResponse(m *message.ErrorResponse) *PostgresError {
	return &PostgresError{Fields: m.Fields}
}
