// Package dberror classifies errors returned by the core and history
// databases so the stats API can tell an outage from a bug.
package dberror

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorType classifies database errors for appropriate handling.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeConnectivity indicates the database is unreachable.
	ErrorTypeConnectivity
	ErrorTypeTimeout
	ErrorTypeAuth
	// ErrorTypeQuery indicates the statement itself was rejected.
	ErrorTypeQuery
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeConnectivity:
		return "connectivity"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeQuery:
		return "query"
	default:
		return "unknown"
	}
}

// IsTransient reports whether the error is likely to go away on its own.
// Cancellation by the caller is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch Classify(err) {
	case ErrorTypeConnectivity, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// Classify determines the type of database error.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifySQLState(pgErr.Code)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return ErrorTypeConnectivity
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return ErrorTypeTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
		return ErrorTypeConnectivity
	}

	errStr := strings.ToLower(err.Error())
	for _, p := range connectivityPatterns {
		if strings.Contains(errStr, p) {
			return ErrorTypeConnectivity
		}
	}
	for _, p := range timeoutPatterns {
		if strings.Contains(errStr, p) {
			return ErrorTypeTimeout
		}
	}
	return ErrorTypeUnknown
}

// classifySQLState maps a PostgreSQL SQLSTATE to an error type.
func classifySQLState(code string) ErrorType {
	switch {
	case code == "57014": // query_canceled, raised by statement_timeout
		return ErrorTypeTimeout
	case code == "57P01", code == "57P02", code == "57P03", code == "53300":
		return ErrorTypeConnectivity
	case strings.HasPrefix(code, "08"):
		return ErrorTypeConnectivity
	case strings.HasPrefix(code, "28"):
		return ErrorTypeAuth
	case strings.HasPrefix(code, "42"):
		return ErrorTypeQuery
	default:
		return ErrorTypeUnknown
	}
}

var connectivityPatterns = []string{
	"connection refused",
	"connection reset",
	"connection closed",
	"conn closed",
	"no such host",
	"dial tcp",
	"eof",
	"broken pipe",
	"network is unreachable",
	"closed pool",
}

var timeoutPatterns = []string{
	"timeout",
	"deadline exceeded",
	"timed out",
}
