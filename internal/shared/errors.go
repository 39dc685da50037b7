package shared

import "errors"

var (
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
	// ErrAuditDisabled is returned by a nil AuditLogger.
	ErrAuditDisabled = errors.New("audit logger not initialised")
)
