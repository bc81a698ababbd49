package service

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"carmen/internal/infra"
	"carmen/internal/pricing"
)

// isTransient reports whether err is a timeout or connectivity failure of a
// backing store, i.e. worth retrying later.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, infra.ErrCircuitOpen) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset")
}

// storeErr wraps transient store failures as pricing.TransientError and
// passes everything else (typed domain errors included) through.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *pricing.TransientError
	if errors.As(err, &te) {
		return err
	}
	if isTransient(err) {
		return &pricing.TransientError{Op: op, Err: err}
	}
	return err
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates (UTC).
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
