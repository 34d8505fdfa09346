package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransient     = errors.New("transient network error")
	ErrNotFound      = errors.New("not found")
	ErrAmbiguous     = errors.New("ambiguous match")
	ErrParse         = errors.New("parse error")
	ErrStorage       = errors.New("storage error")
	ErrBusy          = errors.New("job already running")
	ErrCancelled     = errors.New("cancelled")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
)

// ErrorKind is the stable, serializable name of an error category.
type ErrorKind string

const (
	KindTransient     ErrorKind = "transient"
	KindNotFound      ErrorKind = "not_found"
	KindAmbiguous     ErrorKind = "ambiguous"
	KindParse         ErrorKind = "parse"
	KindStorage       ErrorKind = "storage"
	KindBusy          ErrorKind = "busy"
	KindCancelled     ErrorKind = "cancelled"
	KindValidation    ErrorKind = "validation"
	KindConfiguration ErrorKind = "configuration"
	KindUnknown       ErrorKind = "unknown"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf classifies err against the sentinel markers. Context cancellation is
// reported as cancelled and deadline expiry as transient.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrStorage):
		return KindStorage
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAmbiguous):
		return KindAmbiguous
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	default:
		return KindUnknown
	}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// IsFatal reports whether err must abort a whole run rather than a single entry.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindStorage, KindCancelled:
		return true
	default:
		return false
	}
}

// EntryError attaches card identity to a per-entry failure so callers can act
// on it without consulting logs.
type EntryError struct {
	Name            string
	SetCode         string
	CollectorNumber string
	Err             error
}

func (e *EntryError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.Name)
	if e.SetCode != "" || e.CollectorNumber != "" {
		b.WriteString(" (")
		b.WriteString(strings.ToUpper(e.SetCode))
		if e.CollectorNumber != "" {
			if e.SetCode != "" {
				b.WriteByte(' ')
			}
			b.WriteString(e.CollectorNumber)
		}
		b.WriteByte(')')
	}
	b.WriteString(" [")
	b.WriteString(string(KindOf(e.Err)))
	b.WriteString("]")
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *EntryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
