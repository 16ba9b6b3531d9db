package taxonomy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// now is swapped in tests.
var now = time.Now

// Recovery is the recovery hint carried by an ErrorRecord.
type Recovery struct {
	Strategy   Strategy `json:"strategy"`
	RetrySafe  bool     `json:"retrySafe"`
	Fallback   string   `json:"fallback"`
	Escalation bool     `json:"escalation"`
}

// ErrorRecord is the error value of every failed operation. Records are
// never mutated; the With* helpers return modified copies.
type ErrorRecord struct {
	Code       Code           `json:"code"`
	Message    string         `json:"message"`
	Status     int            `json:"httpStatus"`
	Timestamp  time.Time      `json:"-"`
	RequestID  string         `json:"requestId"`
	Details    map[string]any `json:"details"`
	Recovery   Recovery       `json:"recovery"`
	RetryCount int            `json:"retryCount,omitempty"`

	cause error
}

// New builds a record for code. An empty message takes the catalog default.
// Codes outside the catalog keep their name but get the Unknown policy.
func New(code Code, message string, details map[string]any) *ErrorRecord {
	e, ok := Lookup(code)
	if !ok {
		e = Unknown
		e.Code = code
	}
	if message == "" {
		message = e.Message
	}
	d := make(map[string]any, len(details))
	maps.Copy(d, details)

	return &ErrorRecord{
		Code:      e.Code,
		Message:   message,
		Status:    e.Status,
		Timestamp: now().UTC(),
		RequestID: uuid.NewString(),
		Details:   d,
		Recovery: Recovery{
			Strategy:   e.Strategy,
			RetrySafe:  e.RetrySafe,
			Escalation: e.Escalates(),
		},
	}
}

// Newf is New with a formatted message and no details.
func Newf(code Code, format string, args ...any) *ErrorRecord {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap builds a record for code that unwraps to err.
func Wrap(code Code, err error) *ErrorRecord {
	rec := New(code, err.Error(), nil)
	rec.cause = err
	return rec
}

func (r *ErrorRecord) Error() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

func (r *ErrorRecord) Unwrap() error { return r.cause }

// Entry returns the catalog entry behind the record.
func (r *ErrorRecord) Entry() Entry {
	if e, ok := Lookup(r.Code); ok {
		return e
	}
	return Unknown
}

func (r *ErrorRecord) clone() *ErrorRecord {
	c := *r
	c.Details = maps.Clone(r.Details)
	return &c
}

// WithRetryCount returns a copy annotated with the attempts made.
func (r *ErrorRecord) WithRetryCount(n int) *ErrorRecord {
	c := r.clone()
	c.RetryCount = n
	return c
}

// WithFallback returns a copy carrying a fallback hint.
func (r *ErrorRecord) WithFallback(hint string) *ErrorRecord {
	c := r.clone()
	c.Recovery.Fallback = hint
	return c
}

// WithDetail returns a copy with one more detail entry.
func (r *ErrorRecord) WithDetail(key string, value any) *ErrorRecord {
	c := r.clone()
	if c.Details == nil {
		c.Details = map[string]any{}
	}
	c.Details[key] = value
	return c
}

// As extracts an ErrorRecord from err.
func As(err error) (*ErrorRecord, bool) {
	var rec *ErrorRecord
	if errors.As(err, &rec) {
		return rec, true
	}
	return nil, false
}

// CodeOf returns the taxonomy code carried by err. Context deadline errors
// map to Timeout; anything else without a record is UnknownCode.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if rec, ok := As(err); ok {
		return rec.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return UnknownCode
}

// TimestampFormat is the envelope timestamp layout: UTC with a trailing Z.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Envelope is the wire shape of an error response.
type Envelope struct {
	Error envelopeBody `json:"error"`
}

type envelopeBody struct {
	*ErrorRecord
	Timestamp string `json:"timestamp"`
}

// Envelope wraps the record for the wire.
func (r *ErrorRecord) Envelope() Envelope {
	return Envelope{Error: envelopeBody{
		ErrorRecord: r,
		Timestamp:   r.Timestamp.UTC().Format(TimestampFormat),
	}}
}

// MarshalEnvelope renders the error response JSON.
func (r *ErrorRecord) MarshalEnvelope() ([]byte, error) {
	return json.Marshal(r.Envelope())
}
