package dexerror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Kind string

const (
	KindInternal         = Kind("internal")
	KindFieldMissing     = Kind("field_missing")
	KindUnorderableField = Kind("unorderable_field")
	KindInvalidPageSize  = Kind("invalid_page_size")
	KindDuplicateID      = Kind("duplicate_id")
	KindRecordNotFound   = Kind("record_not_found")
	KindInvalidQuery     = Kind("invalid_query")
	KindInvalidRecord    = Kind("invalid_record")
	KindInvalidConfig    = Kind("invalid_config")
)

// kindSentinel lets callers match any error of a given kind with errors.Is.
type kindSentinel Kind

func (k kindSentinel) Error() string {
	return string(k)
}

var (
	ErrInternal         error = kindSentinel(KindInternal)
	ErrFieldMissing     error = kindSentinel(KindFieldMissing)
	ErrUnorderableField error = kindSentinel(KindUnorderableField)
	ErrInvalidPageSize  error = kindSentinel(KindInvalidPageSize)
	ErrDuplicateID      error = kindSentinel(KindDuplicateID)
	ErrRecordNotFound   error = kindSentinel(KindRecordNotFound)
	ErrInvalidQuery     error = kindSentinel(KindInvalidQuery)
	ErrInvalidRecord    error = kindSentinel(KindInvalidRecord)
	ErrInvalidConfig    error = kindSentinel(KindInvalidConfig)
)

type ErrorDetail struct {
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

type InternalErrorDetail struct {
	ErrorID string `json:"error_id"`
	ErrorDetail
}

type PublicErrorDetail struct {
	Kind Kind `json:"kind"`
	ErrorDetail
}

type DexError interface {
	Error() string
	Kind() Kind
	ExitCode() int
	PublicErrorDetail() PublicErrorDetail
	InternalErrorDetail() InternalErrorDetail
}

type errorOptions struct {
	kind     Kind
	public   PublicErrorDetail
	internal InternalErrorDetail
	cause    error
}

func (e *errorOptions) Kind() Kind {
	return e.kind
}

func (e *errorOptions) PublicErrorDetail() PublicErrorDetail {
	return e.public
}

func (e *errorOptions) InternalErrorDetail() InternalErrorDetail {
	return e.internal
}

// ExitCode is the process exit status the CLI uses for this error.
func (e *errorOptions) ExitCode() int {
	switch e.kind {
	case KindInvalidQuery, KindInvalidConfig, KindInvalidPageSize:
		return 2
	case KindInternal:
		return 70
	default:
		return 1
	}
}

func (e *errorOptions) Error() string {
	msg := e.public.Message
	if len(e.public.Data) > 0 {
		keys := make([]string, 0, len(e.public.Data))
		for k := range e.public.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.public.Data[k]))
		}
		msg += " (" + strings.Join(parts, " ") + ")"
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *errorOptions) Is(target error) bool {
	k, ok := target.(kindSentinel)
	return ok && Kind(k) == e.kind
}

func (e *errorOptions) Unwrap() error {
	return e.cause
}

type ErrorOption func(*errorOptions)

func WithKind(kind Kind) ErrorOption {
	return func(opts *errorOptions) {
		opts.kind = kind
	}
}

func WithErrorID(errorID string) ErrorOption {
	return func(opts *errorOptions) {
		opts.internal.ErrorID = errorID
	}
}

func WithPublicMessage(message string) ErrorOption {
	return func(opts *errorOptions) {
		opts.public.Message = message
	}
}

func WithInternalMessage(message string) ErrorOption {
	return func(opts *errorOptions) {
		opts.internal.Message = message
	}
}

func WithPublicData(key string, value interface{}) ErrorOption {
	return func(opts *errorOptions) {
		if opts.public.Data == nil {
			opts.public.Data = make(map[string]interface{})
		}
		opts.public.Data[key] = value
	}
}

func WithInternalData(key string, value interface{}) ErrorOption {
	return func(opts *errorOptions) {
		if opts.internal.Data == nil {
			opts.internal.Data = make(map[string]interface{})
		}
		opts.internal.Data[key] = value
	}
}

// WithCause wraps err; errors.Is and errors.As see through to it.
func WithCause(err error) ErrorOption {
	return func(opts *errorOptions) {
		opts.cause = err
	}
}

func New(options ...ErrorOption) DexError {
	opts := errorOptions{}
	for _, option := range options {
		option(&opts)
	}

	if opts.kind == "" {
		opts.kind = KindInternal
	}
	opts.public.Kind = opts.kind

	if opts.public.Message == "" {
		opts.public.Message = "internal error"
	}

	if opts.internal.ErrorID == "" {
		opts.internal.ErrorID = string(opts.kind)
	}

	return &opts
}

func asError(err error) (DexError, bool) {
	var maybeErr DexError
	if errors.As(err, &maybeErr) {
		return maybeErr, true
	}

	return nil, false
}

func AsDexError(err error) DexError {
	de, ok := asError(err)
	if ok {
		return de
	}

	return New(
		WithKind(KindInternal),
		WithErrorID("unknown_error"),
		WithPublicMessage("internal error"),
		WithInternalMessage("non-API error: "+err.Error()),
		WithCause(err),
	)
}

// KindOf reports the kind of the first DexError in err's chain, or KindInternal.
func KindOf(err error) Kind {
	if de, ok := asError(err); ok {
		return de.Kind()
	}
	return KindInternal
}
