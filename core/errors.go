package core

import "errors"

// ErrorKind classifies a TocError so callers outside this module (the HTTP
// layer, the consensus driver) can dispatch without string-matching.
type ErrorKind int

const (
	KindBadInput ErrorKind = iota
	KindCollectionNotFound
	KindAliasNotFound
	KindCollectionAlreadyExists
	KindAliasAlreadyExists
	KindServiceError
	KindStorageUnavailable
)

// TocError is the single error type returned across the public API. It
// wraps a Kind for programmatic dispatch and a human-readable message,
// matching the taxonomy of spec §7.
type TocError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *TocError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *TocError) Unwrap() error { return e.Err }

func newErr(kind ErrorKind, msg string) *TocError {
	return &TocError{Kind: kind, Msg: msg}
}

func wrapErr(kind ErrorKind, msg string, err error) *TocError {
	return &TocError{Kind: kind, Msg: msg, Err: err}
}

func errBadInput(msg string) error                  { return newErr(KindBadInput, msg) }
func errCollectionNotFound(name string) error        { return newErr(KindCollectionNotFound, "collection not found: "+name) }
func errAliasNotFound(name string) error             { return newErr(KindAliasNotFound, "alias not found: "+name) }
func errCollectionAlreadyExists(name string) error   { return newErr(KindCollectionAlreadyExists, "collection already exists: "+name) }
func errAliasAlreadyExists(name string) error        { return newErr(KindAliasAlreadyExists, "alias already exists: "+name) }
func errService(msg string, err error) error         { return wrapErr(KindServiceError, msg, err) }
func errStorageUnavailable(msg string, err error) error {
	return wrapErr(KindStorageUnavailable, msg, err)
}

// Is lets errors.Is match a TocError by Kind when compared against one of
// the sentinel marker values below.
func (e *TocError) Is(target error) bool {
	var other *TocError
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// Sentinel markers usable with errors.Is(err, core.ErrCollectionNotFound), etc.
var (
	ErrCollectionNotFound      = &TocError{Kind: KindCollectionNotFound}
	ErrAliasNotFound           = &TocError{Kind: KindAliasNotFound}
	ErrCollectionAlreadyExists = &TocError{Kind: KindCollectionAlreadyExists}
	ErrAliasAlreadyExists      = &TocError{Kind: KindAliasAlreadyExists}
	ErrBadInput                = &TocError{Kind: KindBadInput}
	ErrServiceError            = &TocError{Kind: KindServiceError}
	ErrStorageUnavailable      = &TocError{Kind: KindStorageUnavailable}
)
