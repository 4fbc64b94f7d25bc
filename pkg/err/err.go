package errprocess

import (
	"errors"
	"fmt"
)

// Category error taxonomy, every Code belongs to exactly one
type Category string

const (
	// CategoryTransport connection drop / timeout
	CategoryTransport Category = "transport"
	// CategoryValidation bad input from the caller
	CategoryValidation Category = "validation"
	// CategoryPersistence store unavailable or write failure
	CategoryPersistence Category = "persistence"
	// CategoryCrypto key or decrypt failure
	CategoryCrypto Category = "crypto"
	// CategoryExhausted retry bound reached
	CategoryExhausted Category = "exhausted"
)

// Code closed set of error kinds, also used as the wire `err` value
type Code string

const (
	// RoomIDMissing send / join without a room id
	RoomIDMissing Code = "room_id_missing"
	// CiphertextOrIVMissing send without ciphertext or iv
	CiphertextOrIVMissing Code = "ciphertext_or_iv_missing"
	// InvalidPayload payload could not be decoded or failed a field rule
	InvalidPayload Code = "invalid_payload"
	// Unauthenticated missing or invalid bearer credential
	Unauthenticated Code = "unauthenticated"
	// Forbidden identity is not a participant
	Forbidden Code = "forbidden"
	// NotFound conversation or message does not exist
	NotFound Code = "not_found"
	// SaveFailed persistence write failed
	SaveFailed Code = "save_failed"
	// StoreUnavailable persistence read failed
	StoreUnavailable Code = "store_unavailable"
	// KeyUnavailable conversation key absent or invalid
	KeyUnavailable Code = "key_unavailable"
	// DecryptFailed ciphertext could not be opened
	DecryptFailed Code = "decrypt_failed"
	// RetryExhausted offline entry used up all attempts
	RetryExhausted Code = "retry_exhausted"
	// TransportFailed connection not available or dropped
	TransportFailed Code = "transport_error"
)

var categories = map[Code]Category{
	RoomIDMissing:         CategoryValidation,
	CiphertextOrIVMissing: CategoryValidation,
	InvalidPayload:        CategoryValidation,
	Unauthenticated:       CategoryValidation,
	Forbidden:             CategoryValidation,
	NotFound:              CategoryValidation,
	SaveFailed:            CategoryPersistence,
	StoreUnavailable:      CategoryPersistence,
	KeyUnavailable:        CategoryCrypto,
	DecryptFailed:         CategoryCrypto,
	RetryExhausted:        CategoryExhausted,
	TransportFailed:       CategoryTransport,
}

// Category return the taxonomy category of the code
func (c Code) Category() Category {
	return categories[c]
}

// Error tagged error carried through the app layer
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New create a tagged error, cause may be nil
func New(code Code, cause error) *Error {
	return &Error{Code: code, Err: cause}
}

// CodeOf extract the code of err, ok is false for untagged errors
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// Is report whether err carries code
func Is(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
