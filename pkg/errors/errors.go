package errors

import (
	stderrors "errors"
	"fmt"
)

// Code identifies why a resolution step failed. Callers of the exported
// lookup functions only ever see a zero address; the code is kept for
// tests and diagnostics.
type Code uint32

const (
	ErrNone Code = iota
	ErrInvalidBase
	ErrDosSignature
	ErrHeaderOffset
	ErrNtSignature
	ErrImageFormat
	ErrNoExports
	ErrOrdinalBelowBase
	ErrOrdinalRange
	ErrSymbolNotFound
	ErrIndexOutOfRange
	ErrForwarded
	ErrModuleNotFound
	ErrNoEnvironment
	ErrUnreadable
	ErrRegionOverlap

	codeCount
)

var messages = [codeCount]string{
	ErrNone:             "no error",
	ErrInvalidBase:      "invalid image base",
	ErrDosSignature:     "bad dos signature",
	ErrHeaderOffset:     "nt header offset out of range",
	ErrNtSignature:      "bad nt signature",
	ErrImageFormat:      "image is not pe32+",
	ErrNoExports:        "image has no exports",
	ErrOrdinalBelowBase: "ordinal below export base",
	ErrOrdinalRange:     "ordinal does not fit in 16 bits",
	ErrSymbolNotFound:   "symbol not found",
	ErrIndexOutOfRange:  "export index out of range",
	ErrForwarded:        "export is forwarded",
	ErrModuleNotFound:   "module not found",
	ErrNoEnvironment:    "no thread or process environment block",
	ErrUnreadable:       "address not readable",
	ErrRegionOverlap:    "region overlaps an existing mapping",
}

type ResolveError struct {
	Code Code
}

func (e *ResolveError) Error() string {
	if e.Code < codeCount {
		return messages[e.Code]
	}
	return fmt.Sprintf("%d", e.Code)
}

// one value per code so failure paths never allocate
var preallocated [codeCount]ResolveError

func init() {
	for i := range preallocated {
		preallocated[i].Code = Code(i)
	}
}

// New returns the error for code.
func New(code Code) error {
	if code < codeCount {
		return &preallocated[code]
	}
	return &ResolveError{Code: code}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf unwraps err looking for a ResolveError. A nil error reports ErrNone.
func CodeOf(err error) Code {
	if err == nil {
		return ErrNone
	}
	var re *ResolveError
	if stderrors.As(err, &re) {
		return re.Code
	}
	return ErrNone
}
