package protocol

import (
	"errors"
	"fmt"
)

// DecodeError reports malformed or truncated binary input.
type DecodeError struct {
	Op     string // what was being decoded
	Offset int    // position in the source slice where decoding failed
	Need   int    // bytes required
	Have   int    // bytes available
	Reason string // set instead of Need/Have for non-length failures
}

func (e *DecodeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("decode %s at offset %d: %s", e.Op, e.Offset, e.Reason)
	}
	return fmt.Sprintf("decode %s at offset %d: need %d bytes, have %d", e.Op, e.Offset, e.Need, e.Have)
}

// IsDecodeError reports whether err (or anything it wraps) is a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Variant access errors.
var (
	ErrVariantIndex = errors.New("variant index out of range")
	ErrVariantType  = errors.New("variant type mismatch")
	ErrVariantCount = errors.New("too many variant arguments")
)
