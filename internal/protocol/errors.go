package protocol

import "errors"

// Sentinel errors mirroring domain.ErrorCode. The Registry and the Codec
// wrap ErrParsing for every decode failure; the others are declared for
// the remaining codes and are not returned by this package.
var (
	ErrParsing   = errors.New("protocol: parsing")
	ErrMalformed = errors.New("protocol: malformed")
	ErrWait      = errors.New("protocol: wait")
	ErrMissing   = errors.New("protocol: missing")
	ErrConflict  = errors.New("protocol: conflict")
)
