package pmx

import "github.com/pkg/errors"

// Failure kinds. Every error produced by this package wraps one of
// these, so callers can classify with errors.Is or errors.Cause.
// Transport errors from the underlying reader or writer pass through
// untouched apart from added context.
var (
	// ErrMalformedHeader covers a bad magic, an unsupported version,
	// invalid global values and a stream that ends inside the header.
	ErrMalformedHeader = errors.New("pmx: malformed header")

	// ErrTextEncoding covers string payloads that are invalid for the
	// text encoding the header declares.
	ErrTextEncoding = errors.New("pmx: invalid text encoding")

	// ErrMalformedSection covers unknown discriminators, out of range
	// references, count mismatches and truncated section payloads.
	ErrMalformedSection = errors.New("pmx: malformed section")

	// ErrInvariant is reported by Encode before anything is written
	// when the model or header violates a structural rule.
	ErrInvariant = errors.New("pmx: model invariant violation")
)

// errUnexpectedEOF is raised by the stream primitives when the source
// dries up mid element. The decoder rewraps it with the section that
// was being parsed, as ErrMalformedHeader or ErrMalformedSection.
var errUnexpectedEOF = errors.New("unexpected end of stream")
