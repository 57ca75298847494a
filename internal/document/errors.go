package document

import "errors"

var (
	// ErrEndOfSequence is returned by Iterator.Next once the match
	// sequence is consumed. It is an expected terminal condition, not
	// a failure.
	ErrEndOfSequence = errors.New("document: end of sequence")

	// ErrUseAfterRelease is returned by any operation on a released
	// iterator.
	ErrUseAfterRelease = errors.New("document: iterator used after release")

	// ErrStaleReference is returned when a match set is dereferenced
	// after the document was mutated or replaced.
	ErrStaleReference = errors.New("document: stale reference after mutation")

	// ErrIndexOutOfRange is returned by positional access beyond the
	// match count.
	ErrIndexOutOfRange = errors.New("document: index out of range")
)
