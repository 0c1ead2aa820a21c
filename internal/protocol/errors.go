package protocol

import "errors"

// Handshake validation failures. The handshake is rejected as a whole.
var (
	ErrSchemaMismatch     = errors.New("protocol: schema mismatch")
	ErrInvalidParentIndex = errors.New("protocol: invalid parent index")
	ErrSelfParent         = errors.New("protocol: self parent")
	ErrCyclicHierarchy    = errors.New("protocol: cyclic hierarchy")
)

// Frame validation failures. Only the offending frame is dropped.
var (
	ErrTruncated = errors.New("protocol: truncated frame")
	ErrBadMagic  = errors.New("protocol: bad magic")
)

// ErrMalformed marks a textual message that is not structured data.
var ErrMalformed = errors.New("protocol: malformed message")

var kinds = []struct {
	err   error
	label string
}{
	{ErrSchemaMismatch, "schema_mismatch"},
	{ErrInvalidParentIndex, "invalid_parent_index"},
	{ErrSelfParent, "self_parent"},
	{ErrCyclicHierarchy, "cyclic_hierarchy"},
	{ErrTruncated, "truncated"},
	{ErrBadMagic, "bad_magic"},
	{ErrMalformed, "malformed"},
}

// Kind returns the taxonomy label for err, "ok" for nil and "other" for
// errors outside the protocol taxonomy.
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.label
		}
	}
	return "other"
}
