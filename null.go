package rom

// Null is the value of a field that has no assigned value. It is distinct from
// every real value, including the empty string, zero and an empty byte slice.
//
// A Null field is absent from the stored record hash, and is indexed under its
// own token, so filtering on Null finds records whose field was never set.
var Null = null{}

type null struct{}

func (null) String() string { return "<null>" }

// IsNull reports whether v is Null. A nil interface is not Null.
func IsNull(v any) bool {
	_, ok := v.(null)
	return ok
}
