package domain

import "github.com/google/uuid"

// Normalize fills tolerated gaps in an incoming post instead of rejecting it:
// a missing ID gets a fresh UUID; a missing location decodes as the zero
// value {0,0}. Normalization never fails.
func Normalize(p RawPost) RawPost {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return p
}

// ValidType reports whether t is one of the recognised post types. Unknown
// author-supplied types are kept as-is by the classifier, so this is only
// used for diagnostics.
func ValidType(t PostType) bool {
	switch t {
	case Confirmed, Misinformation, General, "":
		return true
	}
	return false
}
