package event

// Kind identifies an event's semantic type and carries its own ancestry,
// computed once when the Kind is declared. Handler lookup walks this path
// from most specific to least specific instead of climbing a live class
// hierarchy.
type Kind struct {
	tag  string
	path []Kind
}

// Tag returns the bare identifier for this kind, used as the registry key.
func (k Kind) Tag() string { return k.tag }

// String implements fmt.Stringer.
func (k Kind) String() string { return k.tag }

// Path returns the ancestry of this kind, most-specific first, including
// the kind itself at index 0.
func (k Kind) Path() []Kind {
	out := make([]Kind, len(k.path))
	copy(out, k.path)
	return out
}

// NewKind declares a root kind with no ancestors.
func NewKind(tag string) Kind {
	k := Kind{tag: tag}
	k.path = []Kind{k}
	return k
}

// NewChildKind declares a kind whose ancestry is parent's path with tag
// prepended. Handler lookup for a child also matches handlers subscribed
// to any ancestor.
func NewChildKind(tag string, parent Kind) Kind {
	k := Kind{tag: tag}
	path := make([]Kind, 0, len(parent.path)+1)
	path = append(path, k)
	path = append(path, parent.path...)
	k.path = path
	return k
}
