package analytics

// FilterKind is the shape of practice filtering an analytics query must apply
type FilterKind string

const (
	// FilterUnrestricted applies no practice filtering. Only scope all
	// resolves here.
	FilterUnrestricted FilterKind = "unrestricted"
	// FilterPracticeSet restricts rows to a set of practice identifiers
	FilterPracticeSet FilterKind = "practice_set"
	// FilterMatchNothing is the explicit empty-result marker: the query
	// layer must return zero rows. Distinct from "no filter requested".
	FilterMatchNothing FilterKind = "match_nothing"
)

// PracticeFilter is the contract between the resolver and the analytics
// query layer.
type PracticeFilter struct {
	Kind        FilterKind `json:"kind"`
	PracticeIDs []string   `json:"practice_ids,omitempty"`
}

// Unrestricted reports whether the filter applies no restriction
func (f PracticeFilter) Unrestricted() bool {
	return f.Kind == FilterUnrestricted
}

// MatchesNothing reports whether the filter excludes every row
func (f PracticeFilter) MatchesNothing() bool {
	return f.Kind == FilterMatchNothing
}

// Request describes the scope an analytics query asks for: either one
// organization (resolved to its descendant subtree) or an explicit list of
// practice identifiers. Both empty means "everything I can see".
type Request struct {
	OrganizationID string
	PracticeIDs    []string
}
