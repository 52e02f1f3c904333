package shared

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Page holds normalised limit/offset values for list queries.
type Page struct {
	Limit  int
	Offset int
}

// NewPage clamps limit into 1..500 (default 50) and offset to >= 0.
func NewPage(limit, offset int) Page {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}
