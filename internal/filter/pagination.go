package filter

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Normalized clamps page to >= 1 and page size to (0, MaxPageSize].
func (p Pagination) Normalized() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Window returns the LIMIT (one extra row to detect a further page) and
// OFFSET for the normalized pagination.
func (p Pagination) Window() (limit, offset int) {
	n := p.Normalized()
	return n.PageSize + 1, (n.Page - 1) * n.PageSize
}

func (p Pagination) canonical(m map[string]any) {
	n := p.Normalized()
	if n.Page != 1 {
		m["page"] = n.Page
	}
	if n.PageSize != DefaultPageSize {
		m["pageSize"] = n.PageSize
	}
}
