package core

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pages is the pagination requested by a client. Invalid values are clamped
// silently; a page beyond the last one resolves to the last page.
type Pages struct {
	Number int `json:"page" query:"page"`
	Size   int `json:"page_size" query:"page_size"`
}

func (p *Pages) Clean() {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
}

// Clamp resolves the requested page against the total row count.
// It returns the effective pages and the total number of pages (≥ 1).
func (p Pages) Clamp(count int) (Pages, int) {
	p.Clean()
	totalPages := (count + p.Size - 1) / p.Size
	if totalPages < 1 {
		totalPages = 1
	}
	if p.Number > totalPages {
		p.Number = totalPages
	}
	return p, totalPages
}

func (p Pages) Offset() int {
	return (p.Number - 1) * p.Size
}

func (p Pages) Limit() int {
	return p.Size
}

// Page is the envelope returned by all list endpoints.
type Page struct {
	Count       int         `json:"count"`
	Next        *string     `json:"next"`
	Previous    *string     `json:"previous"`
	TotalPages  int         `json:"total_pages"`
	CurrentPage int         `json:"current_page"`
	Results     interface{} `json:"results"`
}
