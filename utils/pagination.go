package utils

const (
	pageSizeDefault = 50
	pageSizeMax     = 200
)

// Page is an offset/limit window over a list endpoint, bound straight from
// optional query parameters. Nil or out-of-range values select the default
// window.
type Page struct {
	Offset *int
	Limit  *int
}

// Window resolves the page into concrete offset and limit values. The limit
// is capped so a single request cannot sweep the whole table.
func (p Page) Window() (offset, limit int) {
	offset, limit = 0, pageSizeDefault
	if p.Offset != nil && *p.Offset > 0 {
		offset = *p.Offset
	}
	if p.Limit != nil && *p.Limit > 0 {
		limit = min(*p.Limit, pageSizeMax)
	}
	return offset, limit
}
