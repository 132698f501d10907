package pagination

const (
	// DefaultPerPage is the page size used when none is configured.
	DefaultPerPage = 15
	// MaxPerPage caps how many rows a single page can request.
	MaxPerPage = 100
)

// Page is a normalised 1-based page request.
type Page struct {
	Number  int
	PerPage int
}

// New clamps number to >= 1 and perPage into [1, MaxPerPage].
func New(number int, perPage int) Page {
	if number < 1 {
		number = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Page{Number: number, PerPage: perPage}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.PerPage
}

func (p Page) Limit() int {
	return p.PerPage
}

// LastPage is the number of the last page for total rows; at least 1.
func (p Page) LastPage(total int64) int {
	if total <= 0 || p.PerPage <= 0 {
		return 1
	}
	return int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
}
