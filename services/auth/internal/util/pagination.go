package util

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Page struct {
	Page   int
	Size   int
	Offset int
}

// Paginate normalizes 1-based page/size query values.
func Paginate(page, size int) Page {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return Page{Page: page, Size: size, Offset: (page - 1) * size}
}
