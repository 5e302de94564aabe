package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		page, size int
		want       Page
	}{
		{page: 0, size: 0, want: Page{Page: 1, Size: DefaultPageSize, Offset: 0}},
		{page: 3, size: 10, want: Page{Page: 3, Size: 10, Offset: 20}},
		{page: 2, size: 500, want: Page{Page: 2, Size: DefaultPageSize, Offset: DefaultPageSize}},
		{page: -1, size: 5, want: Page{Page: 1, Size: 5, Offset: 0}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Paginate(tt.page, tt.size))
	}
}
