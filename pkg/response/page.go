package response

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Paging defaults for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps page*size far from integer overflow. Pages past the data are empty anyway.
	MaxPage = 1_000_000
)

// Page is a paginated list payload. Page numbers start at 0.
type Page struct {
	Items         interface{} `json:"items"`
	Page          int         `json:"page"`
	Size          int         `json:"size"`
	TotalElements int64       `json:"total_elements"`
	TotalPages    int         `json:"total_pages"`
}

// NewPage builds a Page from one slice of results and the total count.
func NewPage(items interface{}, page, size int, total int64) Page {
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	return Page{Items: items, Page: page, Size: size, TotalElements: total, TotalPages: pages}
}

// Paging reads ?page and ?size, clamping size to [1, MaxPageSize] and page to [0, MaxPage].
func Paging(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "0"))
	page = clampPage(page)
	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(DefaultPageSize)))
	if err != nil {
		size = DefaultPageSize
	}
	if size < 1 {
		size = 1
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// Offset returns the row offset of page, clamping both arguments the way Paging does.
func Offset(page, size int) int {
	if size < 1 {
		size = 1
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return clampPage(page) * size
}

func clampPage(page int) int {
	if page < 0 {
		return 0
	}
	if page > MaxPage {
		return MaxPage
	}
	return page
}
