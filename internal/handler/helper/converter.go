package helper

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Pagination reads ?page= and ?page_size=. Bad or missing values fall back to page 1 and
// DefaultPageSize, and the size is capped at MaxPageSize.
func Pagination(c *gin.Context) (page, pageSize int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	pageSize, err = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(DefaultPageSize)))
	if err != nil || pageSize < 1 {
		pageSize = DefaultPageSize
	} else if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// ExportFilename builds a download name such as "results-user-12-20260504.xlsx".
func ExportFilename(prefix string, userID uint, date string, ext string) string {
	return prefix + "-user-" + strconv.FormatUint(uint64(userID), 10) + "-" + date + "." + ext
}
