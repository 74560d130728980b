// File: internal/common/pagination.go
package common

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// GetLimitOffset reads limit/offset query parameters, falling back to the given default limit.
func GetLimitOffset(c *gin.Context, defaultLimit int) (limit, offset int64) {
	l, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || l <= 0 {
		l = defaultLimit
	}
	if l > MaxLimit {
		l = MaxLimit
	}
	o, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || o < 0 {
		o = 0
	}
	return int64(l), int64(o)
}

// GetPageParams reads pageIndex/pageSize, with pageIndex starting at 0.
func GetPageParams(c *gin.Context) (pageIndex, pageSize int64) {
	idx, err := strconv.Atoi(c.DefaultQuery("pageIndex", "0"))
	if err != nil || idx < 0 {
		idx = 0
	}
	size, err := strconv.Atoi(c.DefaultQuery("pageSize", strconv.Itoa(DefaultLimit)))
	if err != nil || size <= 0 {
		size = DefaultLimit
	}
	if size > MaxLimit {
		size = MaxLimit
	}
	return int64(idx), int64(size)
}

// TotalPages returns how many pages of pageSize are needed for total items.
func TotalPages(total, pageSize int64) int64 {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
