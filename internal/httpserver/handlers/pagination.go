package handlers

import (
	"math"
	"net/http"
	"strconv"

	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

type pageParams struct {
	Page, Size int
}

func pageFromRequest(r *http.Request) pageParams {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page <= 0 {
		page = 1
	}
	size, _ := strconv.Atoi(q.Get("page_size"))
	switch {
	case size > MaxPageSize:
		size = MaxPageSize
	case size <= 0:
		size = DefaultPageSize
	}
	return pageParams{Page: page, Size: size}
}

// Scope limits a query to the requested page.
func (p pageParams) Scope(db *gorm.DB) *gorm.DB {
	return db.Offset((p.Page - 1) * p.Size).Limit(p.Size)
}

func (p pageParams) Response(data interface{}, total int64) PaginatedResponse {
	pages := 0
	if total > 0 {
		pages = int(math.Ceil(float64(total) / float64(p.Size)))
	}
	return PaginatedResponse{Data: data, Total: total, Page: p.Page, PageSize: p.Size, TotalPages: pages}
}
