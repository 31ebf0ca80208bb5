package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/examroom/examroom-backend/internal/response"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// parsePagination reads page/per_page query parameters and returns the SQL
// limit and offset plus a prefilled Pagination block (TotalItems and
// TotalPages set by the caller).
func parsePagination(c *gin.Context) (limit, offset int, p *response.Pagination) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	if err != nil || perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return perPage, (page - 1) * perPage, &response.Pagination{Page: page, PerPage: perPage}
}

// finishPagination fills in the totals once the repository reports them.
func finishPagination(p *response.Pagination, total int) *response.Pagination {
	p.TotalItems = total
	p.TotalPages = (total + p.PerPage - 1) / p.PerPage
	return p
}
