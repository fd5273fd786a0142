package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Analytics serves the aggregated summary for a half-open [start, end)
// window. timezoneOffset follows the JavaScript convention: minutes to add
// to local time to reach UTC.
func (h *Handlers) Analytics(c *gin.Context) {
	start, err := queryTime(c, "start")
	if err != nil || start == nil {
		respondBadRequest(c, "start must be RFC3339")
		return
	}
	end, err := queryTime(c, "end")
	if err != nil || end == nil {
		respondBadRequest(c, "end must be RFC3339")
		return
	}
	offset, err := queryInt(c, "timezoneOffset", 0)
	if err != nil {
		respondBadRequest(c, "timezoneOffset must be an integer")
		return
	}
	summary, err := h.engine.Summary(c.Request.Context(), GetUserID(c), *start, *end, offset)
	if err != nil {
		respondStorageError(c, err, "analytics summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// CategoryDrilldown lists the task names of a single category, paginated.
func (h *Handlers) CategoryDrilldown(c *gin.Context) {
	params, err := pageParamsFromQuery(c)
	if err != nil {
		respondBadRequest(c, "page and pageSize must be integers")
		return
	}
	if err := params.Normalize(); err != nil {
		respondStorageError(c, err, "category drilldown")
		return
	}
	if params.Category == "" {
		respondBadRequest(c, "category is required")
		return
	}
	page, err := h.store.ListTaskNames(c.Request.Context(), GetUserID(c), params)
	if err != nil {
		respondStorageError(c, err, "category drilldown")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":      page.Items,
		"pagination": newPagination(params, page.TotalCount),
	})
}
