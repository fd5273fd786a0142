package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// GetActiveEntry returns the user's running entry, or an explicit null when
// nothing is running.
func (h *Handlers) GetActiveEntry(c *gin.Context) {
	entry, err := h.store.GetActiveTimeEntry(c.Request.Context(), GetUserID(c))
	if err != nil {
		respondStorageError(c, err, "get active entry")
		return
	}
	if entry == nil {
		c.JSON(http.StatusOK, gin.H{"active": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": entry})
}

type startEntryRequest struct {
	CategoryID   string     `json:"category_id" binding:"required"`
	TaskName     string     `json:"task_name"`
	StartTime    *time.Time `json:"start_time"`
	ScheduledEnd *time.Time `json:"scheduled_end_time"`
}

func (h *Handlers) StartEntry(c *gin.Context) {
	var req startEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "category_id is required")
		return
	}
	start := time.Now().UTC()
	if req.StartTime != nil {
		start = req.StartTime.UTC()
	}
	entry, err := h.store.StartTimeEntry(c.Request.Context(), GetUserID(c),
		req.CategoryID, req.TaskName, start, req.ScheduledEnd)
	if err != nil {
		respondStorageError(c, err, "start entry")
		return
	}
	c.JSON(http.StatusCreated, entry)
}

type stopEntryRequest struct {
	EntryID string     `json:"entry_id" binding:"required"`
	EndTime *time.Time `json:"end_time"`
}

func (h *Handlers) StopEntry(c *gin.Context) {
	var req stopEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "entry_id is required")
		return
	}
	end := time.Now().UTC()
	if req.EndTime != nil {
		end = req.EndTime.UTC()
	}
	entry, err := h.store.StopTimeEntry(c.Request.Context(), GetUserID(c), req.EntryID, end)
	if err != nil {
		respondStorageError(c, err, "stop entry")
		return
	}
	c.JSON(http.StatusOK, entry)
}
