package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/tempo/internal/storage"
)

func (h *Handlers) ListEntries(c *gin.Context) {
	start, err := queryTime(c, "start")
	if err != nil {
		respondBadRequest(c, "start must be RFC3339")
		return
	}
	end, err := queryTime(c, "end")
	if err != nil {
		respondBadRequest(c, "end must be RFC3339")
		return
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		respondBadRequest(c, "limit must be an integer")
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		respondBadRequest(c, "offset must be an integer")
		return
	}
	filter := storage.EntryFilter{
		Start:      start,
		End:        end,
		CategoryID: c.Query("categoryId"),
		Search:     c.Query("search"),
		Limit:      limit,
		Offset:     offset,
	}
	entries, total, err := h.store.ListTimeEntries(c.Request.Context(), GetUserID(c), filter)
	if err != nil {
		respondStorageError(c, err, "list entries")
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "totalCount": total})
}

type updateEntryRequest struct {
	CategoryID   *string    `json:"category_id"`
	TaskName     *string    `json:"task_name"`
	StartTime    *time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	ClearEndTime bool       `json:"clear_end_time"`
}

func (h *Handlers) UpdateEntry(c *gin.Context) {
	var req updateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	entry, err := h.store.UpdateTimeEntry(c.Request.Context(), GetUserID(c), c.Param("id"), storage.EntryUpdate{
		CategoryID:   req.CategoryID,
		TaskName:     req.TaskName,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		ClearEndTime: req.ClearEndTime,
	})
	if err != nil {
		respondStorageError(c, err, "update entry")
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handlers) DeleteEntry(c *gin.Context) {
	if err := h.store.DeleteTimeEntry(c.Request.Context(), GetUserID(c), c.Param("id")); err != nil {
		respondStorageError(c, err, "delete entry")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "entry deleted"})
}

// DeleteEntriesByDate removes a user's completed entries on one local
// calendar date. The active entry is never part of the sweep.
func (h *Handlers) DeleteEntriesByDate(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		respondBadRequest(c, "date is required")
		return
	}
	offset, err := queryInt(c, "timezoneOffset", 0)
	if err != nil {
		respondBadRequest(c, "timezoneOffset must be an integer")
		return
	}
	deleted, err := h.store.DeleteTimeEntriesByDate(c.Request.Context(), GetUserID(c), date, offset)
	if err != nil {
		respondStorageError(c, err, "delete entries by date")
		return
	}
	c.JSON(http.StatusOK, gin.H{"entriesDeleted": deleted})
}
