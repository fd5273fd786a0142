package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/tempo/internal/storage"
)

func (h *Handlers) ListTaskNames(c *gin.Context) {
	params, err := pageParamsFromQuery(c)
	if err != nil {
		respondBadRequest(c, "page and pageSize must be integers")
		return
	}
	if err := params.Normalize(); err != nil {
		respondStorageError(c, err, "list task names")
		return
	}
	page, err := h.store.ListTaskNames(c.Request.Context(), GetUserID(c), params)
	if err != nil {
		respondStorageError(c, err, "list task names")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"taskNames":  page.Items,
		"pagination": newPagination(params, page.TotalCount),
	})
}

func (h *Handlers) ListTaskSuggestions(c *gin.Context) {
	limit, err := queryInt(c, "limit", 10)
	if err != nil {
		respondBadRequest(c, "limit must be an integer")
		return
	}
	suggestions, err := h.store.ListTaskSuggestions(c.Request.Context(), GetUserID(c),
		c.Query("categoryId"), c.Query("query"), limit)
	if err != nil {
		respondStorageError(c, err, "list task suggestions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

type updateTaskNameRequest struct {
	TaskName      string  `json:"task_name" binding:"required"`
	CategoryID    string  `json:"category_id"`
	NewName       *string `json:"new_name"`
	NewCategoryID *string `json:"new_category_id"`
}

// UpdateTaskName renames and/or recategorizes every entry sharing a task
// name. When category_id is present only entries in that category move,
// which is what the per-row edit in the listing needs.
func (h *Handlers) UpdateTaskName(c *gin.Context) {
	var req updateTaskNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "task_name is required")
		return
	}
	update := storage.TaskNameUpdate{NewName: req.NewName, NewCategoryID: req.NewCategoryID}

	var (
		updated int64
		err     error
	)
	if req.CategoryID != "" {
		updated, err = h.store.UpdateTimeEntriesByTaskAndCategory(c.Request.Context(),
			GetUserID(c), req.TaskName, req.CategoryID, update)
	} else {
		updated, err = h.store.UpdateTimeEntriesByTaskName(c.Request.Context(),
			GetUserID(c), req.TaskName, update)
	}
	if err != nil {
		respondStorageError(c, err, "update task name")
		return
	}
	c.JSON(http.StatusOK, gin.H{"entriesUpdated": updated})
}

type mergeTaskNamesRequest struct {
	Sources          []string `json:"sources" binding:"required"`
	Target           string   `json:"target" binding:"required"`
	TargetCategoryID string   `json:"target_category_id"`
}

func (h *Handlers) MergeTaskNames(c *gin.Context) {
	var req mergeTaskNamesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "sources and target are required")
		return
	}
	updated, err := h.store.MergeTaskNames(c.Request.Context(), GetUserID(c),
		req.Sources, req.Target, req.TargetCategoryID)
	if err != nil {
		respondStorageError(c, err, "merge task names")
		return
	}
	c.JSON(http.StatusOK, gin.H{"entriesUpdated": updated})
}
