package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/tempo/internal/entities"
	"github.com/mrlokans/tempo/internal/storage"
)

func (h *Handlers) ListCategories(c *gin.Context) {
	categories, err := h.store.ListCategories(c.Request.Context(), GetUserID(c))
	if err != nil {
		respondStorageError(c, err, "list categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

type createCategoryRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

func (h *Handlers) CreateCategory(c *gin.Context) {
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "name is required")
		return
	}
	category := &entities.Category{
		UserID: GetUserID(c),
		Name:   req.Name,
		Color:  req.Color,
	}
	if err := h.store.CreateCategory(c.Request.Context(), category); err != nil {
		respondStorageError(c, err, "create category")
		return
	}
	c.JSON(http.StatusCreated, category)
}

type updateCategoryRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

func (h *Handlers) UpdateCategory(c *gin.Context) {
	var req updateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	category, err := h.store.UpdateCategory(c.Request.Context(), GetUserID(c), c.Param("id"),
		storage.CategoryUpdate{Name: req.Name, Color: req.Color})
	if err != nil {
		respondStorageError(c, err, "update category")
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *Handlers) DeleteCategory(c *gin.Context) {
	err := h.store.DeleteCategory(c.Request.Context(), GetUserID(c), c.Param("id"),
		c.Query("replacementCategoryId"))
	if err != nil {
		respondStorageError(c, err, "delete category")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "category deleted"})
}
