package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/tempo/internal/storage"
)

// userIDKey is where the auth middleware stores the authenticated user id.
const userIDKey = "tempo.userID"

// UserIDHeader carries the already-authenticated user id, injected by the
// upstream auth layer. Token verification itself happens outside this
// service.
const UserIDHeader = "X-User-ID"

// RequireUser rejects requests without an authenticated user id.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// GetUserID extracts the authenticated user's id from the Gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Pagination is the listing envelope metadata.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalCount int64 `json:"totalCount"`
	TotalPages int   `json:"totalPages"`
}

func newPagination(params storage.PageParams, totalCount int64) Pagination {
	return Pagination{
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalCount: totalCount,
		TotalPages: storage.TotalPages(totalCount, params.PageSize),
	}
}

// respondStorageError maps the provider error taxonomy onto HTTP statuses.
func respondStorageError(c *gin.Context, err error, context string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		log.Printf("Internal error (%s): %v", context, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

// queryInt parses an integer query parameter, falling back on absence.
func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// queryTime parses an RFC3339 query parameter.
func queryTime(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	utc := t.UTC()
	return &utc, nil
}

func pageParamsFromQuery(c *gin.Context) (storage.PageParams, error) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return storage.PageParams{}, err
	}
	pageSize, err := queryInt(c, "pageSize", storage.DefaultPageSize)
	if err != nil {
		return storage.PageParams{}, err
	}
	return storage.PageParams{
		Page:     page,
		PageSize: pageSize,
		SortBy:   storage.SortBy(c.Query("sortBy")),
		Search:   c.Query("search"),
		Category: c.Query("category"),
	}, nil
}
