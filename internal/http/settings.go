package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/tempo/internal/entities"
	"github.com/mrlokans/tempo/internal/storage"
)

// GetSettings returns the stored settings, or the defaults for a user who
// never saved any.
func (h *Handlers) GetSettings(c *gin.Context) {
	userID := GetUserID(c)
	settings, err := h.store.GetUserSettings(c.Request.Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		settings = &entities.UserSettings{UserID: userID, Timezone: "UTC"}
	} else if err != nil {
		respondStorageError(c, err, "get settings")
		return
	}
	c.JSON(http.StatusOK, settings)
}

type updateSettingsRequest struct {
	Timezone string `json:"timezone" binding:"required"`
}

func (h *Handlers) UpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "timezone is required")
		return
	}
	settings := &entities.UserSettings{
		UserID:    GetUserID(c),
		Timezone:  req.Timezone,
		UpdatedAt: time.Now().UTC(),
	}
	if err := h.store.UpsertUserSettings(c.Request.Context(), settings); err != nil {
		respondStorageError(c, err, "update settings")
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handlers) Export(c *gin.Context) {
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
	rows, err := h.store.ListExportRows(c.Request.Context(), GetUserID(c), start, end)
	if err != nil {
		respondStorageError(c, err, "export")
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}
