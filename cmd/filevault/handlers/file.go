package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/filevault/filevault/cmd/filevault/middleware"
	"github.com/filevault/filevault/cmd/filevault/models"
	"github.com/filevault/filevault/cmd/filevault/service"
	"github.com/filevault/filevault/common/logger"
)

// FileHandler handles the file vault HTTP surface
type FileHandler struct {
	vault *service.VaultService
	log   *logger.Logger
}

// NewFileHandler creates a new file handler
func NewFileHandler(vault *service.VaultService, log *logger.Logger) *FileHandler {
	return &FileHandler{
		vault: vault,
		log:   log,
	}
}

// Upload stores a new file for the requesting owner
// POST /api/files
func (h *FileHandler) Upload(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "No file provided",
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "No file provided",
		})
	}
	defer src.Close()

	mediaType := fileHeader.Header.Get("Content-Type")

	entry, err := h.vault.Create(c.Request().Context(), ownerID, src, fileHeader.Filename, mediaType)
	switch {
	case errors.Is(err, service.ErrQuotaExceeded):
		return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
			"detail": "Storage Quota Exceeded",
		})
	case errors.Is(err, service.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "No file provided",
		})
	case err != nil:
		h.log.WithOwner(ownerID).Error("upload failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store file")
	}

	return c.JSON(http.StatusCreated, entry)
}

// Get returns one entry's metadata
// GET /api/files/:id
func (h *FileHandler) Get(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}

	entry, err := h.vault.Get(c.Request().Context(), ownerID, id)
	if errors.Is(err, service.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}
	if err != nil {
		h.log.WithOwner(ownerID).WithEntry(id.String()).Error("get failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load file")
	}

	return c.JSON(http.StatusOK, entry)
}

// List returns the owner's entries, newest first, narrowed by query filters
// GET /api/files?search=&file_type=&min_size=&max_size=&start_date=&end_date=
func (h *FileHandler) List(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)

	filter := models.ListFilter{
		Search:    c.QueryParam("search"),
		MediaType: c.QueryParam("file_type"),
	}

	// Malformed numeric bounds are ignored, matching the permissive
	// behavior of the listing contract
	if v := c.QueryParam("min_size"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.MinSize = &n
		}
	}
	if v := c.QueryParam("max_size"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.MaxSize = &n
		}
	}
	if t, ok := parseTimeParam(c.QueryParam("start_date")); ok {
		filter.Since = &t
	}
	if t, ok := parseTimeParam(c.QueryParam("end_date")); ok {
		filter.Until = &t
	}

	entries, err := h.vault.List(c.Request().Context(), ownerID, filter)
	if err != nil {
		h.log.WithOwner(ownerID).Error("list failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list files")
	}

	if entries == nil {
		entries = []*models.FileEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// Delete removes an entry, promoting a reference when the original goes away
// DELETE /api/files/:id
func (h *FileHandler) Delete(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}

	err = h.vault.Destroy(c.Request().Context(), ownerID, id)
	if errors.Is(err, service.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}
	if err != nil {
		h.log.WithOwner(ownerID).WithEntry(id.String()).Error("delete failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete file")
	}

	return c.NoContent(http.StatusNoContent)
}

// Download streams the entry's physical bytes
// GET /api/files/:id/download
func (h *FileHandler) Download(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}

	entry, rc, err := h.vault.OpenContent(c.Request().Context(), ownerID, id)
	if errors.Is(err, service.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}
	if err != nil {
		h.log.WithOwner(ownerID).WithEntry(id.String()).Error("download failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read file")
	}
	defer rc.Close()

	mediaType := entry.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", entry.Name))

	return c.Stream(http.StatusOK, mediaType, rc)
}

// StorageStats returns the owner's dedup-aware storage accounting
// GET /api/files/storage_stats
func (h *FileHandler) StorageStats(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)

	stats, err := h.vault.StorageStats(c.Request().Context(), ownerID)
	if err != nil {
		h.log.WithOwner(ownerID).Error("storage stats failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute storage stats")
	}

	return c.JSON(http.StatusOK, stats)
}

// FileTypes returns the distinct media types among the owner's entries
// GET /api/files/file_types
func (h *FileHandler) FileTypes(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)

	types, err := h.vault.DistinctMediaTypes(c.Request().Context(), ownerID)
	if err != nil {
		h.log.WithOwner(ownerID).Error("file types failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list file types")
	}

	if types == nil {
		types = []string{}
	}
	return c.JSON(http.StatusOK, types)
}

// parseTimeParam accepts RFC 3339 timestamps and bare dates
func parseTimeParam(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, true
	}
	return time.Time{}, false
}
