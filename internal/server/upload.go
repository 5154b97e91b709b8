package server

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mavik-ai/prescreen/internal/uploads"
)

const maxUploadBytes = 64 << 20

type UploadHandler struct {
	Uploads *uploads.Store
}

func (h *UploadHandler) Register(g *echo.Group) {
	g.POST("/upload", h.upload)
}

// upload stores a document and returns its reference for later chat turns.
//
//	@Summary	Upload a document
//	@Tags		uploads
//	@Accept		multipart/form-data
//	@Param		file	formData	file	true	"Document"
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Failure	400	{object}	map[string]interface{}
//	@Failure	503	{object}	map[string]interface{}
//	@Router		/api/upload [post]
func (h *UploadHandler) upload(c echo.Context) error {
	if h.Uploads == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "uploads not configured")
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file required")
	}
	if fileHeader.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read file")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read file")
	}
	if len(data) > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}

	ref, err := h.Uploads.Put(c.Request().Context(), uploads.Meta{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
	}, data)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"document_ref": ref,
		"filename":     fileHeader.Filename,
		"size":         len(data),
	})
}
