package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/cvcraft/cvcraft/internal/docref"
	"github.com/cvcraft/cvcraft/internal/models"
	"github.com/cvcraft/cvcraft/internal/services"
	"github.com/cvcraft/cvcraft/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type GenerationHandler struct {
	svc services.GenerationService
	cvs services.CVService
}

func NewGenerationHandler(svc services.GenerationService, cvs services.CVService) *GenerationHandler {
	return &GenerationHandler{svc: svc, cvs: cvs}
}

// Generate accepts either a plain JSON snapshot or a multipart form with an
// optional "file" part and a "data" part carrying the snapshot JSON. The
// multipart shape is what the web client sends when the user stages a new
// upload together with the generate click.
func (h *GenerationHandler) Generate(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	const op = "GenerationHandler.Generate"

	var snap models.CVSnapshot
	var staged *services.StagedFile

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		raw := c.PostForm("data")
		if raw == "" {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing form field 'data'", nil))
			return
		}
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid snapshot json", err))
			return
		}
		if err := binding.Validator.ValidateStruct(&snap); err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid snapshot", err))
			return
		}
		if _, err := c.FormFile("file"); err == nil {
			var ferr error
			staged, ferr = stagedFileFromForm(c, "file")
			if ferr != nil {
				writeError(c, ferr)
				return
			}
		}
	} else {
		if err := c.ShouldBindJSON(&snap); err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
			return
		}
	}

	cv, err := h.svc.Generate(c.Request.Context(), userID, c.Param("cv_id"), &snap, staged)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, cv)
}

type optimizeRequest struct {
	JobDescription string `json:"job_description" binding:"required"`
}

func (h *GenerationHandler) Optimize(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req optimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "GenerationHandler.Optimize", "invalid request body", err))
		return
	}

	cv, err := h.svc.Optimize(c.Request.Context(), userID, c.Param("cv_id"), req.JobDescription)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, cv)
}

// Events returns the generation audit trail for the caller's own CV.
func (h *GenerationHandler) Events(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	cvID := c.Param("cv_id")

	cv, err := h.cvs.FetchOrCreate(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if cv.ID != cvID {
		writeError(c, utils.E(utils.CodeForbidden, "GenerationHandler.Events", "forbidden", nil))
		return
	}

	h.listEvents(c, cvID)
}

// EventsAdmin lists any CV's trail; the route is behind RequireAdmin.
func (h *GenerationHandler) EventsAdmin(c *gin.Context) {
	h.listEvents(c, c.Param("cv_id"))
}

func (h *GenerationHandler) listEvents(c *gin.Context, cvID string) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	events, err := h.svc.ListEvents(c.Request.Context(), cvID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type previewResponse struct {
	DocID      string `json:"doc_id"`
	PreviewURL string `json:"preview_url"`
	ExportURL  string `json:"export_url"`
	CopyURL    string `json:"copy_url"`
}

// Preview derives the preview/export/copy URLs from the generated document
// reference. A malformed reference means "no preview", not an error page.
func (h *GenerationHandler) Preview(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	cv, err := h.cvs.FetchOrCreate(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if cv.ID != c.Param("cv_id") {
		writeError(c, utils.E(utils.CodeForbidden, "GenerationHandler.Preview", "forbidden", nil))
		return
	}
	if cv.GeneratedDocURL == nil {
		c.JSON(http.StatusOK, gin.H{"preview": nil})
		return
	}

	docID, err := docref.DocID(*cv.GeneratedDocURL)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"preview": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"preview": previewResponse{
		DocID:      docID,
		PreviewURL: docref.PreviewURL(docID),
		ExportURL:  docref.ExportURL(docID, "docx"),
		CopyURL:    docref.CopyURL(docID),
	}})
}
