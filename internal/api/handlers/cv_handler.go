package handlers

import (
	"net/http"

	"github.com/cvcraft/cvcraft/internal/models"
	"github.com/cvcraft/cvcraft/internal/services"
	"github.com/cvcraft/cvcraft/internal/utils"
	"github.com/gin-gonic/gin"
)

type CVHandler struct {
	svc services.CVService
}

func NewCVHandler(svc services.CVService) *CVHandler {
	return &CVHandler{svc: svc}
}

// Me returns the caller's CV aggregate, creating an empty draft workspace on
// first access.
func (h *CVHandler) Me(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	cv, err := h.svc.FetchOrCreate(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cv)
}

// Save persists a full form snapshot (scalar fields plus both child lists).
func (h *CVHandler) Save(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var snap models.CVSnapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "CVHandler.Save", "invalid request body", err))
		return
	}

	cv, err := h.svc.SaveAll(c.Request.Context(), userID, c.Param("cv_id"), &snap)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cv)
}

type patchCVRequest struct {
	Title      *string            `json:"title,omitempty"`
	TargetRole *string            `json:"target_role,omitempty"`
	Language   *models.CVLanguage `json:"language,omitempty"`
}

// Patch applies a narrow scalar update. Status and generated-output columns
// are deliberately not patchable from the outside; those move only through
// the generation flow and the worker callback.
func (h *CVHandler) Patch(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req patchCVRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "CVHandler.Patch", "invalid request body", err))
		return
	}

	fields := map[string]any{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.TargetRole != nil {
		fields["target_role"] = *req.TargetRole
	}
	if req.Language != nil {
		if !models.ValidLanguage(*req.Language) {
			writeError(c, utils.E(utils.CodeInvalidArgument, "CVHandler.Patch", "unsupported language", nil))
			return
		}
		fields["language"] = *req.Language
	}

	cv, err := h.svc.Patch(c.Request.Context(), userID, c.Param("cv_id"), fields)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cv)
}

// Upload stores the source document for this CV. Re-uploading overwrites the
// previous object at the same key.
func (h *CVHandler) Upload(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	staged, err := stagedFileFromForm(c, "file")
	if err != nil {
		writeError(c, err)
		return
	}

	cv, err := h.svc.UploadFile(c.Request.Context(), userID, c.Param("cv_id"), staged.Ext, staged.ContentType, staged.Reader)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cv)
}

// Reset clears the CV back to an empty draft while keeping its identity.
func (h *CVHandler) Reset(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	cv, err := h.svc.ResetAll(c.Request.Context(), userID, c.Param("cv_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cv)
}
