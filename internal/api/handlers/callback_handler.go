package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/cvcraft/cvcraft/internal/services"
	"github.com/cvcraft/cvcraft/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CallbackHandler receives the automation worker's completion reports. It is
// not behind JWT auth; the worker authenticates with a shared secret header.
type CallbackHandler struct {
	svc    services.GenerationService
	secret string
	log    *logrus.Logger
}

func NewCallbackHandler(svc services.GenerationService, secret string, log *logrus.Logger) *CallbackHandler {
	return &CallbackHandler{svc: svc, secret: secret, log: log}
}

const callbackSecretHeader = "X-Callback-Secret"

func (h *CallbackHandler) WorkerCallback(c *gin.Context) {
	const op = "CallbackHandler.WorkerCallback"

	if h.secret == "" {
		writeError(c, utils.E(utils.CodeInternal, op, "callback secret is not configured", nil))
		return
	}
	got := c.GetHeader(callbackSecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		writeError(c, utils.E(utils.CodeUnauthorized, op, "invalid callback secret", nil))
		return
	}

	var cb services.WorkerCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid callback body", err))
		return
	}

	cv, err := h.svc.HandleWorkerCallback(c.Request.Context(), cb)
	if err != nil {
		writeError(c, err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"cv_id":   cb.CVID,
		"success": cb.Success,
	}).Info("worker callback applied")

	c.JSON(http.StatusOK, gin.H{"status": cv.Status})
}
