package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/cvcraft/cvcraft/internal/services"
	"github.com/cvcraft/cvcraft/internal/utils"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		c.JSON(status, APIError{
			Code:    ae.Code,
			Message: ae.Message,
		})
		return
	}

	c.JSON(status, APIError{
		Code:    utils.CodeInternal,
		Message: http.StatusText(status),
	})
}

func requireUserID(c *gin.Context) (string, bool) {
	if v, ok := c.Get("user_id"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}

const maxUploadBytes = 10 << 20

var allowedUploadExts = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// stagedFileFromForm validates and opens the multipart upload field. The
// first 512 bytes are sniffed for PDFs; docx is a zip container so only the
// extension is checked there.
func stagedFileFromForm(c *gin.Context, field string) (*services.StagedFile, error) {
	const op = "Upload"

	fh, err := c.FormFile(field)
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "missing multipart field '"+field+"'", err)
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	contentType, allowed := allowedUploadExts[ext]
	if !allowed {
		return nil, utils.E(utils.CodeInvalidArgument, op, "only .pdf and .docx are allowed", nil)
	}
	if fh.Size <= 0 || fh.Size > maxUploadBytes {
		return nil, utils.E(utils.CodeInvalidArgument, op, "file too large (max 10MB)", nil)
	}

	file, err := fh.Open()
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to open upload", err)
	}

	head := make([]byte, 512)
	n, _ := file.Read(head)
	head = head[:n]

	if ext == ".pdf" && http.DetectContentType(head) != "application/pdf" {
		_ = file.Close()
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid content type (must be pdf)", nil)
	}

	return &services.StagedFile{
		Ext:         strings.TrimPrefix(ext, "."),
		ContentType: contentType,
		Reader:      &readJoin{a: bytes.NewReader(head), b: file},
	}, nil
}

// readJoin replays the sniffed head before the rest of the stream.
type readJoin struct {
	a *bytes.Reader
	b io.Reader
}

func (r *readJoin) Read(p []byte) (int, error) {
	if r.a != nil && r.a.Len() > 0 {
		return r.a.Read(p)
	}
	return r.b.Read(p)
}
