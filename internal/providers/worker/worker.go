package worker

import (
	"context"

	"github.com/cvcraft/cvcraft/internal/models"
)

// GenerateRequest is the payload for the CV-generation webhook. The worker is
// fire-and-forget: a 2xx only acknowledges the job, results come back later
// through the callback endpoint.
type GenerateRequest struct {
	UserID  string `json:"user_id"`
	CVID    string `json:"cv_id"`
	FileURL string `json:"cv_url"`

	FormFields FormFields `json:"form_fields"`
}

type FormFields struct {
	PersonalInfo *models.PersonalInfo `json:"personal_info"`
	Experiences  []models.Experience  `json:"experiences"`
	Education    []models.Education   `json:"education"`
	TargetRole   string               `json:"target_role"`
	Language     models.CVLanguage    `json:"language"`
}

// OptimizeRequest targets an already generated document instead of a raw
// upload.
type OptimizeRequest struct {
	UserID         string `json:"user_id"`
	CVID           string `json:"cv_id"`
	CVDocURL       string `json:"cv_doc_url"`
	JobDescription string `json:"job_description"`
}

type Dispatcher interface {
	DispatchGenerate(ctx context.Context, req GenerateRequest) error
	DispatchOptimize(ctx context.Context, req OptimizeRequest) error
}
