package realtime

import "github.com/cvcraft/cvcraft/internal/models"

// CVEvent is one change notification for an aggregate. Only non-nil fields
// were pushed; a consumer must merge, never replace. Events may arrive
// duplicated or out of order relative to the sender's own writes.
type CVEvent struct {
	Type string `json:"type"` // always "cv_updated" for now
	CVID string `json:"cv_id"`

	Status          *models.CVStatus `json:"status,omitempty"`
	OriginalFileURL *string          `json:"original_file_url,omitempty"`
	GeneratedDocURL *string          `json:"generated_doc_url,omitempty"`
	GeneratedPDFURL *string          `json:"generated_pdf_url,omitempty"`
	ATSScore        *int             `json:"ats_score,omitempty"`
	Recommendations []string         `json:"recommendations,omitempty"`

	Message string `json:"message,omitempty"`
}

const EventCVUpdated = "cv_updated"

// Channel names the pub/sub channel carrying events for one aggregate.
func Channel(cvID string) string {
	return "cv:" + cvID + ":events"
}
