package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type CVStatus string

const (
	StatusDraft      CVStatus = "draft"
	StatusProcessing CVStatus = "processing"
	StatusCompleted  CVStatus = "completed"
	StatusFailed     CVStatus = "failed"
)

// Terminal reports whether a generation attempt has finished in this status.
func (s CVStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type CVLanguage string

const (
	LangEN CVLanguage = "en"
	LangFR CVLanguage = "fr"
	LangAR CVLanguage = "ar"
)

func ValidLanguage(l CVLanguage) bool {
	switch l {
	case LangEN, LangFR, LangAR:
		return true
	}
	return false
}

const DefaultTitle = "My CV"

// PersonalInfo is kept loosely typed on purpose: the generation worker and
// the frontend both read it as a JSON blob.
type PersonalInfo struct {
	Name           string   `json:"name,omitempty"`
	Email          string   `json:"email,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	LinkedIn       string   `json:"linkedin,omitempty"`
	Summary        string   `json:"summary,omitempty"`
	Skills         []string `json:"skills,omitempty"`
	Languages      []string `json:"languages,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
}

type UserCV struct {
	ID     string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID string `gorm:"column:user_id;type:uuid;uniqueIndex" json:"user_id"`
	Title  string `gorm:"column:title;type:text" json:"title"`

	Status   CVStatus   `gorm:"column:status;type:text" json:"status"`
	Language CVLanguage `gorm:"column:language;type:text" json:"language"`

	TargetRole   *string                           `gorm:"column:target_role;type:text" json:"target_role"`
	PersonalInfo datatypes.JSONType[*PersonalInfo] `gorm:"column:personal_info;type:jsonb" json:"personal_info"`

	OriginalFileURL *string `gorm:"column:original_file_url;type:text" json:"original_file_url"`
	GeneratedDocURL *string `gorm:"column:generated_doc_url;type:text" json:"generated_doc_url"`
	GeneratedPDFURL *string `gorm:"column:generated_pdf_url;type:text" json:"generated_pdf_url"`

	ATSScore        *int           `gorm:"column:ats_score;type:integer" json:"ats_score"`
	Recommendations pq.StringArray `gorm:"column:recommendations;type:text[]" json:"recommendations"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (UserCV) TableName() string { return "user_cvs" }

type Experience struct {
	ID       string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CVID     string `gorm:"column:cv_id;type:uuid;index" json:"cv_id"`
	Company  string `gorm:"column:company;type:text" json:"company"`
	Position string `gorm:"column:position;type:text" json:"position"`

	StartDate string `gorm:"column:start_date;type:text" json:"start_date"`
	// nil means the position is current; empty string never reaches the store.
	EndDate     *string `gorm:"column:end_date;type:text" json:"end_date"`
	Description *string `gorm:"column:description;type:text" json:"description"`

	SortOrder int       `gorm:"column:sort_order;type:integer" json:"sort_order"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Experience) TableName() string { return "experiences" }

type Education struct {
	ID          string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CVID        string `gorm:"column:cv_id;type:uuid;index" json:"cv_id"`
	Institution string `gorm:"column:institution;type:text" json:"institution"`
	Degree      string `gorm:"column:degree;type:text" json:"degree"`

	StartDate string  `gorm:"column:start_date;type:text" json:"start_date"`
	EndDate   *string `gorm:"column:end_date;type:text" json:"end_date"`

	SortOrder int       `gorm:"column:sort_order;type:integer" json:"sort_order"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Education) TableName() string { return "education" }

// FullCV is the aggregate the rest of the app works with: the row plus its
// child lists, always fetched together.
type FullCV struct {
	UserCV
	Experiences []Experience `gorm:"foreignKey:CVID;references:ID" json:"experiences"`
	Education   []Education  `gorm:"foreignKey:CVID;references:ID" json:"education"`
}

func (FullCV) TableName() string { return "user_cvs" }

// NullableDate normalizes a form date input for persistence: whitespace-only
// input becomes NULL so "present" round-trips as absent, never "".
func NullableDate(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
