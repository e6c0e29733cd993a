package models

// CVSnapshot is one full form submission. SaveAll treats it as authoritative:
// child entries absent from the snapshot are deleted from the store.
type CVSnapshot struct {
	Name       string     `json:"name" binding:"required,min=2"`
	Email      string     `json:"email" binding:"required,email"`
	Phone      string     `json:"phone"`
	LinkedIn   string     `json:"linkedin"`
	Summary    string     `json:"summary"`
	TargetRole string     `json:"target_role" binding:"required"`
	Language   CVLanguage `json:"language" binding:"required,oneof=en fr ar"`

	Experience []ExperienceInput `json:"experience" binding:"dive"`
	Education  []EducationInput  `json:"education" binding:"dive"`

	Skills         []string `json:"skills"`
	Languages      []string `json:"languages"`
	Certifications []string `json:"certifications"`
}

type ExperienceInput struct {
	ID          string  `json:"id" binding:"required,uuid"`
	Company     string  `json:"company" binding:"required"`
	Position    string  `json:"position" binding:"required"`
	StartDate   string  `json:"start_date" binding:"required"`
	EndDate     *string `json:"end_date"`
	Description *string `json:"description"`
}

type EducationInput struct {
	ID          string  `json:"id" binding:"required,uuid"`
	Institution string  `json:"institution" binding:"required"`
	Degree      string  `json:"degree" binding:"required"`
	StartDate   string  `json:"start_date" binding:"required"`
	EndDate     *string `json:"end_date"`
}

// PersonalInfo collects the snapshot's scalar identity fields the way the
// worker payload expects them.
func (s *CVSnapshot) PersonalInfo() *PersonalInfo {
	return &PersonalInfo{
		Name:           s.Name,
		Email:          s.Email,
		Phone:          s.Phone,
		LinkedIn:       s.LinkedIn,
		Summary:        s.Summary,
		Skills:         s.Skills,
		Languages:      s.Languages,
		Certifications: s.Certifications,
	}
}

func (s *CVSnapshot) ExperienceRows(cvID string) []Experience {
	rows := make([]Experience, 0, len(s.Experience))
	for i, in := range s.Experience {
		rows = append(rows, Experience{
			ID:          in.ID,
			CVID:        cvID,
			Company:     in.Company,
			Position:    in.Position,
			StartDate:   in.StartDate,
			EndDate:     NullableDate(in.EndDate),
			Description: in.Description,
			SortOrder:   i,
		})
	}
	return rows
}

func (s *CVSnapshot) EducationRows(cvID string) []Education {
	rows := make([]Education, 0, len(s.Education))
	for i, in := range s.Education {
		rows = append(rows, Education{
			ID:          in.ID,
			CVID:        cvID,
			Institution: in.Institution,
			Degree:      in.Degree,
			StartDate:   in.StartDate,
			EndDate:     NullableDate(in.EndDate),
			SortOrder:   i,
		})
	}
	return rows
}
