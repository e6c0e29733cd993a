package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/cvcraft/cvcraft/internal/cache"
	"github.com/cvcraft/cvcraft/internal/models"
	"github.com/cvcraft/cvcraft/internal/realtime"
	pgrepo "github.com/cvcraft/cvcraft/internal/repositories/postgres"
	"github.com/cvcraft/cvcraft/internal/storage"
	"github.com/cvcraft/cvcraft/internal/utils"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CVService is the single owner of a user's CV aggregate. Every read and
// write goes through here; callers treat the returned aggregate as read-only.
type CVService interface {
	FetchOrCreate(ctx context.Context, userID string) (*models.FullCV, error)
	SaveAll(ctx context.Context, userID, cvID string, snap *models.CVSnapshot) (*models.FullCV, error)
	Patch(ctx context.Context, userID, cvID string, fields map[string]any) (*models.FullCV, error)
	UploadFile(ctx context.Context, userID, cvID, ext, contentType string, r io.Reader) (*models.FullCV, error)
	ResetAll(ctx context.Context, userID, cvID string) (*models.FullCV, error)
}

type cvService struct {
	repo  pgrepo.CVRepository
	store storage.ObjectStore
	cache cache.Cache
	pub   realtime.Publisher
}

func NewCVService(repo pgrepo.CVRepository, store storage.ObjectStore, c cache.Cache, pub realtime.Publisher) CVService {
	return &cvService{repo: repo, store: store, cache: c, pub: pub}
}

const cvCacheTTL = 5 * time.Minute

func cvCacheKey(userID string) string { return "cv:user:" + userID }

func (s *cvService) FetchOrCreate(ctx context.Context, userID string) (*models.FullCV, error) {
	const op = "CVService.FetchOrCreate"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	if s.cache != nil {
		var cached models.FullCV
		if hit, _ := s.cache.GetJSON(ctx, cvCacheKey(userID), &cached); hit {
			return &cached, nil
		}
	}

	cv, err := s.repo.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to load CV", err)
	}

	if errors.Is(err, utils.ErrNotFound) {
		now := time.Now().UTC()
		row := &models.UserCV{
			ID:        uuid.NewString(),
			UserID:    userID,
			Title:     models.DefaultTitle,
			Status:    models.StatusDraft,
			Language:  models.LangEN,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Insert(ctx, row); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to create CV workspace", err)
		}
		cv, err = s.repo.GetByUserID(ctx, userID)
		if err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to load CV", err)
		}
	}

	s.cacheSet(ctx, userID, cv)
	return cv, nil
}

// SaveAll persists one full form snapshot: scalar fields in a single update,
// then set reconciliation of each child list (deletes first, then upserts).
// The two phases are not transactional; a child failure is reported but the
// scalar update stays in place.
func (s *cvService) SaveAll(ctx context.Context, userID, cvID string, snap *models.CVSnapshot) (*models.FullCV, error) {
	const op = "CVService.SaveAll"

	if snap == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "snapshot is required", nil)
	}
	if !models.ValidLanguage(snap.Language) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "unsupported language", nil)
	}
	if _, err := s.owned(ctx, op, userID, cvID); err != nil {
		return nil, err
	}

	// A snapshot may only reference ids inside its own aggregate; an id that
	// already exists under another CV would otherwise be overwritten by the
	// upsert below.
	expRows := snap.ExperienceRows(cvID)
	eduRows := snap.EducationRows(cvID)
	foreignExp, err := s.repo.ForeignExperienceIDs(ctx, cvID, ids(expRows, func(r models.Experience) string { return r.ID }))
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to validate experience entries", err)
	}
	foreignEdu, err := s.repo.ForeignEducationIDs(ctx, cvID, ids(eduRows, func(r models.Education) string { return r.ID }))
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to validate education entries", err)
	}
	if len(foreignExp) > 0 || len(foreignEdu) > 0 {
		return nil, utils.E(utils.CodeForbidden, op, "entry id belongs to another CV", nil)
	}

	title := strings.TrimSpace(snap.Name)
	if title == "" {
		title = models.DefaultTitle
	}
	fields := map[string]any{
		"title":         title,
		"target_role":   snap.TargetRole,
		"language":      snap.Language,
		"personal_info": datatypes.NewJSONType(snap.PersonalInfo()),
		"updated_at":    time.Now().UTC(),
	}
	if err := s.repo.UpdateFields(ctx, cvID, fields); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save CV fields", err)
	}
	s.cacheDrop(ctx, userID)

	// Deletes run before upserts so a re-used id cannot be removed by its own
	// reconciliation pass.
	var childErr error
	if err := s.repo.DeleteExperiencesNotIn(ctx, cvID, ids(expRows, func(r models.Experience) string { return r.ID })); err != nil {
		childErr = err
	}
	if err := s.repo.UpsertExperiences(ctx, expRows); err != nil && childErr == nil {
		childErr = err
	}

	if err := s.repo.DeleteEducationNotIn(ctx, cvID, ids(eduRows, func(r models.Education) string { return r.ID })); err != nil && childErr == nil {
		childErr = err
	}
	if err := s.repo.UpsertEducation(ctx, eduRows); err != nil && childErr == nil {
		childErr = err
	}
	if childErr != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save experience/education entries", childErr)
	}

	cv, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to reload CV", err)
	}
	s.cacheSet(ctx, userID, cv)
	s.publish(ctx, realtime.CVEvent{Type: realtime.EventCVUpdated, CVID: cvID, Status: &cv.Status})
	return cv, nil
}

// Patch applies a narrow scalar update (status transitions, generated-output
// URLs) and always re-fetches the full aggregate so memory never trails the
// store by more than one round trip.
func (s *cvService) Patch(ctx context.Context, userID, cvID string, fields map[string]any) (*models.FullCV, error) {
	const op = "CVService.Patch"

	if len(fields) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "no fields to update", nil)
	}
	if _, err := s.owned(ctx, op, userID, cvID); err != nil {
		return nil, err
	}

	fields["updated_at"] = time.Now().UTC()
	if err := s.repo.UpdateFields(ctx, cvID, fields); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to update CV", err)
	}
	s.cacheDrop(ctx, userID)

	cv, err := s.repo.GetByID(ctx, cvID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to reload CV", err)
	}
	s.cacheSet(ctx, userID, cv)
	s.publish(ctx, eventFromFields(cvID, fields, cv))
	return cv, nil
}

// UploadFile stores the source document under {user_id}/{cv_id}.{ext},
// overwriting any previous upload for this aggregate, then records the
// public URL on the row.
func (s *cvService) UploadFile(ctx context.Context, userID, cvID, ext, contentType string, r io.Reader) (*models.FullCV, error) {
	const op = "CVService.UploadFile"

	if ext == "" || r == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "file is required", nil)
	}
	if _, err := s.owned(ctx, op, userID, cvID); err != nil {
		return nil, err
	}

	url, err := s.store.Upload(ctx, storage.ObjectName(userID, cvID, ext), contentType, r)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to upload file", err)
	}

	return s.Patch(ctx, userID, cvID, map[string]any{"original_file_url": url})
}

// ResetAll clears generated outputs, the stored file, and all child entries,
// but keeps the aggregate row itself: same id, same owner, back to defaults.
func (s *cvService) ResetAll(ctx context.Context, userID, cvID string) (*models.FullCV, error) {
	const op = "CVService.ResetAll"

	cv, err := s.owned(ctx, op, userID, cvID)
	if err != nil {
		return nil, err
	}

	if cv.OriginalFileURL != nil {
		if key := objectKeyFromURL(*cv.OriginalFileURL, userID); key != "" {
			// Remove treats a missing object as success; the file may already
			// be gone from an earlier reset.
			if err := s.store.Remove(ctx, key); err != nil {
				return nil, utils.E(utils.CodeUnavailable, op, "failed to remove stored file", err)
			}
		}
	}

	if _, err := s.Patch(ctx, userID, cvID, map[string]any{
		"title":             models.DefaultTitle,
		"status":            models.StatusDraft,
		"target_role":       nil,
		"personal_info":     nil,
		"original_file_url": nil,
		"generated_doc_url": nil,
		"generated_pdf_url": nil,
		"ats_score":         nil,
		"recommendations":   nil,
	}); err != nil {
		return nil, err
	}

	if err := s.repo.DeleteAllChildren(ctx, cvID); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to delete experience/education entries", err)
	}
	s.cacheDrop(ctx, userID)

	out, err := s.repo.GetByID(ctx, cvID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to reload CV", err)
	}
	s.cacheSet(ctx, userID, out)
	return out, nil
}

func (s *cvService) owned(ctx context.Context, op, userID, cvID string) (*models.FullCV, error) {
	if userID == "" || cvID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and cv_id are required", nil)
	}
	cv, err := s.repo.GetByID(ctx, cvID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "CV not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load CV", err)
	}
	if cv.UserID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "forbidden", nil)
	}
	return cv, nil
}

func (s *cvService) cacheSet(ctx context.Context, userID string, cv *models.FullCV) {
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, cvCacheKey(userID), cv, cvCacheTTL)
	}
}

func (s *cvService) cacheDrop(ctx context.Context, userID string) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, cvCacheKey(userID))
	}
}

func (s *cvService) publish(ctx context.Context, ev realtime.CVEvent) {
	if s.pub != nil {
		_ = s.pub.Publish(ctx, ev)
	}
}

// eventFromFields mirrors a patch onto the change channel so subscribers see
// exactly the fields that moved, read back from the refreshed row.
func eventFromFields(cvID string, fields map[string]any, cv *models.FullCV) realtime.CVEvent {
	ev := realtime.CVEvent{Type: realtime.EventCVUpdated, CVID: cvID}
	if _, ok := fields["status"]; ok {
		ev.Status = &cv.Status
	}
	if _, ok := fields["original_file_url"]; ok {
		ev.OriginalFileURL = cv.OriginalFileURL
	}
	if _, ok := fields["generated_doc_url"]; ok {
		ev.GeneratedDocURL = cv.GeneratedDocURL
	}
	if _, ok := fields["generated_pdf_url"]; ok {
		ev.GeneratedPDFURL = cv.GeneratedPDFURL
	}
	if _, ok := fields["ats_score"]; ok {
		ev.ATSScore = cv.ATSScore
	}
	if _, ok := fields["recommendations"]; ok {
		ev.Recommendations = cv.Recommendations
	}
	return ev
}

// objectKeyFromURL recovers the store key from a public URL by locating the
// owner segment, matching how the key was built at upload time.
func objectKeyFromURL(url, userID string) string {
	idx := strings.Index(url, userID+"/")
	if idx < 0 {
		return ""
	}
	return url[idx:]
}

func ids[T any](rows []T, id func(T) string) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, id(r))
	}
	return out
}
