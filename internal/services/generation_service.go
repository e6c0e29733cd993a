package services

import (
	"context"
	"io"
	"time"

	"github.com/cvcraft/cvcraft/internal/models"
	"github.com/cvcraft/cvcraft/internal/providers/worker"
	mongorepo "github.com/cvcraft/cvcraft/internal/repositories/mongo"
	"github.com/cvcraft/cvcraft/internal/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// StagedFile is an upload submitted together with a generate request.
type StagedFile struct {
	Ext         string
	ContentType string
	Reader      io.Reader
}

// WorkerCallback is what the automation worker posts back when a job ends.
type WorkerCallback struct {
	UserID          string   `json:"user_id" binding:"required"`
	CVID            string   `json:"cv_id" binding:"required"`
	Success         bool     `json:"success"`
	GeneratedDocURL *string  `json:"generated_doc_url"`
	GeneratedPDFURL *string  `json:"generated_pdf_signed_url"`
	ATSScore        *int     `json:"ats_score"`
	Recommendations []string `json:"recommendations"`
	Error           string   `json:"error"`
}

// GenerationService sequences "save, mark processing, dispatch" and folds the
// worker's asynchronous completion back into the aggregate. Dispatch is
// fire-and-forget: a successful webhook call only means the job was accepted.
type GenerationService interface {
	Generate(ctx context.Context, userID, cvID string, snap *models.CVSnapshot, staged *StagedFile) (*models.FullCV, error)
	Optimize(ctx context.Context, userID, cvID, jobDescription string) (*models.FullCV, error)
	HandleWorkerCallback(ctx context.Context, cb WorkerCallback) (*models.FullCV, error)
	ListEvents(ctx context.Context, cvID string, limit int64) ([]models.GenerationEvent, error)
}

type generationService struct {
	cvs        CVService
	dispatcher worker.Dispatcher
	events     mongorepo.EventRepository
	log        *logrus.Logger
}

func NewGenerationService(cvs CVService, d worker.Dispatcher, events mongorepo.EventRepository, log *logrus.Logger) GenerationService {
	return &generationService{cvs: cvs, dispatcher: d, events: events, log: log}
}

// Generate runs the full protocol. Ordering matters: nothing is marked
// processing until the snapshot is persisted, and any failure after that
// lands the aggregate on failed, never stuck on processing.
func (s *generationService) Generate(ctx context.Context, userID, cvID string, snap *models.CVSnapshot, staged *StagedFile) (*models.FullCV, error) {
	const op = "GenerationService.Generate"

	cur, err := s.cvs.FetchOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cur.ID != cvID {
		return nil, utils.E(utils.CodeNotFound, op, "CV not found", nil)
	}
	// One attempt at a time per aggregate; regenerating from a terminal
	// status is allowed.
	if cur.Status == models.StatusProcessing {
		return nil, utils.E(utils.CodeConflict, op, "a generation is already in progress", nil)
	}

	cv, err := s.cvs.SaveAll(ctx, userID, cvID, snap)
	if err != nil {
		// Not saved, so no transition happened; the aggregate keeps its
		// previous status.
		return nil, err
	}
	s.record(ctx, cv, models.EventSaved, "", nil)

	cv, err = s.cvs.Patch(ctx, userID, cvID, map[string]any{"status": models.StatusProcessing})
	if err != nil {
		return nil, err
	}
	s.record(ctx, cv, models.EventStatus, "", nil)

	fileURL, err := s.resolveFileURL(ctx, userID, cvID, staged, cv)
	if err != nil {
		s.failAttempt(ctx, userID, cvID, err)
		return nil, err
	}

	req := worker.GenerateRequest{
		UserID:  userID,
		CVID:    cvID,
		FileURL: fileURL,
		FormFields: worker.FormFields{
			PersonalInfo: snap.PersonalInfo(),
			Experiences:  snap.ExperienceRows(cvID),
			Education:    snap.EducationRows(cvID),
			TargetRole:   snap.TargetRole,
			Language:     snap.Language,
		},
	}
	if err := s.dispatcher.DispatchGenerate(ctx, req); err != nil {
		derr := utils.E(utils.CodeUnavailable, op, err.Error(), err)
		s.failAttempt(ctx, userID, cvID, derr)
		return nil, derr
	}

	cv, err = s.cvs.FetchOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, cv, models.EventDispatched, fileURL, nil)
	return cv, nil
}

// Optimize re-runs the worker against an already generated document with a
// target job description.
func (s *generationService) Optimize(ctx context.Context, userID, cvID, jobDescription string) (*models.FullCV, error) {
	const op = "GenerationService.Optimize"

	if jobDescription == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "job description is required", nil)
	}

	cur, err := s.cvs.FetchOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cur.ID != cvID {
		return nil, utils.E(utils.CodeNotFound, op, "CV not found", nil)
	}
	if cur.GeneratedDocURL == nil || *cur.GeneratedDocURL == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "CV has no generated document to optimize", nil)
	}
	if cur.Status == models.StatusProcessing {
		return nil, utils.E(utils.CodeConflict, op, "a generation is already in progress", nil)
	}

	cv, err := s.cvs.Patch(ctx, userID, cvID, map[string]any{"status": models.StatusProcessing})
	if err != nil {
		return nil, err
	}

	req := worker.OptimizeRequest{
		UserID:         userID,
		CVID:           cvID,
		CVDocURL:       *cur.GeneratedDocURL,
		JobDescription: jobDescription,
	}
	if err := s.dispatcher.DispatchOptimize(ctx, req); err != nil {
		derr := utils.E(utils.CodeUnavailable, op, err.Error(), err)
		s.failAttempt(ctx, userID, cvID, derr)
		return nil, derr
	}

	s.record(ctx, cv, models.EventDispatched, "optimize", map[string]any{"job_description_len": len(jobDescription)})
	return cv, nil
}

// HandleWorkerCallback applies the worker's result. The patch path publishes
// the realtime event, so the UI learns about completion the same way it would
// from any other row change.
func (s *generationService) HandleWorkerCallback(ctx context.Context, cb WorkerCallback) (*models.FullCV, error) {
	const op = "GenerationService.HandleWorkerCallback"

	if cb.UserID == "" || cb.CVID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and cv_id are required", nil)
	}

	fields := map[string]any{}
	if cb.Success {
		fields["status"] = models.StatusCompleted
		if cb.GeneratedDocURL != nil {
			fields["generated_doc_url"] = *cb.GeneratedDocURL
		}
		if cb.GeneratedPDFURL != nil {
			fields["generated_pdf_url"] = *cb.GeneratedPDFURL
		}
		if cb.ATSScore != nil {
			fields["ats_score"] = *cb.ATSScore
		}
		if len(cb.Recommendations) > 0 {
			fields["recommendations"] = pq.StringArray(cb.Recommendations)
		}
	} else {
		fields["status"] = models.StatusFailed
	}

	cv, err := s.cvs.Patch(ctx, cb.UserID, cb.CVID, fields)
	if err != nil {
		return nil, err
	}
	s.record(ctx, cv, models.EventCallback, cb.Error, map[string]any{"success": cb.Success})
	return cv, nil
}

func (s *generationService) ListEvents(ctx context.Context, cvID string, limit int64) ([]models.GenerationEvent, error) {
	const op = "GenerationService.ListEvents"

	if cvID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "cv_id is required", nil)
	}
	out, err := s.events.ListByCV(ctx, cvID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list generation events", err)
	}
	return out, nil
}

// resolveFileURL uploads a staged file if one was submitted, otherwise falls
// back to the reference already on the row. The worker needs a source
// document, so having neither is a hard failure.
func (s *generationService) resolveFileURL(ctx context.Context, userID, cvID string, staged *StagedFile, cv *models.FullCV) (string, error) {
	const op = "GenerationService.Generate"

	if staged != nil {
		up, err := s.cvs.UploadFile(ctx, userID, cvID, staged.Ext, staged.ContentType, staged.Reader)
		if err != nil {
			return "", err
		}
		if up.OriginalFileURL != nil {
			return *up.OriginalFileURL, nil
		}
	}
	if cv.OriginalFileURL != nil && *cv.OriginalFileURL != "" {
		return *cv.OriginalFileURL, nil
	}
	return "", utils.E(utils.CodeInvalidArgument, op, "no CV file uploaded; the worker needs a source document", nil)
}

// failAttempt moves the aggregate to failed, best effort. A second failure
// here is logged and swallowed so the original error reaches the caller.
func (s *generationService) failAttempt(ctx context.Context, userID, cvID string, cause error) {
	cv, err := s.cvs.Patch(ctx, userID, cvID, map[string]any{"status": models.StatusFailed})
	if err != nil {
		if s.log != nil {
			s.log.WithError(err).WithField("cv_id", cvID).Warn("could not mark generation as failed")
		}
		return
	}
	s.record(ctx, cv, models.EventStatus, cause.Error(), nil)
}

// record appends to the audit trail; the trail is advisory and must never
// fail the request path.
func (s *generationService) record(ctx context.Context, cv *models.FullCV, typ models.EventType, detail string, payload map[string]any) {
	if s.events == nil {
		return
	}
	e := &models.GenerationEvent{
		EventID:   uuid.NewString(),
		CVID:      cv.ID,
		UserID:    cv.UserID,
		Type:      typ,
		Status:    cv.Status,
		Detail:    detail,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.events.Insert(ctx, e); err != nil && s.log != nil {
		s.log.WithError(err).WithField("cv_id", cv.ID).Warn("could not record generation event")
	}
}
