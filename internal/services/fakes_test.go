package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/cvcraft/cvcraft/internal/models"
	"github.com/cvcraft/cvcraft/internal/providers/worker"
	"github.com/cvcraft/cvcraft/internal/realtime"
	"github.com/cvcraft/cvcraft/internal/utils"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// memRepo is an in-memory stand-in for the postgres CV repository. Reads
// return copies so tests observe the same detachment a real row fetch has.
type memRepo struct {
	mu   sync.Mutex
	cvs  map[string]*models.UserCV // by cv id
	exps map[string]models.Experience
	edus map[string]models.Education

	failUpsertExperiences bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		cvs:  map[string]*models.UserCV{},
		exps: map[string]models.Experience{},
		edus: map[string]models.Education{},
	}
}

func (r *memRepo) GetByUserID(_ context.Context, userID string) (*models.FullCV, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cv := range r.cvs {
		if cv.UserID == userID {
			return r.assemble(cv), nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *memRepo) GetByID(_ context.Context, cvID string) (*models.FullCV, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cv, ok := r.cvs[cvID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return r.assemble(cv), nil
}

func (r *memRepo) assemble(row *models.UserCV) *models.FullCV {
	out := &models.FullCV{UserCV: *row}
	for _, e := range r.exps {
		if e.CVID == row.ID {
			out.Experiences = append(out.Experiences, e)
		}
	}
	for _, e := range r.edus {
		if e.CVID == row.ID {
			out.Education = append(out.Education, e)
		}
	}
	sort.Slice(out.Experiences, func(i, j int) bool { return out.Experiences[i].SortOrder < out.Experiences[j].SortOrder })
	sort.Slice(out.Education, func(i, j int) bool { return out.Education[i].SortOrder < out.Education[j].SortOrder })
	return out
}

func (r *memRepo) Insert(_ context.Context, cv *models.UserCV) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := *cv
	r.cvs[cv.ID] = &row
	return nil
}

func (r *memRepo) UpdateFields(_ context.Context, cvID string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cv, ok := r.cvs[cvID]
	if !ok {
		return utils.ErrNotFound
	}
	for k, v := range fields {
		if err := setField(cv, k, v); err != nil {
			return err
		}
	}
	return nil
}

func setField(cv *models.UserCV, k string, v any) error {
	switch k {
	case "title":
		cv.Title = v.(string)
	case "status":
		cv.Status = v.(models.CVStatus)
	case "language":
		cv.Language = v.(models.CVLanguage)
	case "target_role":
		cv.TargetRole = strPtrOrNil(v)
	case "personal_info":
		if v == nil {
			cv.PersonalInfo = datatypes.NewJSONType[*models.PersonalInfo](nil)
		} else {
			cv.PersonalInfo = v.(datatypes.JSONType[*models.PersonalInfo])
		}
	case "original_file_url":
		cv.OriginalFileURL = strPtrOrNil(v)
	case "generated_doc_url":
		cv.GeneratedDocURL = strPtrOrNil(v)
	case "generated_pdf_url":
		cv.GeneratedPDFURL = strPtrOrNil(v)
	case "ats_score":
		if v == nil {
			cv.ATSScore = nil
		} else {
			n := v.(int)
			cv.ATSScore = &n
		}
	case "recommendations":
		if v == nil {
			cv.Recommendations = nil
		} else {
			cv.Recommendations = v.(pq.StringArray)
		}
	case "updated_at":
		// timestamps are irrelevant to these tests
	default:
		return fmt.Errorf("setField: unexpected column %q", k)
	}
	return nil
}

func strPtrOrNil(v any) *string {
	if v == nil {
		return nil
	}
	s := v.(string)
	return &s
}

func (r *memRepo) UpsertExperiences(_ context.Context, rows []models.Experience) error {
	if r.failUpsertExperiences {
		return fmt.Errorf("upsert experiences: store unavailable")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		r.exps[row.ID] = row
	}
	return nil
}

func (r *memRepo) DeleteExperiencesNotIn(_ context.Context, cvID string, keepIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	keep := map[string]struct{}{}
	for _, id := range keepIDs {
		keep[id] = struct{}{}
	}
	for id, row := range r.exps {
		if row.CVID == cvID {
			if _, ok := keep[id]; !ok {
				delete(r.exps, id)
			}
		}
	}
	return nil
}

func (r *memRepo) UpsertEducation(_ context.Context, rows []models.Education) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		r.edus[row.ID] = row
	}
	return nil
}

func (r *memRepo) DeleteEducationNotIn(_ context.Context, cvID string, keepIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	keep := map[string]struct{}{}
	for _, id := range keepIDs {
		keep[id] = struct{}{}
	}
	for id, row := range r.edus {
		if row.CVID == cvID {
			if _, ok := keep[id]; !ok {
				delete(r.edus, id)
			}
		}
	}
	return nil
}

func (r *memRepo) ForeignExperienceIDs(_ context.Context, cvID string, ids []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, id := range ids {
		if row, ok := r.exps[id]; ok && row.CVID != cvID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *memRepo) ForeignEducationIDs(_ context.Context, cvID string, ids []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, id := range ids {
		if row, ok := r.edus[id]; ok && row.CVID != cvID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *memRepo) DeleteAllChildren(_ context.Context, cvID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, row := range r.exps {
		if row.CVID == cvID {
			delete(r.exps, id)
		}
	}
	for id, row := range r.edus {
		if row.CVID == cvID {
			delete(r.edus, id)
		}
	}
	return nil
}

// memStore fakes the object store.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (s *memStore) Upload(_ context.Context, objectName, _ string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectName] = b
	return "https://storage.googleapis.com/test-bucket/" + objectName, nil
}

func (s *memStore) Remove(_ context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectName) // missing object is fine, same as GCS impl
	s.removed = append(s.removed, objectName)
	return nil
}

func (s *memStore) has(objectName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[objectName]
	return ok
}

// memPublisher records realtime events.
type memPublisher struct {
	mu     sync.Mutex
	events []realtime.CVEvent
}

func (p *memPublisher) Publish(_ context.Context, ev realtime.CVEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *memPublisher) all() []realtime.CVEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]realtime.CVEvent(nil), p.events...)
}

// memDispatcher fakes the automation worker webhooks.
type memDispatcher struct {
	mu          sync.Mutex
	generateErr error
	optimizeErr error
	generated   []worker.GenerateRequest
	optimized   []worker.OptimizeRequest
}

func (d *memDispatcher) DispatchGenerate(_ context.Context, req worker.GenerateRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.generateErr != nil {
		return d.generateErr
	}
	d.generated = append(d.generated, req)
	return nil
}

func (d *memDispatcher) DispatchOptimize(_ context.Context, req worker.OptimizeRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.optimizeErr != nil {
		return d.optimizeErr
	}
	d.optimized = append(d.optimized, req)
	return nil
}

// memEvents fakes the mongo audit trail.
type memEvents struct {
	mu     sync.Mutex
	events []models.GenerationEvent
}

func (e *memEvents) Insert(_ context.Context, ev *models.GenerationEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, *ev)
	return nil
}

func (e *memEvents) ListByCV(_ context.Context, cvID string, _ int64) ([]models.GenerationEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []models.GenerationEvent
	for _, ev := range e.events {
		if ev.CVID == cvID {
			out = append(out, ev)
		}
	}
	return out, nil
}
