package services

import (
	"context"
	"strings"
	"testing"

	"github.com/cvcraft/cvcraft/internal/models"
	"github.com/cvcraft/cvcraft/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCVService() (CVService, *memRepo, *memStore, *memPublisher) {
	repo := newMemRepo()
	store := newMemStore()
	pub := &memPublisher{}
	return NewCVService(repo, store, nil, pub), repo, store, pub
}

func sampleSnapshot() *models.CVSnapshot {
	end := "2023-06-01"
	return &models.CVSnapshot{
		Name:       "Ada Lovelace",
		Email:      "ada@example.com",
		Phone:      "+33 6 00 00 00 00",
		Summary:    "Engineer.",
		TargetRole: "Backend Engineer",
		Language:   models.LangEN,
		Experience: []models.ExperienceInput{
			{ID: uuid.NewString(), Company: "Analytical Engines Ltd", Position: "Engineer", StartDate: "2020-01-01", EndDate: &end},
			{ID: uuid.NewString(), Company: "Babbage & Co", Position: "Consultant", StartDate: "2023-07-01"},
		},
		Education: []models.EducationInput{
			{ID: uuid.NewString(), Institution: "University of London", Degree: "BSc Mathematics", StartDate: "2016-09-01"},
		},
		Skills: []string{"Go", "SQL"},
	}
}

func TestFetchOrCreateCreatesDraftWorkspace(t *testing.T) {
	svc, _, _, _ := newTestCVService()
	ctx := context.Background()

	cv, err := svc.FetchOrCreate(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, "user-1", cv.UserID)
	assert.Equal(t, models.StatusDraft, cv.Status)
	assert.Equal(t, models.LangEN, cv.Language)
	assert.Equal(t, models.DefaultTitle, cv.Title)
	assert.Empty(t, cv.Experiences)
	assert.Empty(t, cv.Education)
}

func TestFetchOrCreateIsIdempotent(t *testing.T) {
	svc, _, _, _ := newTestCVService()
	ctx := context.Background()

	first, err := svc.FetchOrCreate(ctx, "user-1")
	require.NoError(t, err)
	second, err := svc.FetchOrCreate(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestSaveAllRoundTrip(t *testing.T) {
	svc, _, _, _ := newTestCVService()
	ctx := context.Background()

	cv, err := svc.FetchOrCreate(ctx, "user-1")
	require.NoError(t, err)

	snap := sampleSnapshot()
	saved, err := svc.SaveAll(ctx, "user-1", cv.ID, snap)
	require.NoError(t, err)

	require.Len(t, saved.Experiences, 2)
	require.Len(t, saved.Education, 1)
	assert.Equal(t, snap.Experience[0].ID, saved.Experiences[0].ID)
	assert.Equal(t, snap.Experience[1].ID, saved.Experiences[1].ID)
	assert.Equal(t, "Backend Engineer", *saved.TargetRole)
	assert.Equal(t, models.LangEN, saved.Language)

	info := saved.PersonalInfo.Data()
	require.NotNil(t, info)
	assert.Equal(t, "Ada Lovelace", info.Name)
	assert.Equal(t, []string{"Go", "SQL"}, info.Skills)

	reloaded, err := svc.FetchOrCreate(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, reloaded.ID)
	require.Len(t, reloaded.Experiences, 2)
	require.Len(t, reloaded.Education, 1)
}

func TestSaveAllDeletesRemovedEntries(t *testing.T) {
	svc, _, _, _ := newTestCVService()
	ctx := context.Background()

	cv, err := svc.FetchOrCreate(ctx, "user-1")
	require.NoError(t, err)

	snap := sampleSnapshot()
	_, err = svc.SaveAll(ctx, "user-1", cv.ID, snap)
	require.NoError(t, err)

	// resubmit with the second experience removed
	snap.Experience = snap.Experience[:1]
	saved, err := svc.SaveAll(ctx, "user-1", cv.ID, snap)
	require.NoError(t, err)

	require.Len(t, saved.Experiences, 1)
	assert.Equal(t, snap.Experience[0].ID, saved.Experiences[0].ID)
	require.Len(t, saved.Education, 1)
}

func TestSaveAllNormalizesEmptyEndDateToNull(t *testing.T) {
	svc, _, _, _ := newTestCVService()
	ctx := context.Background()

	cv, err := svc.FetchOrCreate(ctx, "user-1")
	require.NoError(t, err)

	empty := "   "
	snap := sampleSnapshot()
	snap.Experience = snap.Experience[:1]
	snap.Experience[0].EndDate = &empty
	snap.Education[0].EndDate = &empty

	saved, err := svc.SaveAll(ctx, "user-1", cv.ID, snap)
	require.NoError(t, err)

	require.Len(t, saved.Experiences, 1)
	assert.Nil(t, saved.Experiences[0].EndDate)
	assert.Nil(t, saved.Education[0].EndDate)
}

func TestSaveAllChildFailureKeepsScalarUpdate(t *testing.T) {
	repo := newMemRepo()
	svc := NewCVService(repo, newMemStore(), nil, &memPublisher{})
	ctx := context.Background()

	cv, err := svc.FetchOrCreate(ctx, "user-1")
	require.NoError(t, err)

	repo.failUpsertExperiences = true
	_, err = svc.SaveAll(ctx, "user-1", cv.ID, sampleSnapshot())
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInternal))

	// the scalar phase already landed; at-least-once, not transactional
	row, err := repo.GetByID(ctx, cv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", row.Title)
}

func TestSaveAllRejectsChildIDOwnedByAnotherAggregate(t *testing.T) {
	svc, _, _, _ := newTestCVService()
	ctx := context.Background()

	victim, err := svc.FetchOrCreate(ctx, "user-1")
	require.NoError(t, err)
	victimSnap := sampleSnapshot()
	_, err = svc.SaveAll(ctx, "user-1", victim.ID, victimSnap)
	require.NoError(t, err)

	attacker, err := svc.FetchOrCreate(ctx, "user-2")
	require.NoError(t, err)

	// re-using one of user-1's experience ids in user-2's own snapshot
	snap := sampleSnapshot()
	snap.Experience[0].ID = victimSnap.Experience[0].ID
	_, err = svc.SaveAll(ctx, "user-2", attacker.ID, snap)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeForbidden))

	// same guard for education ids
	snap = sampleSnapshot()
	snap.Education[0].ID = victimSnap.Education[0].ID
	_, err = svc.SaveAll(ctx, "user-2", attacker.ID, snap)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeForbidden))

	// user-1's aggregate is untouched
	reloaded, err := svc.FetchOrCreate(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, reloaded.Experiences, 2)
	assert.Equal(t, "Analytical Engines Ltd", reloaded.Experiences[0].Company)
	require.Len(t, reloaded.Education, 1)
	assert.Equal(t, "University of London", reloaded.Education[0].Institution)
}

func TestSaveAllRejectsForeignCV(t *testing.T) {
	svc, _, _, _ := newTestCVService()
	ctx := context.Background()

	cv, err := svc.FetchOrCreate(ctx, "user-1")
	require.NoError(t, err)

	_, err = svc.SaveAll(ctx, "user-2", cv.ID, sampleSnapshot())
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeForbidden))
}

func TestUploadFileIsIdempotentPerAggregate(t *testing.T) {
	svc, _, store, _ := newTestCVService()
	ctx := context.Background()

	cv, err := svc.FetchOrCreate(ctx, "user-1")
	require.NoError(t, err)

	up1, err := svc.UploadFile(ctx, "user-1", cv.ID, "pdf", "application/pdf", strings.NewReader("v1"))
	require.NoError(t, err)
	require.NotNil(t, up1.OriginalFileURL)

	up2, err := svc.UploadFile(ctx, "user-1", cv.ID, "pdf", "application/pdf", strings.NewReader("v2"))
	require.NoError(t, err)

	// same key, same URL: the second upload overwrote the first object
	assert.Equal(t, *up1.OriginalFileURL, *up2.OriginalFileURL)
	assert.True(t, store.has("user-1/"+cv.ID+".pdf"))
}

func TestPatchRefreshesAndPublishes(t *testing.T) {
	svc, _, _, pub := newTestCVService()
	ctx := context.Background()

	cv, err := svc.FetchOrCreate(ctx, "user-1")
	require.NoError(t, err)

	patched, err := svc.Patch(ctx, "user-1", cv.ID, map[string]any{"status": models.StatusProcessing})
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, patched.Status)

	events := pub.all()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, cv.ID, last.CVID)
	require.NotNil(t, last.Status)
	assert.Equal(t, models.StatusProcessing, *last.Status)
}

func TestResetAllKeepsIdentity(t *testing.T) {
	svc, _, store, _ := newTestCVService()
	ctx := context.Background()

	cv, err := svc.FetchOrCreate(ctx, "user-1")
	require.NoError(t, err)

	_, err = svc.SaveAll(ctx, "user-1", cv.ID, sampleSnapshot())
	require.NoError(t, err)
	_, err = svc.UploadFile(ctx, "user-1", cv.ID, "pdf", "application/pdf", strings.NewReader("doc"))
	require.NoError(t, err)

	reset, err := svc.ResetAll(ctx, "user-1", cv.ID)
	require.NoError(t, err)

	assert.Equal(t, cv.ID, reset.ID)
	assert.Equal(t, "user-1", reset.UserID)
	assert.Equal(t, models.StatusDraft, reset.Status)
	assert.Equal(t, models.DefaultTitle, reset.Title)
	assert.Nil(t, reset.TargetRole)
	assert.Nil(t, reset.OriginalFileURL)
	assert.Nil(t, reset.GeneratedDocURL)
	assert.Empty(t, reset.Experiences)
	assert.Empty(t, reset.Education)
	assert.False(t, store.has("user-1/"+cv.ID+".pdf"))

	// a second reset must tolerate the already-missing file
	_, err = svc.ResetAll(ctx, "user-1", cv.ID)
	require.NoError(t, err)

	again, err := svc.FetchOrCreate(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, cv.ID, again.ID)
}
