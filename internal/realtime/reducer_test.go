package realtime

import (
	"testing"

	"github.com/cvcraft/cvcraft/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusPtr(s models.CVStatus) *models.CVStatus { return &s }
func strPtr(s string) *string                      { return &s }

func draftCV(id string) *models.FullCV {
	return &models.FullCV{UserCV: models.UserCV{ID: id, UserID: "user-1", Status: models.StatusDraft}}
}

func TestApplyMergesOnlyPushedFields(t *testing.T) {
	cv := draftCV("cv-1")
	cv.OriginalFileURL = strPtr("https://files/cv-1.pdf")

	changed := Apply(cv, CVEvent{
		Type:   EventCVUpdated,
		CVID:   "cv-1",
		Status: statusPtr(models.StatusProcessing),
	})

	assert.True(t, changed)
	assert.Equal(t, models.StatusProcessing, cv.Status)
	// absent fields stay put
	require.NotNil(t, cv.OriginalFileURL)
	assert.Equal(t, "https://files/cv-1.pdf", *cv.OriginalFileURL)
}

func TestApplyIgnoresOtherAggregates(t *testing.T) {
	cv := draftCV("cv-1")
	changed := Apply(cv, CVEvent{CVID: "cv-2", Status: statusPtr(models.StatusCompleted)})
	assert.False(t, changed)
	assert.Equal(t, models.StatusDraft, cv.Status)
}

func TestApplyDuplicateTerminalEventIsNoOp(t *testing.T) {
	cv := draftCV("cv-1")
	done := CVEvent{
		CVID:            "cv-1",
		Status:          statusPtr(models.StatusCompleted),
		GeneratedDocURL: strPtr("https://docs.google.com/document/d/abc/edit"),
	}

	assert.True(t, Apply(cv, done))
	assert.False(t, Apply(cv, done))
	assert.Equal(t, models.StatusCompleted, cv.Status)
}

func TestWaiterResolvesExactlyOnce(t *testing.T) {
	w := NewWaiter()

	w.Resolve(models.StatusProcessing) // not terminal, must not release
	select {
	case <-w.Done():
		t.Fatal("waiter released on non-terminal status")
	default:
	}

	w.Resolve(models.StatusCompleted)
	w.Resolve(models.StatusCompleted)
	w.Resolve(models.StatusFailed)

	got, ok := <-w.Done()
	require.True(t, ok)
	assert.Equal(t, models.StatusCompleted, got)

	// channel is closed after the first delivery
	_, ok = <-w.Done()
	assert.False(t, ok)
}

func TestSessionReleasesLoadingIndicatorOnce(t *testing.T) {
	s := NewSession(draftCV("cv-1"))

	s.Feed(CVEvent{CVID: "cv-1", Status: statusPtr(models.StatusProcessing)})
	select {
	case <-s.Waiter().Done():
		t.Fatal("released while still processing")
	default:
	}

	completed := CVEvent{
		CVID:            "cv-1",
		Status:          statusPtr(models.StatusCompleted),
		GeneratedDocURL: strPtr("https://docs.google.com/document/d/abc/edit"),
	}
	s.Feed(completed)
	s.Feed(completed) // duplicate notification

	got, ok := <-s.Waiter().Done()
	require.True(t, ok)
	assert.Equal(t, models.StatusCompleted, got)
	_, ok = <-s.Waiter().Done()
	assert.False(t, ok)

	cv := s.CV()
	assert.Equal(t, models.StatusCompleted, cv.Status)
	require.NotNil(t, cv.GeneratedDocURL)
}

func TestSessionToleratesEventBeforeOptimisticWrite(t *testing.T) {
	// the worker's completion can land before our own "processing" patch is
	// reflected locally; the waiter still carries the terminal status
	s := NewSession(draftCV("cv-1"))

	s.Feed(CVEvent{CVID: "cv-1", Status: statusPtr(models.StatusCompleted)})
	s.Feed(CVEvent{CVID: "cv-1", Status: statusPtr(models.StatusProcessing)})

	got := <-s.Waiter().Done()
	assert.Equal(t, models.StatusCompleted, got)
}
