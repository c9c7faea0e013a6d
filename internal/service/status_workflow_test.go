package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-calendar-api/internal/dto"
	"github.com/noah-isme/school-calendar-api/internal/models"
	appErrors "github.com/noah-isme/school-calendar-api/pkg/errors"
)

func TestPermissiveWorkflowAllowsAnyTransition(t *testing.T) {
	f := newEventFixture(t, false)
	for _, from := range models.EventStatuses {
		for _, to := range models.EventStatuses {
			assert.True(t, f.workflow.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, f.workflow.CanTransition(models.EventStatusPending, "archived"))
}

func TestStrictWorkflowGraph(t *testing.T) {
	f := newEventFixture(t, true)
	cases := []struct {
		from, to models.EventStatus
		allowed  bool
	}{
		{models.EventStatusPending, models.EventStatusInProgress, true},
		{models.EventStatusPending, models.EventStatusCancelled, true},
		{models.EventStatusPending, models.EventStatusCompleted, false},
		{models.EventStatusInProgress, models.EventStatusCompleted, true},
		{models.EventStatusInProgress, models.EventStatusCancelled, true},
		{models.EventStatusInProgress, models.EventStatusPending, false},
		{models.EventStatusCompleted, models.EventStatusPending, false},
		{models.EventStatusCompleted, models.EventStatusCompleted, true},
		{models.EventStatusCancelled, models.EventStatusInProgress, false},
		{models.EventStatusCancelled, models.EventStatusCancelled, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, f.workflow.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestStrictWorkflowRejectsBackwardMove(t *testing.T) {
	f := newEventFixture(t, true)
	ctx := context.Background()
	event := f.mustCreate(t, "Open house", models.TargetGroupAll)

	_, err := f.workflow.UpdateStatus(ctx, teacherID, event.ID, dto.UpdateStatusRequest{Status: "in_progress"})
	require.NoError(t, err)
	_, err = f.workflow.UpdateStatus(ctx, teacherID, event.ID, dto.UpdateStatusRequest{Status: "completed"})
	require.NoError(t, err)

	_, err = f.workflow.UpdateStatus(ctx, teacherID, event.ID, dto.UpdateStatusRequest{Status: "pending"})
	requireField(t, err, appErrors.ErrValidation.Code, "status")

	stored, err := f.events.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusCompleted, stored.Status)
	assert.Equal(t, 3, f.history.count())
}

func TestUpdateStatusValidation(t *testing.T) {
	f := newEventFixture(t, false)
	event := f.mustCreate(t, "Exam", models.TargetGroupAll)

	_, err := f.workflow.UpdateStatus(context.Background(), adminID, event.ID, dto.UpdateStatusRequest{Status: "archived"})
	requireField(t, err, appErrors.ErrValidation.Code, "status")

	_, err = f.workflow.UpdateStatus(context.Background(), adminID, event.ID, dto.UpdateStatusRequest{})
	requireField(t, err, appErrors.ErrValidation.Code, "status")
	assert.Equal(t, 1, f.history.count())
}

func TestUpdateStatusMissingEvent(t *testing.T) {
	f := newEventFixture(t, false)

	_, err := f.workflow.UpdateStatus(context.Background(), adminID, 77, dto.UpdateStatusRequest{Status: "completed"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, 0, f.history.count())
}

func TestUpdateStatusStampsProvenance(t *testing.T) {
	f := newEventFixture(t, false)
	event := f.mustCreate(t, "Exam", models.TargetGroupAll)

	updated, err := f.workflow.UpdateStatus(context.Background(), teacherID, event.ID, dto.UpdateStatusRequest{Status: "cancelled", StatusNote: strPtr("  storm warning ")})
	require.NoError(t, err)
	require.NotNil(t, updated.StatusNote)
	assert.Equal(t, "storm warning", *updated.StatusNote)
	assert.Equal(t, teacherID.UserID, *updated.StatusUpdatedBy)
	assert.Equal(t, *updated.StatusUpdatedAt, updated.UpdatedAt)

	stored, err := f.events.GetByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusCancelled, stored.Status)
	assert.Equal(t, *updated.StatusUpdatedAt, *stored.StatusUpdatedAt)

	entry := f.history.entries[len(f.history.entries)-1]
	assert.JSONEq(t, `{"previous_status":"pending","status":"cancelled","status_note":"storm warning"}`, string(entry.Changes))
}

func TestUpdateStatusReturnsUpdaterName(t *testing.T) {
	f := newEventFixture(t, false)
	f.events.names = map[int64]string{teacherID.UserID: "Test Teacher"}
	event := f.mustCreate(t, "Exam", models.TargetGroupAll)

	updated, err := f.workflow.UpdateStatus(context.Background(), teacherID, event.ID, dto.UpdateStatusRequest{Status: "in_progress"})
	require.NoError(t, err)
	require.NotNil(t, updated.StatusUpdatedByName)
	assert.Equal(t, "Test Teacher", *updated.StatusUpdatedByName)

	fetched, err := f.svc.Get(context.Background(), teacherID, event.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, fetched)
}

func TestUpdateStatusBlankNoteClears(t *testing.T) {
	f := newEventFixture(t, false)
	event := f.mustCreate(t, "Exam", models.TargetGroupAll)

	updated, err := f.workflow.UpdateStatus(context.Background(), adminID, event.ID, dto.UpdateStatusRequest{Status: "completed", StatusNote: strPtr("   ")})
	require.NoError(t, err)
	assert.Nil(t, updated.StatusNote)
}
