package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading/internal/dto"
	"github.com/noah-isme/gema-grading/internal/repository"
)

func TestActivityServiceRecordAndList(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewActivityService(repository.NewActivityLogRepository(db), testLogger())
	ctx := context.Background()
	entityID := uint(12)

	recorded, err := svc.Record(ctx, ActivityEntry{
		ActorID:       4,
		ActorRole:     " Teacher ",
		Action:        "Submission.Question_Graded",
		EntityType:    "Submission",
		EntityID:      &entityID,
		CorrelationID: "corr-1",
		Metadata:      map[string]interface{}{"student_email": "a@example.com", "score": 3},
	})
	require.NoError(t, err)
	require.Equal(t, "teacher", recorded.ActorRole)
	require.Equal(t, "submission.question_graded", recorded.Action)
	require.Equal(t, "***", recorded.Metadata["student_email"])

	_, err = svc.Record(ctx, ActivityEntry{Action: "assessment.regraded", EntityType: "assessment"})
	require.NoError(t, err)

	list, err := svc.List(ctx, dto.ActivityListRequest{EntityType: "submission", EntityID: entityID})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, "corr-1", list.Items[0].CorrelationID)

	all, err := svc.List(ctx, dto.ActivityListRequest{Page: 1, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, all.Items, 1)
	require.Equal(t, int64(2), all.Pagination.TotalItems)
	require.Equal(t, 2, all.Pagination.TotalPages)
	require.Equal(t, "system", all.Items[0].ActorRole)
}

func TestActivityServiceRequiresActionAndEntity(t *testing.T) {
	svc := NewActivityService(repository.NewActivityLogRepository(setupServiceDB(t)), testLogger())

	_, err := svc.Record(context.Background(), ActivityEntry{EntityType: "submission"})
	require.Error(t, err)
	_, err = svc.Record(context.Background(), ActivityEntry{Action: "x"})
	require.Error(t, err)
}

func TestNATSEventPublisherWithoutConnectionIsNoop(t *testing.T) {
	publisher := NewNATSEventPublisher(nil, "")
	require.NoError(t, publisher.PublishGraded(context.Background(), GradedEvent{SubmissionID: 1}))
}
