package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeAssignsEventID(t *testing.T) {
	payload, err := encode(SubmissionStored{SubmissionID: 7, RoundID: 3, TotalScore: 175, MaxPossibleScore: 200, SubmittedAt: time.Now().UTC()})
	require.NoError(t, err)

	var decoded SubmissionStored
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.NotEmpty(t, decoded.EventID)
	require.Equal(t, 175, decoded.TotalScore)
}

func TestNATSPublisherWithoutConnectionIsNoop(t *testing.T) {
	publisher := NewNATSPublisher(nil, "")
	require.Equal(t, SubjectSubmissionStored, publisher.subject)
	require.NoError(t, publisher.PublishSubmissionStored(context.Background(), SubmissionStored{}))
	require.NoError(t, NopPublisher{}.PublishSubmissionStored(context.Background(), SubmissionStored{}))
}
