package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/job-matcher/internal/model"
)

func TestNewRecommendation(t *testing.T) {
	job := &model.JobPosting{ID: "j1", Title: "Backend Engineer"}
	cand := &model.CandidateProfile{ID: "c1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
	rec := &model.MatchRecord{MatchScore: 77, Details: model.MatchDetails{MatchedSkills: []string{"go"}}}

	msg := NewRecommendation(job, cand, rec)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, KindRecommendation, msg.Kind)
	assert.Equal(t, "Ada Lovelace", msg.CandidateName)
	assert.Equal(t, 77, msg.Score)
	assert.Equal(t, []string{"go"}, msg.MatchedSkills)
	assert.NotEqual(t, msg.ID, NewRecommendation(job, cand, rec).ID)
}

func TestRedisOutboxIsFIFO(t *testing.T) {
	list := &fakeList{}
	outbox := newRedisOutbox(list, "")
	ctx := context.Background()

	require.NoError(t, outbox.Enqueue(ctx, Message{ID: "1", CandidateID: "c1"}))
	require.NoError(t, outbox.Enqueue(ctx, Message{ID: "2", CandidateID: "c2"}))
	assert.Equal(t, 2, list.len(DefaultQueue))

	first, ok, err := outbox.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", first.ID)

	second, ok, err := outbox.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c2", second.CandidateID)

	_, ok, err = outbox.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisOutboxEnqueueError(t *testing.T) {
	outbox := newRedisOutbox(&fakeList{pushErr: errors.New("connection refused")}, "q")

	err := outbox.Enqueue(context.Background(), Message{ID: "1"})
	assert.ErrorContains(t, err, "connection refused")
}

func TestRedisOutboxRejectsGarbage(t *testing.T) {
	list := &fakeList{}
	list.LPush(context.Background(), "q", "not json")

	_, _, err := newRedisOutbox(list, "q").Dequeue(context.Background(), time.Second)
	assert.ErrorContains(t, err, "decode message")
}
