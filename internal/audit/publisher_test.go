package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"incorp/pkg/domain"
	"incorp/pkg/requestcontext"
)

func TestPublisherEnrichesFromContext(t *testing.T) {
	queue := make(chan Event, 1)
	p := NewPublisher(nil, WithQueue(queue))

	principal := requestcontext.Principal{ID: domain.PrincipalID(uuid.New()), Role: domain.RoleAdmin}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := requestcontext.WithPrincipal(context.Background(), principal)
	ctx = requestcontext.WithRequestID(ctx, "req-1")
	ctx = requestcontext.WithClientIP(ctx, "10.0.0.1")
	ctx = requestcontext.WithTime(ctx, now)

	require.NoError(t, p.Emit(ctx, Event{Action: ActionRequestAssigned, Subject: "r-1"}))

	got := <-queue
	assert.Equal(t, ActionRequestAssigned, got.Action)
	assert.Equal(t, now, got.Timestamp)
	assert.Equal(t, principal.ID.String(), got.ActorID)
	assert.Equal(t, "admin", got.ActorRole)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, "10.0.0.1", got.ClientIP)
}

func TestPublisherAnonymousActor(t *testing.T) {
	queue := make(chan Event, 1)
	p := NewPublisher(nil, WithQueue(queue))

	require.NoError(t, p.Emit(context.Background(), Event{Action: ActionRequestSubmitted}))
	got := <-queue
	assert.Empty(t, got.ActorID)
	assert.False(t, got.Timestamp.IsZero())
}

func TestPublisherDropsWhenQueueFull(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	queue := make(chan Event, 1)
	p := NewPublisher(logger, WithQueue(queue))

	require.NoError(t, p.Emit(context.Background(), Event{Action: ActionRequestSubmitted}))
	require.NoError(t, p.Emit(context.Background(), Event{Action: ActionRequestSubmitted}))

	assert.Len(t, queue, 1)
	assert.Contains(t, buf.String(), "audit queue full")
}

func TestPublisherLogsEveryEvent(t *testing.T) {
	var buf bytes.Buffer
	p := NewPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, p.Emit(context.Background(), Event{Action: ActionSignInFailed, Subject: "x@example.com"}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "audit", line["msg"])
	assert.Equal(t, "sign_in_failed", line["action"])
}
