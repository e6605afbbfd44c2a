package server

import (
	"context"
	"testing"

	"syncup-api/core/errors"
	authworker "syncup-api/modules/auth/worker"
	"syncup-api/modules/event/entity"
	eventworker "syncup-api/modules/event/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingApplier struct{ calls int }

func (a *countingApplier) ApplyCommit(context.Context, entity.CommitMessage) *errors.AppError {
	a.calls++
	return nil
}

type countingPruner struct{ calls int }

func (p *countingPruner) PruneAppliedCommits(context.Context) (int64, *errors.AppError) {
	p.calls++
	return 0, nil
}

type countingCleaner struct{ calls int }

func (c *countingCleaner) CleanupExpiredStates(context.Context) (int64, *errors.AppError) {
	c.calls++
	return 0, nil
}

func TestNewMux_RoutesTasks(t *testing.T) {
	applier := &countingApplier{}
	pruner := &countingPruner{}
	cleaner := &countingCleaner{}
	mux := NewMux(
		eventworker.NewAvailabilityHandler(applier),
		eventworker.NewPruneHandler(pruner),
		authworker.NewCleanupHandler(cleaner),
	)
	ctx := context.Background()

	task, err := eventworker.NewAvailabilityWriteTask(entity.CommitMessage{EventKey: "evt", Participant: "bob"})
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(ctx, task))
	assert.Equal(t, 1, applier.calls)

	require.NoError(t, mux.ProcessTask(ctx, eventworker.NewPruneCommitsTask()))
	assert.Equal(t, 1, pruner.calls)

	require.NoError(t, mux.ProcessTask(ctx, authworker.NewCleanupStatesTask()))
	assert.Equal(t, 1, cleaner.calls)
}
