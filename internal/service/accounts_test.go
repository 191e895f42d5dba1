package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muscleai_backend/internal/model"
	"muscleai_backend/pkg/apperror"
	"muscleai_backend/pkg/config"
)

func TestDeletionRequests(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	ctx := context.Background()

	req, err := e.accounts.RequestDeletion(ctx, e.user.ID, DeletionRequestInput{Reason: " moving on "})
	require.NoError(t, err)
	assert.Equal(t, model.DeletionPending, req.Status)
	assert.Equal(t, "asha@example.com", req.Email)
	require.NotNil(t, req.Reason)
	assert.Equal(t, "moving on", *req.Reason)

	_, err = e.accounts.RequestDeletion(ctx, e.user.ID, DeletionRequestInput{})
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))

	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(e.accounts.CancelDeletion(ctx, uuid.New(), req.ID)))
	require.NoError(t, e.accounts.CancelDeletion(ctx, e.user.ID, req.ID))
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(e.accounts.CancelDeletion(ctx, e.user.ID, req.ID)))

	_, err = e.accounts.RequestDeletion(ctx, e.user.ID, DeletionRequestInput{})
	require.NoError(t, err)

	list, err := e.accounts.DeletionRequests(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestUpdateProfile(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	ctx := context.Background()

	p, err := e.accounts.UpdateProfile(ctx, e.user.ID, UpdateProfileInput{FullName: " Asha Rao ", Phone: "+91 98765 43210"})
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", p.FullName)
	assert.Equal(t, "+91 98765 43210", p.Phone)

	_, err = e.accounts.UpdateProfile(ctx, e.user.ID, UpdateProfileInput{Phone: "call me"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = e.accounts.UpdateProfile(ctx, uuid.New(), UpdateProfileInput{FullName: "Nobody"})
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}
