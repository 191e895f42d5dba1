package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"muscleai_backend/internal/model"
	"muscleai_backend/internal/repository"
	"muscleai_backend/pkg/apperror"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9 ]{7,20}$`)

// AccountService manages the caller's profile and account deletion requests.
type AccountService struct {
	store *repository.Store
	log   *slog.Logger
}

func NewAccountService(store *repository.Store, log *slog.Logger) *AccountService {
	return &AccountService{store: store, log: log}
}

func (s *AccountService) Profile(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, notFound(err, "User profile not found")
	}
	return p, nil
}

type UpdateProfileInput struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

func (s *AccountService) UpdateProfile(ctx context.Context, userID uuid.UUID, in UpdateProfileInput) (*model.Profile, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.TrimSpace(in.Phone)
	if len(in.FullName) > 100 {
		return nil, apperror.Validation("Full name must be at most 100 characters")
	}
	if in.Phone != "" && !phonePattern.MatchString(in.Phone) {
		return nil, apperror.Validation("Invalid phone number")
	}

	p, err := s.store.UpdateProfile(ctx, userID, in.FullName, in.Phone)
	if err != nil {
		return nil, notFound(err, "User profile not found")
	}
	return p, nil
}

type DeletionRequestInput struct {
	Reason string `json:"reason"`
}

// RequestDeletion files a deletion request. Only one may be pending at a time.
func (s *AccountService) RequestDeletion(ctx context.Context, userID uuid.UUID, in DeletionRequestInput) (*model.AccountDeletionRequest, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, notFound(err, "User profile not found")
	}

	if _, err := s.store.FindPendingDeletionRequest(ctx, userID); err == nil {
		return nil, apperror.Conflict("A deletion request is already pending")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Internal("", fmt.Errorf("find pending deletion request: %w", err))
	}

	req := &model.AccountDeletionRequest{
		UserID: userID,
		Email:  p.Email,
		Status: model.DeletionPending,
	}
	if reason := strings.TrimSpace(in.Reason); reason != "" {
		req.Reason = &reason
	}
	if err := s.store.CreateDeletionRequest(ctx, req); err != nil {
		return nil, apperror.Internal("", fmt.Errorf("create deletion request: %w", err))
	}
	s.log.Info("account deletion requested", "user_id", userID, "request_id", req.ID)
	return req, nil
}

func (s *AccountService) DeletionRequests(ctx context.Context, userID uuid.UUID) ([]model.AccountDeletionRequest, error) {
	reqs, err := s.store.ListDeletionRequests(ctx, userID)
	if err != nil {
		return nil, apperror.Internal("", fmt.Errorf("list deletion requests: %w", err))
	}
	return reqs, nil
}

func (s *AccountService) CancelDeletion(ctx context.Context, userID, id uuid.UUID) error {
	ok, err := s.store.SetDeletionStatus(ctx, userID, id, model.DeletionPending, model.DeletionCancelled)
	if err != nil {
		return apperror.Internal("", fmt.Errorf("cancel deletion request: %w", err))
	}
	if !ok {
		return apperror.NotFound("No pending deletion request found")
	}
	s.log.Info("account deletion cancelled", "user_id", userID, "request_id", id)
	return nil
}
