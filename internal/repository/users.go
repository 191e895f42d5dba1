package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"muscleai_backend/internal/model"
)

// EnsureProfile creates the profile on first sight and overwrites the email on
// every later call. Name and phone are only taken on insert; later changes go
// through UpdateProfile.
func (s *Store) EnsureProfile(ctx context.Context, p *model.Profile) error {
	return s.conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "updated_at"}),
		}).
		Create(p).Error
}

func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	var p model.Profile
	if err := s.conn(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id uuid.UUID, fullName, phone string) (*model.Profile, error) {
	res := s.conn(ctx).Model(&model.Profile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"full_name": fullName, "phone": phone})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetProfile(ctx, id)
}
