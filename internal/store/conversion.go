package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/openwsi/slideconv/internal/store/model"
	"gorm.io/gorm"
)

type Conversion interface {
	Create(ctx context.Context, id uuid.UUID) (*model.Conversion, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Conversion, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, converted bool, errorMsg string) error
	InitialMigration() error
}

type ConversionStore struct {
	db *gorm.DB
}

// Make sure we conform to Conversion interface
var _ Conversion = (*ConversionStore)(nil)

func NewConversion(db *gorm.DB) Conversion {
	return &ConversionStore{db: db}
}

func (s *ConversionStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.Conversion{})
}

// Create registers a freshly received job as not yet converted.
func (s *ConversionStore) Create(ctx context.Context, id uuid.UUID) (*model.Conversion, error) {
	conversion := model.NewConversionFromId(id)
	result := s.db.WithContext(ctx).Create(conversion)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, result.Error
	}
	return conversion, nil
}

func (s *ConversionStore) Get(ctx context.Context, id uuid.UUID) (*model.Conversion, error) {
	conversion := model.NewConversionFromId(id)
	result := s.db.WithContext(ctx).First(conversion)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return conversion, nil
}

// UpdateStatus records the job's final outcome. The error message is the
// flattened failure chain, or empty on success.
func (s *ConversionStore) UpdateStatus(ctx context.Context, id uuid.UUID, converted bool, errorMsg string) error {
	result := s.db.WithContext(ctx).
		Model(&model.Conversion{}).
		Where("id = ?", id).
		Select("converted", "error_msg").
		Updates(map[string]any{"converted": converted, "error_msg": errorMsg})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
