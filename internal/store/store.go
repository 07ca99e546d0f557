// Package store persists the per-job tracking state.
package store

import (
	"gorm.io/gorm"
)

type Store interface {
	Conversion() Conversion
	InitialMigration() error
	Close() error
}

type DataStore struct {
	conversion Conversion
	db         *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		conversion: NewConversion(db),
		db:         db,
	}
}

func (s *DataStore) Conversion() Conversion {
	return s.conversion
}

func (s *DataStore) InitialMigration() error {
	return s.conversion.InitialMigration()
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
