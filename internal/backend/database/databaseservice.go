package database

import "database/sql"

type DatabaseService interface {
	CreateDatabase() (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	// CreatePrediction stores a served prediction and returns its ID. ID and
	// CreatedAt are filled in when empty.
	CreatePrediction(record *PredictionRecord) (string, error)
	// GetPredictions returns up to limit records, newest first, without thumbnails.
	GetPredictions(limit int) ([]*PredictionRecord, error)
	// GetPredictionByID returns nil, nil when no record matches.
	GetPredictionByID(id string) (*PredictionRecord, error)
	DeletePrediction(id string) error
	// PrunePredictions keeps the newest keep records and reports how many were removed.
	PrunePredictions(keep int) (int64, error)
	CountPredictions() (int, error)
}
