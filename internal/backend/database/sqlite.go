package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// every new connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase() (*sql.DB, error) {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		thumbnail BLOB,
		top_breed TEXT NOT NULL,
		top_confidence REAL NOT NULL,
		result TEXT NOT NULL
	)`)
	if err != nil {
		return nil, err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions (created_at)`)
	if err != nil {
		return nil, err
	}

	return s.db, nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// SQLite creates the file on connect, so a successful ping is enough.
	err := s.db.Ping()
	return err == nil
}

func (s *SQLiteDatabase) CreatePrediction(record *PredictionRecord) (string, error) {
	if record == nil {
		return "", fmt.Errorf("prediction record is nil")
	}
	if record.ID == "" {
		id, err := generateID()
		if err != nil {
			return "", err
		}
		record.ID = id
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`INSERT INTO predictions (id, created_at, thumbnail, top_breed, top_confidence, result)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID, record.CreatedAt.UnixNano(), record.Thumbnail, record.TopBreed, record.TopConfidence, string(record.Result))
	if err != nil {
		return "", err
	}
	return record.ID, nil
}

func (s *SQLiteDatabase) GetPredictions(limit int) ([]*PredictionRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	rows, err := s.db.Query(`SELECT id, created_at, top_breed, top_confidence, result
		FROM predictions ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []*PredictionRecord
	for rows.Next() {
		var (
			record    PredictionRecord
			createdAt int64
			result    string
		)
		if err := rows.Scan(&record.ID, &createdAt, &record.TopBreed, &record.TopConfidence, &result); err != nil {
			return nil, err
		}
		record.CreatedAt = time.Unix(0, createdAt).UTC()
		record.Result = []byte(result)
		records = append(records, &record)
	}
	return records, rows.Err()
}

func (s *SQLiteDatabase) GetPredictionByID(id string) (*PredictionRecord, error) {
	row := s.db.QueryRow(`SELECT id, created_at, thumbnail, top_breed, top_confidence, result
		FROM predictions WHERE id = ?`, id)

	var (
		record    PredictionRecord
		createdAt int64
		result    string
	)
	err := row.Scan(&record.ID, &createdAt, &record.Thumbnail, &record.TopBreed, &record.TopConfidence, &result)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record.CreatedAt = time.Unix(0, createdAt).UTC()
	record.Result = []byte(result)
	return &record, nil
}

func (s *SQLiteDatabase) DeletePrediction(id string) error {
	_, err := s.db.Exec("DELETE FROM predictions WHERE id = ?", id)
	return err
}

func (s *SQLiteDatabase) PrunePredictions(keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative, got %d", keep)
	}
	res, err := s.db.Exec(`DELETE FROM predictions WHERE id NOT IN (
		SELECT id FROM predictions ORDER BY created_at DESC, rowid DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteDatabase) CountPredictions() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM predictions").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
