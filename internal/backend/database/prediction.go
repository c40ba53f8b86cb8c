package database

import "time"

type PredictionRecord struct {
	ID            string    `db:"id"`
	CreatedAt     time.Time `db:"created_at"`
	Thumbnail     []byte    `db:"thumbnail"` // PNG thumbnail of the upload
	TopBreed      string    `db:"top_breed"`
	TopConfidence float32   `db:"top_confidence"`
	Result        []byte    `db:"result"` // JSON encoded presenter result
}
