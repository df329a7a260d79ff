package record

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no stored sample matches a query.
var ErrNotFound = errors.New("record: not found")

//go:embed schema.sql
var schemaSQL string

// VisionSample is a stored vision record.
type VisionSample struct {
	SampleID     string `json:"sampleId"`
	Replay       string `json:"replay"`
	OwnerID      string `json:"ownerId"`
	PlayerName   string `json:"playerName"`
	Frame        int    `json:"frame"`
	VisibleTiles int    `json:"visibleTiles"`
	RecordedAt   int64  `json:"recordedAt"` // unix nano
}

// SQLiteStore keeps vision samples in a SQLite database.
// It implements Sink; records other than VisionRecord are ignored.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// InsertVision stores one sample. Empty SampleID and RecordedAt are filled in.
func (s *SQLiteStore) InsertVision(v *VisionSample) error {
	if v.SampleID == "" {
		v.SampleID = uuid.New().String()
	}
	if v.RecordedAt == 0 {
		v.RecordedAt = time.Now().UnixNano()
	}

	_, err := s.db.Exec(insertVisionSQL,
		v.SampleID, v.Replay, v.OwnerID, v.PlayerName, v.Frame, v.VisibleTiles, v.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert vision sample: %w", err)
	}
	return nil
}

const insertVisionSQL = `
	INSERT INTO vision_samples (
		sample_id, replay, owner_id, player_name, frame, visible_tiles, recorded_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)
`

// Write stores every VisionRecord of the batch in one transaction.
func (s *SQLiteStore) Write(batch []Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.Prepare(insertVisionSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for _, rec := range batch {
		v, ok := rec.(VisionRecord)
		if !ok {
			continue
		}
		if _, err := stmt.Exec(uuid.New().String(), v.ReplayName, v.OwnerID, v.PlayerName,
			v.Frame, v.VisibleTiles, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert vision sample: %w", err)
		}
	}
	return tx.Commit()
}

// ListVision returns the samples of one owner in a replay, ordered by frame.
func (s *SQLiteStore) ListVision(replay, ownerID string) ([]*VisionSample, error) {
	rows, err := s.db.Query(`
		SELECT sample_id, replay, owner_id, player_name, frame, visible_tiles, recorded_at
		FROM vision_samples
		WHERE replay = ? AND owner_id = ?
		ORDER BY frame, recorded_at
	`, replay, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list vision samples: %w", err)
	}
	defer rows.Close()

	var samples []*VisionSample
	for rows.Next() {
		v := &VisionSample{}
		if err := rows.Scan(&v.SampleID, &v.Replay, &v.OwnerID, &v.PlayerName,
			&v.Frame, &v.VisibleTiles, &v.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan vision sample: %w", err)
		}
		samples = append(samples, v)
	}
	return samples, rows.Err()
}

// LatestVision returns the most recent sample of an owner across replays.
func (s *SQLiteStore) LatestVision(ownerID string) (*VisionSample, error) {
	v := &VisionSample{}
	err := s.db.QueryRow(`
		SELECT sample_id, replay, owner_id, player_name, frame, visible_tiles, recorded_at
		FROM vision_samples
		WHERE owner_id = ?
		ORDER BY recorded_at DESC, frame DESC
		LIMIT 1
	`, ownerID).Scan(&v.SampleID, &v.Replay, &v.OwnerID, &v.PlayerName,
		&v.Frame, &v.VisibleTiles, &v.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest vision sample: %w", err)
	}
	return v, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
