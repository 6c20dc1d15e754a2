package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/yangruichen/cinechat/backend/internal/metrics"
	"github.com/yangruichen/cinechat/backend/internal/model/media"
)

var (
	ErrInvalidValue = errors.New("feedback: value must be like or dislike")
	ErrInvalidKey   = errors.New("feedback: userId and mediaId are required")
)

// Store persists like/dislike sentiment per (user, media item). Writes are
// last-write-wins upserts keyed on (user_id, media_id), so recording the
// same value twice is a no-op and the opposite value overwrites.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore opens (and if needed creates) the feedback database.
func NewStore(dbPath string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create feedback db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open feedback db: %w", err)
	}

	store := &Store{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate feedback db: %w", err)
	}

	logger.Info("feedback store ready", zap.String("db_path", dbPath))
	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS feedback (
		user_id    TEXT NOT NULL,
		media_id   INTEGER NOT NULL,
		media_type TEXT NOT NULL,
		value      INTEGER NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, media_id)
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_user ON feedback(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record stores the user's sentiment for one media item.
func (s *Store) Record(ctx context.Context, userID string, mediaID int64, mediaType media.Type, value media.Feedback) error {
	if userID == "" || mediaID == 0 {
		return ErrInvalidKey
	}
	if !value.Valid() || !mediaType.Valid() {
		return ErrInvalidValue
	}

	query := `
		INSERT INTO feedback (user_id, media_id, media_type, value, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, media_id) DO UPDATE SET
			media_type = excluded.media_type,
			value      = excluded.value,
			updated_at = excluded.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, userID, mediaID, string(mediaType), int(value), time.Now().UTC()); err != nil {
		return fmt.Errorf("record feedback: %w", err)
	}

	metrics.FeedbackWritesTotal.WithLabelValues(value.String()).Inc()
	s.logger.Debug("feedback recorded",
		zap.String("user_id", userID),
		zap.Int64("media_id", mediaID),
		zap.String("value", value.String()))
	return nil
}

// List returns the user's stored sentiment keyed by media id. It is read
// once per session bootstrap to annotate candidate rendering.
func (s *Store) List(ctx context.Context, userID string) (map[int64]media.Feedback, error) {
	if userID == "" {
		return nil, ErrInvalidKey
	}

	rows, err := s.db.QueryContext(ctx, `SELECT media_id, value FROM feedback WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]media.Feedback)
	for rows.Next() {
		var (
			mediaID int64
			value   int
		)
		if err := rows.Scan(&mediaID, &value); err != nil {
			return nil, fmt.Errorf("scan feedback row: %w", err)
		}
		result[mediaID] = media.Feedback(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback rows: %w", err)
	}
	return result, nil
}

// Annotate stamps stored sentiment onto candidates in place, known-for
// entries included.
func Annotate(candidates []media.Candidate, stored map[int64]media.Feedback) {
	if len(stored) == 0 {
		return
	}
	for i := range candidates {
		if value, ok := stored[candidates[i].ID]; ok {
			v := value
			candidates[i].Feedback = &v
		}
		Annotate(candidates[i].KnownFor, stored)
	}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
