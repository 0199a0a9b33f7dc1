package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal"
)

// ErrNotFound is returned when a batch id does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		language TEXT NOT NULL,
		model TEXT NOT NULL,
		seed_count INTEGER NOT NULL,
		status TEXT DEFAULT 'running',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		completed_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		seed TEXT NOT NULL,
		seed_key TEXT NOT NULL,
		text TEXT NOT NULL,
		metric INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(batch_id, seq),
		FOREIGN KEY (batch_id) REFERENCES batches(id)
	);

	CREATE INDEX IF NOT EXISTS idx_results_batch ON results(batch_id, seq);
	CREATE INDEX IF NOT EXISTS idx_results_seed ON results(seed_key);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) SaveBatch(ctx context.Context, b internal.BatchRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batches (id, mode, language, model, seed_count, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.Mode, b.Language, b.Model, b.SeedCount, b.Timestamp)
	return err
}

// CompleteBatch marks a batch finished with the given status ("completed",
// "cancelled").
func (s *Store) CompleteBatch(ctx context.Context, batchID, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE batches SET status = ?, completed_at = ? WHERE id = ?`,
		status, time.Now(), batchID)
	return err
}

func (s *Store) SaveResult(ctx context.Context, r internal.ResultRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (id, batch_id, seq, seed, seed_key, text, metric, outcome, attempts, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), r.BatchID, r.Seq, r.Seed, normalizeText(r.Seed), r.Text, r.Metric, r.Outcome, r.Attempts, r.Error)
	return err
}

// BatchEntry is a row from the batches table with its result counts.
type BatchEntry struct {
	ID        string
	Mode      string
	Language  string
	Model     string
	SeedCount int
	Status    string
	Results   int
	Failed    int
	CreatedAt time.Time
}

// ListBatches returns the most recent batches first. limit ≤ 0 lists all.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]BatchEntry, error) {
	query := `
		SELECT b.id, b.mode, b.language, b.model, b.seed_count, b.status, b.created_at,
			COUNT(r.id),
			COALESCE(SUM(CASE WHEN r.outcome = 'failed' THEN 1 ELSE 0 END), 0)
		FROM batches b
		LEFT JOIN results r ON r.batch_id = b.id
		GROUP BY b.id
		ORDER BY b.created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []BatchEntry
	for rows.Next() {
		var e BatchEntry
		if err := rows.Scan(&e.ID, &e.Mode, &e.Language, &e.Model, &e.SeedCount, &e.Status, &e.CreatedAt, &e.Results, &e.Failed); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetResults returns a batch's results in seed order.
func (s *Store) GetResults(ctx context.Context, batchID string) ([]internal.ResultRecord, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM batches WHERE id = ?`, batchID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_id, seq, seed, text, metric, outcome, attempts, COALESCE(error, '') FROM results WHERE batch_id = ? ORDER BY seq`,
		batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResults(rows)
}

// FindBySeed returns past results whose seed matches seed after Unicode
// normalisation, newest first.
func (s *Store) FindBySeed(ctx context.Context, seed string) ([]internal.ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_id, seq, seed, text, metric, outcome, attempts, COALESCE(error, '') FROM results WHERE seed_key = ? ORDER BY created_at DESC, seq`,
		normalizeText(seed))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResults(rows)
}

// FindSimilarSeeds returns past results whose normalised seed has at least
// threshold similarity (0–1) to seed. Seeds longer than 1 000 runes are not
// compared.
func (s *Store) FindSimilarSeeds(ctx context.Context, seed string, threshold float64) ([]internal.ResultRecord, error) {
	if threshold <= 0 {
		return nil, nil
	}
	key := normalizeText(seed)
	if len([]rune(key)) > 1000 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_id, seq, seed, text, metric, outcome, attempts, COALESCE(error, ''), seed_key FROM results ORDER BY created_at DESC, seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ResultRecord
	for rows.Next() {
		var r internal.ResultRecord
		var candidateKey string
		if err := rows.Scan(&r.BatchID, &r.Seq, &r.Seed, &r.Text, &r.Metric, &r.Outcome, &r.Attempts, &r.Error, &candidateKey); err != nil {
			return nil, err
		}
		if len([]rune(candidateKey)) > 1000 {
			continue
		}
		if stringSimilarity(key, candidateKey) >= threshold {
			out = append(out, r)
		}
	}
	return out, rows.Err()
}

func scanResults(rows *sql.Rows) ([]internal.ResultRecord, error) {
	var out []internal.ResultRecord
	for rows.Next() {
		var r internal.ResultRecord
		if err := rows.Scan(&r.BatchID, &r.Seq, &r.Seed, &r.Text, &r.Metric, &r.Outcome, &r.Attempts, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats summarises the stored history.
type Stats struct {
	Batches   int
	Results   int
	Accepted  int
	Truncated int
	Exhausted int
	Failed    int
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM batches`).Scan(&stats.Batches); err != nil {
		return nil, err
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = 'accepted' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'truncated' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'exhausted' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'failed' THEN 1 ELSE 0 END), 0)
		FROM results`).Scan(
		&stats.Results,
		&stats.Accepted,
		&stats.Truncated,
		&stats.Exhausted,
		&stats.Failed,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// DeleteBatch permanently removes a batch and its results.
func (s *Store) DeleteBatch(ctx context.Context, batchID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE batch_id = ?`, batchID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE id = ?`, batchID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}
	return tx.Commit()
}

// Clear removes all history and returns the number of batches deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM results`); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM batches`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// for consistent seed comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// levenshtein returns the edit distance between two strings (rune-aware).
// Uses a space-optimized two-row DP implementation.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1]
				continue
			}
			curr[j] = min(prev[j], prev[j-1], curr[j-1]) + 1
		}
		prev, curr = curr, prev
	}

	return prev[lb]
}

// stringSimilarity returns a similarity score in [0, 1] (1 = identical).
func stringSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}
