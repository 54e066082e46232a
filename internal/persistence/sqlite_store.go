package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/patchlib/clipsight/internal/analysis"
	"github.com/patchlib/clipsight/internal/batch"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "0001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) Put(ctx context.Context, record *analysis.AnalysisRecord) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	tagsJSON, err := json.Marshal(record.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO analysis_records (
			source_url, title, description, tags_json, streamer, game, platform, content_type,
			transcript_included, transcript_length, frames_analyzed, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_url) DO UPDATE SET
			title=excluded.title,
			description=excluded.description,
			tags_json=excluded.tags_json,
			streamer=excluded.streamer,
			game=excluded.game,
			platform=excluded.platform,
			content_type=excluded.content_type,
			transcript_included=excluded.transcript_included,
			transcript_length=excluded.transcript_length,
			frames_analyzed=excluded.frames_analyzed,
			processed_at=excluded.processed_at`,
		record.SourceURL,
		record.Title,
		record.Description,
		string(tagsJSON),
		record.Streamer,
		record.Game,
		record.Platform,
		record.ContentType,
		boolToInt(record.TranscriptIncluded),
		record.TranscriptLength,
		record.FramesAnalyzed,
		record.ProcessedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *SQLiteStore) GetBySourceURL(ctx context.Context, sourceURL string) (*analysis.AnalysisRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		recordColumns+` WHERE source_url = ?`,
		sourceURL,
	)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return record, err
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]analysis.AnalysisRecord, error) {
	rows, err := s.db.QueryContext(ctx, recordColumns+` ORDER BY processed_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Find matches records whose title or description contains the query
// text (case-insensitive) and that carry every requested tag. An empty
// query matches all text; an empty tag list matches all records.
func (s *SQLiteStore) Find(ctx context.Context, query string, tags []string) ([]analysis.AnalysisRecord, error) {
	rows, err := s.db.QueryContext(ctx, recordColumns+` ORDER BY processed_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	all, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	wanted := analysis.NormalizeTags(tags)

	ret := make([]analysis.AnalysisRecord, 0)
	for _, record := range all {
		if query != "" &&
			!strings.Contains(strings.ToLower(record.Title), query) &&
			!strings.Contains(strings.ToLower(record.Description), query) {
			continue
		}
		if !hasAllTags(record.Tags, wanted) {
			continue
		}
		ret = append(ret, record)
	}
	return ret, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_records`).Scan(&n)
	return n, err
}

const recordColumns = `SELECT source_url, title, description, tags_json, streamer, game, platform, content_type,
	transcript_included, transcript_length, frames_analyzed, processed_at
	FROM analysis_records`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*analysis.AnalysisRecord, error) {
	var record analysis.AnalysisRecord
	var tagsJSON string
	var transcriptIncluded int
	var processedAt string
	if err := row.Scan(
		&record.SourceURL,
		&record.Title,
		&record.Description,
		&tagsJSON,
		&record.Streamer,
		&record.Game,
		&record.Platform,
		&record.ContentType,
		&transcriptIncluded,
		&record.TranscriptLength,
		&record.FramesAnalyzed,
		&processedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &record.Tags); err != nil {
		return nil, err
	}
	record.TranscriptIncluded = transcriptIncluded == 1
	if ts, err := time.Parse(time.RFC3339, processedAt); err == nil {
		record.ProcessedAt = ts
	}
	return &record, nil
}

func collectRecords(rows *sql.Rows) ([]analysis.AnalysisRecord, error) {
	ret := make([]analysis.AnalysisRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func hasAllTags(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, tag := range have {
		set[tag] = struct{}{}
	}
	for _, tag := range want {
		if _, ok := set[tag]; !ok {
			return false
		}
	}
	return true
}

func (s *SQLiteStore) SaveJob(ctx context.Context, job *batch.Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	var completedAt any
	if job.CompletedAt != nil {
		completedAt = job.CompletedAt.UTC().Format(time.RFC3339)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO batch_jobs (job_id, status, payload, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET
			status=excluded.status,
			payload=excluded.payload,
			completed_at=excluded.completed_at`,
		job.JobID,
		string(job.Status),
		string(payload),
		job.StartedAt.UTC().Format(time.RFC3339),
		completedAt,
	)
	return err
}

func (s *SQLiteStore) LoadJob(ctx context.Context, jobID string) (*batch.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM batch_jobs WHERE job_id = ?`, jobID)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	var job batch.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *SQLiteStore) DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM batch_jobs WHERE completed_at IS NOT NULL AND completed_at <= ?`,
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
