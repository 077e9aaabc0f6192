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

	"github.com/storyreel/storyreel/internal/jobs"
	_ "modernc.org/sqlite"
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

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
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

func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*jobs.VideoJob, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, source, dedupe_key, script, status, progress, current_step,
		        storyboard_json, context_json, scenes_json,
		        video_url, error, error_detail, created_at, updated_at, completed_at
		 FROM jobs
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.VideoJob, 0)
	for rows.Next() {
		var item jobs.VideoJob
		var status string
		var storyboardJSON, contextJSON, scenesJSON string
		var completedAt sql.NullTime
		if err := rows.Scan(
			&item.ID,
			&item.Source,
			&item.DedupeKey,
			&item.Script,
			&status,
			&item.Progress,
			&item.CurrentStep,
			&storyboardJSON,
			&contextJSON,
			&scenesJSON,
			&item.VideoURL,
			&item.Error,
			&item.ErrorDetail,
			&item.CreatedAt,
			&item.UpdatedAt,
			&completedAt,
		); err != nil {
			return nil, err
		}
		item.Status = jobs.Status(status)
		if completedAt.Valid {
			t := completedAt.Time
			item.CompletedAt = &t
		}
		if err := unmarshalColumn(storyboardJSON, &item.Storyboard); err != nil {
			return nil, fmt.Errorf("decode storyboard for job %s: %w", item.ID, err)
		}
		if err := unmarshalColumn(contextJSON, &item.Context); err != nil {
			return nil, fmt.Errorf("decode context for job %s: %w", item.ID, err)
		}
		if err := unmarshalColumn(scenesJSON, &item.Scenes); err != nil {
			return nil, fmt.Errorf("decode scenes for job %s: %w", item.ID, err)
		}
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}

func (s *SQLiteStore) UpsertJob(ctx context.Context, job *jobs.VideoJob) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	storyboardJSON, err := marshalColumn(job.Storyboard)
	if err != nil {
		return fmt.Errorf("encode storyboard: %w", err)
	}
	contextJSON, err := marshalColumn(job.Context)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	scenesJSON, err := marshalColumn(job.Scenes)
	if err != nil {
		return fmt.Errorf("encode scenes: %w", err)
	}

	var completedAt sql.NullTime
	if job.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *job.CompletedAt, Valid: true}
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
			id, source, dedupe_key, script, status, progress, current_step,
			storyboard_json, context_json, scenes_json,
			video_url, error, error_detail, created_at, updated_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source=excluded.source,
			dedupe_key=excluded.dedupe_key,
			script=excluded.script,
			status=excluded.status,
			progress=excluded.progress,
			current_step=excluded.current_step,
			storyboard_json=excluded.storyboard_json,
			context_json=excluded.context_json,
			scenes_json=excluded.scenes_json,
			video_url=excluded.video_url,
			error=excluded.error,
			error_detail=excluded.error_detail,
			updated_at=excluded.updated_at,
			completed_at=excluded.completed_at`,
		job.ID,
		job.Source,
		job.DedupeKey,
		job.Script,
		string(job.Status),
		job.Progress,
		job.CurrentStep,
		storyboardJSON,
		contextJSON,
		scenesJSON,
		job.VideoURL,
		job.Error,
		job.ErrorDetail,
		job.CreatedAt,
		job.UpdatedAt,
		completedAt,
	)
	return err
}

// marshalColumn stores nil slices and pointers as an empty string instead
// of the JSON literal "null", keeping the columns greppable.
func marshalColumn(v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(payload) == "null" {
		return "", nil
	}
	return string(payload), nil
}

func unmarshalColumn(raw string, target any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), target)
}
