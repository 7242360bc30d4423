package database

import (
	"database/sql"

	json "github.com/goccy/go-json"
)

// InsertRun records a completed pipeline run.
func (db *DB) InsertRun(run *Run) error {
	var topicsJSON *string
	if run.Topics != nil {
		data, err := json.Marshal(run.Topics)
		if err != nil {
			return err
		}
		s := string(data)
		topicsJSON = &s
	}

	_, err := db.conn.Exec(
		`INSERT INTO runs (id, trail_count, topic_count, dropped_count, topics, report_markdown, bundle_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.TrailCount, run.TopicCount, run.DroppedCount,
		topicsJSON, run.ReportMarkdown, run.BundlePath,
	)
	return err
}

// GetLatestRun returns the most recent run, or nil if none exist.
func (db *DB) GetLatestRun() (*Run, error) {
	row := db.conn.QueryRow(
		`SELECT id, created_at, trail_count, topic_count, dropped_count, topics, report_markdown, bundle_path
		FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetRun returns a run by ID, or nil if absent.
func (db *DB) GetRun(runID string) (*Run, error) {
	row := db.conn.QueryRow(
		`SELECT id, created_at, trail_count, topic_count, dropped_count, topics, report_markdown, bundle_path
		FROM runs WHERE id = ?`, runID,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetAllRuns returns all runs, newest first.
func (db *DB) GetAllRuns() ([]Run, error) {
	rows, err := db.conn.Query(
		`SELECT id, created_at, trail_count, topic_count, dropped_count, topics, report_markdown, bundle_path
		FROM runs ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var topicsJSON *string
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.TrailCount, &r.TopicCount,
			&r.DroppedCount, &topicsJSON, &r.ReportMarkdown, &r.BundlePath); err != nil {
			return nil, err
		}
		if topicsJSON != nil {
			if err := json.Unmarshal([]byte(*topicsJSON), &r.Topics); err != nil {
				r.Topics = nil
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM trails", &s.TotalTrails},
		{"SELECT COUNT(*) FROM trails WHERE description IS NULL OR description = ''", &s.MissingDescriptions},
		{"SELECT COUNT(*) FROM likes", &s.Likes},
		{"SELECT COUNT(*) FROM runs", &s.Runs},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func scanRun(row *sql.Row) (*Run, error) {
	var r Run
	var topicsJSON *string
	if err := row.Scan(&r.ID, &r.CreatedAt, &r.TrailCount, &r.TopicCount,
		&r.DroppedCount, &topicsJSON, &r.ReportMarkdown, &r.BundlePath); err != nil {
		return nil, err
	}
	if topicsJSON != nil {
		if err := json.Unmarshal([]byte(*topicsJSON), &r.Topics); err != nil {
			r.Topics = nil
		}
	}
	return &r, nil
}
