package database

import (
	"database/sql"

	json "github.com/goccy/go-json"
)

const trailColumns = `id, name, url, tags, description, secondary_description, reviews,
	location, difficulty, elevation, distance, rating, rating_count, hike_type,
	description_fetched, collected_at`

// InsertTrail inserts a trail. Returns the ID on success, 0 if the url is
// already stored.
func (db *DB) InsertTrail(t *Trail) (int64, error) {
	reviewsJSON, err := marshalReviews(t.Reviews)
	if err != nil {
		return 0, err
	}

	result, err := db.conn.Exec(
		`INSERT INTO trails (name, url, tags, description, secondary_description, reviews,
			location, difficulty, elevation, distance, rating, rating_count, hike_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Name, t.URL, t.Tags, t.Description, t.SecondaryDescription, reviewsJSON,
		t.Location, t.Difficulty, t.Elevation, t.Distance, t.Rating, t.RatingCount, t.HikeType,
	)
	if err != nil {
		// Duplicate URL constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// GetAllTrails returns every stored trail in insertion order.
// The order is what downstream corpus and feature rows are aligned to.
func (db *DB) GetAllTrails() ([]Trail, error) {
	rows, err := db.conn.Query(
		`SELECT ` + trailColumns + ` FROM trails ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrails(rows)
}

// CountTrails returns the number of stored trails.
func (db *DB) CountTrails() (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM trails").Scan(&n)
	return n, err
}

// GetTrailByName returns a single trail by name, or nil if absent.
func (db *DB) GetTrailByName(name string) (*Trail, error) {
	row := db.conn.QueryRow(
		`SELECT `+trailColumns+` FROM trails WHERE name = ?`, name,
	)
	t, err := scanTrail(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetTrailsNeedingFetch returns trails with an empty description that haven't
// had a fetch attempt, capped at limit (0 = no cap).
func (db *DB) GetTrailsNeedingFetch(limit int) ([]Trail, error) {
	query := `SELECT ` + trailColumns + ` FROM trails
		WHERE (description IS NULL OR description = '')
		AND description_fetched = 0 AND url != ''
		ORDER BY id`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrails(rows)
}

// UpdateTrailDescription stores fetched description text.
func (db *DB) UpdateTrailDescription(trailID int64, description *string) error {
	_, err := db.conn.Exec(
		"UPDATE trails SET description = ?, description_fetched = 1 WHERE id = ?",
		description, trailID,
	)
	return err
}

// MarkTrailFetchAttempted marks that we tried to fetch a description.
func (db *DB) MarkTrailFetchAttempted(trailID int64) error {
	_, err := db.conn.Exec(
		"UPDATE trails SET description_fetched = 1 WHERE id = ?", trailID,
	)
	return err
}

func marshalReviews(reviews []Review) (*string, error) {
	if reviews == nil {
		return nil, nil
	}
	data, err := json.Marshal(reviews)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

func scanTrails(rows *sql.Rows) ([]Trail, error) {
	var trails []Trail
	for rows.Next() {
		var t Trail
		var reviewsJSON *string
		var fetched int
		if err := rows.Scan(&t.ID, &t.Name, &t.URL, &t.Tags, &t.Description,
			&t.SecondaryDescription, &reviewsJSON, &t.Location, &t.Difficulty,
			&t.Elevation, &t.Distance, &t.Rating, &t.RatingCount, &t.HikeType,
			&fetched, &t.CollectedAt); err != nil {
			return nil, err
		}
		t.DescriptionFetched = fetched != 0
		if reviewsJSON != nil {
			if err := json.Unmarshal([]byte(*reviewsJSON), &t.Reviews); err != nil {
				t.Reviews = nil
			}
		}
		trails = append(trails, t)
	}
	return trails, rows.Err()
}

func scanTrail(row *sql.Row) (*Trail, error) {
	var t Trail
	var reviewsJSON *string
	var fetched int
	if err := row.Scan(&t.ID, &t.Name, &t.URL, &t.Tags, &t.Description,
		&t.SecondaryDescription, &reviewsJSON, &t.Location, &t.Difficulty,
		&t.Elevation, &t.Distance, &t.Rating, &t.RatingCount, &t.HikeType,
		&fetched, &t.CollectedAt); err != nil {
		return nil, err
	}
	t.DescriptionFetched = fetched != 0
	if reviewsJSON != nil {
		if err := json.Unmarshal([]byte(*reviewsJSON), &t.Reviews); err != nil {
			t.Reviews = nil
		}
	}
	return &t, nil
}
