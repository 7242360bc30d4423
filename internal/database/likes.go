package database

import "database/sql"

// UpsertLike marks a trail as liked.
func (db *DB) UpsertLike(name string) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO likes (name) VALUES (?)`, name,
	)
	return err
}

// DeleteLike removes a like (toggle off).
func (db *DB) DeleteLike(name string) error {
	_, err := db.conn.Exec(`DELETE FROM likes WHERE name = ?`, name)
	return err
}

// GetLike returns the like for a trail, or nil if absent.
func (db *DB) GetLike(name string) (*Like, error) {
	row := db.conn.QueryRow(
		`SELECT name, created_at FROM likes WHERE name = ?`, name,
	)
	var l Like
	if err := row.Scan(&l.Name, &l.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

// GetLikedNames returns all liked trail names in like order.
// The order feeds profile recommendations, so it must be deterministic.
func (db *DB) GetLikedNames() ([]string, error) {
	rows, err := db.conn.Query(
		`SELECT name FROM likes ORDER BY created_at, name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// GetLikedSet returns liked names as a set for template lookups.
func (db *DB) GetLikedSet() (map[string]bool, error) {
	names, err := db.GetLikedNames()
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set, nil
}
