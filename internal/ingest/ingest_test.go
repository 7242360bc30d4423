package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KalinMeier/TrailScout/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportFile(t *testing.T) {
	db := openTestDB(t)
	path := writeDataset(t, `[
		{
			"name": "Eagle Crest",
			"url": "https://example.com/eagle-crest",
			"tags": "forest waterfall",
			"main_description": "A steep climb.",
			"secondary_description": "Best in summer.",
			"reviews": {
				"r2": ["2021-08-11", "4", "Crowded on weekends."],
				"r1": ["2021-07-04", "5", "Stunning views."]
			},
			"location": "Cascade Range",
			"difficulty": "hard",
			"hike_type": "Out & Back",
			"elevation": 320.5,
			"distance": 7.2,
			"rating": 4.5,
			"number_ratings": 241
		},
		{
			"name": "Quiet Loop",
			"url": "https://example.com/quiet-loop",
			"difficulty": "easy"
		}
	]`)

	result, err := New(db).ImportFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, result.Found)
	require.Equal(t, 2, result.Imported)
	require.Zero(t, result.Duplicates)
	require.Zero(t, result.Malformed)
	require.Zero(t, result.DroppedReviews)

	trail, err := db.GetTrailByName("Eagle Crest")
	require.NoError(t, err)
	require.NotNil(t, trail)
	require.Equal(t, "https://example.com/eagle-crest", trail.URL)
	require.Equal(t, "forest waterfall", *trail.Tags)
	require.Equal(t, "A steep climb.", *trail.Description)
	require.Equal(t, "Out & Back", *trail.HikeType)
	require.Equal(t, 320.5, trail.Elevation)
	require.Equal(t, 241, trail.RatingCount)

	// Review map keys sort, so r1 stores before r2.
	require.Len(t, trail.Reviews, 2)
	require.Equal(t, "r1", trail.Reviews[0].ID)
	require.Equal(t, "Stunning views.", trail.Reviews[0].Fields[2])
	require.Equal(t, "r2", trail.Reviews[1].ID)

	// Optional fields absent stay nil.
	quiet, err := db.GetTrailByName("Quiet Loop")
	require.NoError(t, err)
	require.Nil(t, quiet.Tags)
	require.Nil(t, quiet.Description)
	require.Empty(t, quiet.Reviews)
}

func TestImportSkipsMalformedRecords(t *testing.T) {
	db := openTestDB(t)
	path := writeDataset(t, `[
		{"name": "", "url": "https://example.com/nameless"},
		{"name": "No URL"},
		{"name": "Good", "url": "https://example.com/good"}
	]`)

	result, err := New(db).ImportFile(path)
	require.NoError(t, err)
	require.Equal(t, 3, result.Found)
	require.Equal(t, 1, result.Imported)
	require.Equal(t, 2, result.Malformed)

	n, err := db.CountTrails()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestImportCountsDuplicates(t *testing.T) {
	db := openTestDB(t)
	path := writeDataset(t, `[
		{"name": "First", "url": "https://example.com/same"},
		{"name": "Second", "url": "https://example.com/same"}
	]`)

	result, err := New(db).ImportFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, result.Imported)
	require.Equal(t, 1, result.Duplicates)

	trail, err := db.GetTrailByName("First")
	require.NoError(t, err)
	require.NotNil(t, trail, "first occurrence wins")
}

func TestImportIdempotent(t *testing.T) {
	db := openTestDB(t)
	path := writeDataset(t, `[{"name": "Only", "url": "https://example.com/only"}]`)

	im := New(db)
	_, err := im.ImportFile(path)
	require.NoError(t, err)

	result, err := im.ImportFile(path)
	require.NoError(t, err)
	require.Zero(t, result.Imported)
	require.Equal(t, 1, result.Duplicates)

	n, _ := db.CountTrails()
	require.Equal(t, 1, n)
}

func TestImportDropsNonListReviews(t *testing.T) {
	db := openTestDB(t)
	path := writeDataset(t, `[{
		"name": "Odd Reviews",
		"url": "https://example.com/odd",
		"reviews": {
			"r1": ["2021-01-01", "3", "Fine."],
			"r2": "not a field list",
			"r3": {"nested": true}
		}
	}]`)

	result, err := New(db).ImportFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, result.Imported)
	require.Equal(t, 2, result.DroppedReviews)

	trail, err := db.GetTrailByName("Odd Reviews")
	require.NoError(t, err)
	require.Len(t, trail.Reviews, 1)
	require.Equal(t, "r1", trail.Reviews[0].ID)
}

func TestImportBadJSON(t *testing.T) {
	db := openTestDB(t)
	path := writeDataset(t, `{"not": "an array"`)

	_, err := New(db).ImportFile(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse")
}

func TestImportMissingFile(t *testing.T) {
	db := openTestDB(t)
	_, err := New(db).ImportFile(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
