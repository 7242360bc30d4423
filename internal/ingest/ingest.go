package ingest

import (
	"fmt"
	"os"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/KalinMeier/TrailScout/internal/database"
)

// Result holds the counters of one dataset import.
type Result struct {
	Found          int
	Imported       int
	Duplicates     int
	Malformed      int
	DroppedReviews int
}

// rawRecord mirrors one entry of a scraped dataset export. Review entries
// arrive as an ID-keyed map of ordered field lists.
type rawRecord struct {
	Name                 string                     `json:"name"`
	URL                  string                     `json:"url"`
	Tags                 string                     `json:"tags"`
	MainDescription      string                     `json:"main_description"`
	SecondaryDescription string                     `json:"secondary_description"`
	Reviews              map[string]json.RawMessage `json:"reviews"`
	Location             string                     `json:"location"`
	Difficulty           string                     `json:"difficulty"`
	HikeType             string                     `json:"hike_type"`
	Elevation            float64                    `json:"elevation"`
	Distance             float64                    `json:"distance"`
	Rating               float64                    `json:"rating"`
	RatingCount          int                        `json:"number_ratings"`
}

// Importer loads scraped dataset exports into the trail store.
type Importer struct {
	db *database.DB
}

// New creates an importer backed by db.
func New(db *database.DB) *Importer {
	return &Importer{db: db}
}

// ImportFile reads a JSON dataset export and inserts its records. Records
// without a name or url are counted as malformed and skipped; review values
// that are not field lists are dropped and counted. Duplicate urls fall
// through to the store's unique constraint and count as duplicates.
func (im *Importer) ImportFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var records []rawRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}

	r := &Result{Found: len(records)}
	for _, raw := range records {
		if raw.Name == "" || raw.URL == "" {
			r.Malformed++
			log.Debug().Str("name", raw.Name).Str("url", raw.URL).
				Msg("skipping record without name or url")
			continue
		}

		reviews, dropped := decodeReviews(raw.Reviews)
		r.DroppedReviews += dropped

		id, err := im.db.InsertTrail(&database.Trail{
			Name:                 raw.Name,
			URL:                  raw.URL,
			Tags:                 ptrOrNil(raw.Tags),
			Description:          ptrOrNil(raw.MainDescription),
			SecondaryDescription: ptrOrNil(raw.SecondaryDescription),
			Reviews:              reviews,
			Location:             ptrOrNil(raw.Location),
			Difficulty:           ptrOrNil(raw.Difficulty),
			HikeType:             ptrOrNil(raw.HikeType),
			Elevation:            raw.Elevation,
			Distance:             raw.Distance,
			Rating:               raw.Rating,
			RatingCount:          raw.RatingCount,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to store %q: %w", raw.Name, err)
		}
		if id > 0 {
			r.Imported++
		} else {
			r.Duplicates++
		}
	}

	log.Info().
		Int("found", r.Found).
		Int("imported", r.Imported).
		Int("duplicates", r.Duplicates).
		Int("malformed", r.Malformed).
		Int("dropped_reviews", r.DroppedReviews).
		Msg("import complete")
	return r, nil
}

// decodeReviews converts the ID-keyed review map into an ordered slice,
// sorted by review ID so repeated imports store identical rows.
func decodeReviews(raw map[string]json.RawMessage) ([]database.Review, int) {
	if len(raw) == 0 {
		return nil, 0
	}
	ids := lo.Keys(raw)
	sort.Strings(ids)

	reviews := make([]database.Review, 0, len(ids))
	dropped := 0
	for _, id := range ids {
		var fields []string
		if err := json.Unmarshal(raw[id], &fields); err != nil {
			dropped++
			continue
		}
		reviews = append(reviews, database.Review{ID: id, Fields: fields})
	}
	return reviews, dropped
}

func ptrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
