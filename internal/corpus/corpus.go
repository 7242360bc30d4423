package corpus

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// reviewBodyField is the positional index of the review body inside a
// review entry's field list.
const reviewBodyField = 2

// Record is one cleaned scraped trail entity.
type Record struct {
	Name                 string   `json:"name"`
	URL                  string   `json:"url"`
	Tags                 string   `json:"tags"`
	MainDescription      string   `json:"main_description"`
	SecondaryDescription string   `json:"secondary_description"`
	Reviews              []Review `json:"reviews"`
	Location             string   `json:"location"`
	Difficulty           string   `json:"difficulty"`
	HikeType             string   `json:"hike_type"`
	Elevation            float64  `json:"elevation"`
	Distance             float64  `json:"distance"`
	Rating               float64  `json:"rating"`
	RatingCount          int      `json:"number_ratings"`
}

// Review is one structured review entry. Fields are positional; index 2
// holds the review body. Entries with fewer than three fields are malformed.
type Review struct {
	ID     string   `json:"id"`
	Fields []string `json:"fields"`
}

// Document is one per-trail text document, aligned 1:1 with the trail index.
type Document struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Attributes is the per-trail table with the text columns dropped.
type Attributes struct {
	Name        string  `json:"name"`
	URL         string  `json:"url"`
	Location    string  `json:"location"`
	Difficulty  string  `json:"difficulty"`
	HikeType    string  `json:"hike_type"`
	Elevation   float64 `json:"elevation"`
	Distance    float64 `json:"distance"`
	Rating      float64 `json:"rating"`
	RatingCount int     `json:"number_ratings"`
}

// Result holds the aligned tables produced by Build.
type Result struct {
	Documents        []Document
	Attributes       []Attributes
	MalformedReviews int
}

// Clean deduplicates records by url and resolves name collisions.
// The returned slice is the canonical trail index for a run.
func Clean(records []Record) []Record {
	return DisambiguateNames(DedupeByURL(records))
}

// DedupeByURL keeps the first record per url. Idempotent: applying it to
// its own output changes nothing.
func DedupeByURL(records []Record) []Record {
	seen := make(map[string]bool, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		out = append(out, r)
	}
	return out
}

// DisambiguateNames makes every record name unique. The first occurrence of
// a name keeps it; later occurrences get a numeric suffix (_2, _3, ...),
// skipping over any name already present in the input so generated names
// cannot collide with real ones. Handles any number of collisions.
func DisambiguateNames(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)

	// Every original name is reserved up front so a generated suffix
	// never shadows a record that appears later in the input.
	taken := make(map[string]bool, len(out))
	for _, r := range out {
		taken[r.Name] = true
	}

	seen := make(map[string]bool, len(out))
	for i := range out {
		name := out[i].Name
		if !seen[name] {
			seen[name] = true
			continue
		}
		k := 2
		candidate := fmt.Sprintf("%s_%d", name, k)
		for taken[candidate] {
			k++
			candidate = fmt.Sprintf("%s_%d", name, k)
		}
		out[i].Name = candidate
		taken[candidate] = true
	}
	return out
}

// Build assembles the per-trail document table and the hike-attributes table
// from cleaned records. Documents concatenate tags, both descriptions and the
// extracted review text; rows stay aligned with the input order. Records with
// no reviews contribute an empty string and keep their row.
func Build(records []Record) *Result {
	res := &Result{
		Documents:  make([]Document, 0, len(records)),
		Attributes: make([]Attributes, 0, len(records)),
	}

	for _, r := range records {
		reviews, malformed := reviewText(r.Reviews)
		res.MalformedReviews += malformed

		text := r.Tags + " " + r.MainDescription + " " + r.SecondaryDescription + " " + reviews
		res.Documents = append(res.Documents, Document{Name: r.Name, Text: text})
		res.Attributes = append(res.Attributes, Attributes{
			Name:        r.Name,
			URL:         r.URL,
			Location:    r.Location,
			Difficulty:  r.Difficulty,
			HikeType:    r.HikeType,
			Elevation:   r.Elevation,
			Distance:    r.Distance,
			Rating:      r.Rating,
			RatingCount: r.RatingCount,
		})
	}

	if res.MalformedReviews > 0 {
		log.Warn().Int("entries", res.MalformedReviews).
			Msg("skipped review entries with too few fields")
	}
	return res
}

// reviewText joins the review bodies of one trail into a single string,
// replacing newlines and carriage returns with spaces. Entries without a
// body field are counted as malformed and skipped.
func reviewText(reviews []Review) (string, int) {
	var b strings.Builder
	malformed := 0
	for _, r := range reviews {
		if len(r.Fields) <= reviewBodyField {
			malformed++
			continue
		}
		body := strings.TrimSpace(r.Fields[reviewBodyField])
		body = strings.ReplaceAll(body, "\n", " ")
		body = strings.ReplaceAll(body, "\r", " ")
		b.WriteString(body)
		b.WriteByte(' ')
	}
	return b.String(), malformed
}
