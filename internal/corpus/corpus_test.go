package corpus

import (
	"fmt"
	"testing"
)

func rec(name, url string) Record {
	return Record{Name: name, URL: url}
}

func TestDedupeByURLKeepsFirst(t *testing.T) {
	records := []Record{
		{Name: "First", URL: "https://example.com/a", Rating: 4.5},
		{Name: "Second", URL: "https://example.com/a", Rating: 1.0},
		{Name: "Other", URL: "https://example.com/b"},
	}

	out := DedupeByURL(records)
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	if out[0].Name != "First" || out[0].Rating != 4.5 {
		t.Errorf("expected first occurrence kept, got %+v", out[0])
	}
	if out[1].Name != "Other" {
		t.Errorf("expected 'Other' second, got %q", out[1].Name)
	}
}

func TestDedupeByURLIdempotent(t *testing.T) {
	records := []Record{
		rec("A", "https://a.com"),
		rec("B", "https://a.com"),
		rec("C", "https://c.com"),
	}

	once := DedupeByURL(records)
	twice := DedupeByURL(once)
	if len(once) != len(twice) {
		t.Fatalf("expected same length, got %d then %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Name != twice[i].Name {
			t.Errorf("row %d changed on second pass: %q vs %q", i, once[i].Name, twice[i].Name)
		}
	}
}

func TestDisambiguateNamesNoCollision(t *testing.T) {
	records := []Record{rec("A", "1"), rec("B", "2")}
	out := DisambiguateNames(records)
	if out[0].Name != "A" || out[1].Name != "B" {
		t.Errorf("expected names unchanged, got %q, %q", out[0].Name, out[1].Name)
	}
}

func TestDisambiguateNamesArbitraryCollisions(t *testing.T) {
	for m := 2; m <= 8; m++ {
		records := make([]Record, m)
		for i := range records {
			records[i] = rec("Bear Lake", fmt.Sprintf("https://example.com/%d", i))
		}

		out := DisambiguateNames(records)
		names := make(map[string]bool, m)
		for _, r := range out {
			names[r.Name] = true
		}
		if len(names) != m {
			t.Errorf("m=%d: expected %d distinct names, got %d", m, m, len(names))
		}
		if out[0].Name != "Bear Lake" {
			t.Errorf("m=%d: expected first occurrence to keep its name, got %q", m, out[0].Name)
		}
		for i := 1; i < m; i++ {
			want := fmt.Sprintf("Bear Lake_%d", i+1)
			if out[i].Name != want {
				t.Errorf("m=%d: expected %q at row %d, got %q", m, want, i, out[i].Name)
			}
		}
	}
}

func TestDisambiguateNamesSkipsExistingName(t *testing.T) {
	records := []Record{
		rec("Falls", "1"),
		rec("Falls", "2"),
		rec("Falls_2", "3"),
	}

	out := DisambiguateNames(records)
	if out[0].Name != "Falls" {
		t.Errorf("expected 'Falls', got %q", out[0].Name)
	}
	// The real Falls_2 keeps its name; the duplicate skips past it.
	if out[1].Name != "Falls_3" {
		t.Errorf("expected 'Falls_3', got %q", out[1].Name)
	}
	if out[2].Name != "Falls_2" {
		t.Errorf("expected 'Falls_2', got %q", out[2].Name)
	}
}

func TestDisambiguateNamesDoesNotMutateInput(t *testing.T) {
	records := []Record{rec("Same", "1"), rec("Same", "2")}
	DisambiguateNames(records)
	if records[1].Name != "Same" {
		t.Errorf("expected input untouched, got %q", records[1].Name)
	}
}

func TestCleanChainsBothSteps(t *testing.T) {
	records := []Record{
		rec("Trail", "https://a.com"),
		rec("Trail", "https://a.com"), // url duplicate, dropped
		rec("Trail", "https://b.com"), // name duplicate, renamed
	}

	out := Clean(records)
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	if out[0].Name != "Trail" || out[1].Name != "Trail_2" {
		t.Errorf("expected 'Trail' and 'Trail_2', got %q and %q", out[0].Name, out[1].Name)
	}
}

func TestBuildDocumentText(t *testing.T) {
	records := []Record{{
		Name:                 "Eagle Crest",
		URL:                  "https://example.com/eagle-crest",
		Tags:                 "forest waterfall",
		MainDescription:      "A lovely hike.",
		SecondaryDescription: "Busy in summer.",
		Reviews: []Review{
			{ID: "r1", Fields: []string{"2021-07-04", "5", "Great views!"}},
		},
	}}

	res := Build(records)
	if len(res.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(res.Documents))
	}
	want := "forest waterfall A lovely hike. Busy in summer. Great views! "
	if res.Documents[0].Text != want {
		t.Errorf("expected %q, got %q", want, res.Documents[0].Text)
	}
}

func TestBuildReplacesNewlines(t *testing.T) {
	records := []Record{{
		Name: "A",
		Reviews: []Review{
			{ID: "r1", Fields: []string{"x", "y", "line one\nline two\rline three"}},
		},
	}}

	res := Build(records)
	want := "   line one line two line three "
	if res.Documents[0].Text != want {
		t.Errorf("expected %q, got %q", want, res.Documents[0].Text)
	}
}

func TestBuildNilReviews(t *testing.T) {
	records := []Record{{
		Name:            "Quiet Trail",
		Tags:            "forest",
		MainDescription: "Short walk.",
	}}

	res := Build(records)
	if len(res.Documents) != 1 {
		t.Fatalf("expected trail kept with nil reviews, got %d documents", len(res.Documents))
	}
	want := "forest Short walk.  "
	if res.Documents[0].Text != want {
		t.Errorf("expected %q, got %q", want, res.Documents[0].Text)
	}
	if res.MalformedReviews != 0 {
		t.Errorf("expected 0 malformed, got %d", res.MalformedReviews)
	}
}

func TestBuildCountsMalformedReviews(t *testing.T) {
	records := []Record{{
		Name: "A",
		Reviews: []Review{
			{ID: "r1", Fields: []string{"only", "two"}},
			{ID: "r2", Fields: []string{"x", "y", "Usable body."}},
			{ID: "r3", Fields: nil},
		},
	}}

	res := Build(records)
	if res.MalformedReviews != 2 {
		t.Errorf("expected 2 malformed entries, got %d", res.MalformedReviews)
	}
	want := "   Usable body. "
	if res.Documents[0].Text != want {
		t.Errorf("expected %q, got %q", want, res.Documents[0].Text)
	}
}

func TestBuildRowAlignment(t *testing.T) {
	records := []Record{
		{Name: "C", URL: "3", Difficulty: "hard", Elevation: 900, Distance: 12, Rating: 4.8, RatingCount: 10, HikeType: "Loop", Location: "North"},
		{Name: "A", URL: "1"},
		{Name: "B", URL: "2"},
	}

	res := Build(records)
	if len(res.Documents) != 3 || len(res.Attributes) != 3 {
		t.Fatalf("expected 3 rows in both tables, got %d and %d",
			len(res.Documents), len(res.Attributes))
	}
	for i, want := range []string{"C", "A", "B"} {
		if res.Documents[i].Name != want {
			t.Errorf("document row %d: expected %q, got %q", i, want, res.Documents[i].Name)
		}
		if res.Attributes[i].Name != want {
			t.Errorf("attribute row %d: expected %q, got %q", i, want, res.Attributes[i].Name)
		}
	}

	a := res.Attributes[0]
	if a.URL != "3" || a.Difficulty != "hard" || a.Elevation != 900 || a.RatingCount != 10 {
		t.Errorf("expected attribute columns carried over, got %+v", a)
	}
}
