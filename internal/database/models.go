package database

// Trail represents a stored scraped trail record.
type Trail struct {
	ID                   int64
	Name                 string
	URL                  string
	Tags                 *string
	Description          *string
	SecondaryDescription *string
	Reviews              []Review
	Location             *string
	Difficulty           *string
	Elevation            float64
	Distance             float64
	Rating               float64
	RatingCount          int
	HikeType             *string
	DescriptionFetched   bool
	CollectedAt          *string
}

// Review is one structured review entry attached to a trail.
// Fields are positional; the review body sits at a fixed index.
type Review struct {
	ID     string   `json:"id"`
	Fields []string `json:"fields"`
}

// Run holds metadata about one completed pipeline run.
type Run struct {
	ID             string
	CreatedAt      *string
	TrailCount     int
	TopicCount     int
	DroppedCount   int
	Topics         []TopicSummary
	ReportMarkdown string
	BundlePath     string
}

// TopicSummary is the per-topic digest stored with a run.
type TopicSummary struct {
	Label      string   `json:"label"`
	Terms      []string `json:"terms"`
	TrailCount int      `json:"trail_count"`
}

// Like marks a trail the user has liked, keyed by trail name.
type Like struct {
	Name      string
	CreatedAt *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalTrails         int
	MissingDescriptions int
	Likes               int
	Runs                int
}
