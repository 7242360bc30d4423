package vectorize

import (
	_ "embed"
	"strings"
)

// stopwordsFile carries the default stopword list: generic English terms
// plus domain words (trail, hike, mile, review filler) that appear in
// nearly every document and carry no topic signal.
//
//go:embed stopwords.txt
var stopwordsFile string

// Stopwords returns the embedded stopword list merged with extras.
func Stopwords(extra ...string) []string {
	base := strings.Fields(stopwordsFile)
	return append(base, extra...)
}
