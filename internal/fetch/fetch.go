// Package fetch backfills missing trail descriptions by downloading the
// trail page and extracting its readable text.
package fetch

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog/log"

	"github.com/KalinMeier/TrailScout/internal/database"
)

// minDescriptionLength is the shortest extracted text worth storing;
// anything below this is usually navigation chrome.
const minDescriptionLength = 100

// Result holds the results of a description fetch run.
type Result struct {
	Fetched int
	Failed  int
}

// DescriptionFetcher fetches trail page text via HTTP + readability
// extraction for trails whose stored description is empty.
type DescriptionFetcher struct {
	db     *database.DB
	client *http.Client
}

// NewDescriptionFetcher creates a new description fetcher.
func NewDescriptionFetcher(db *database.DB, timeout time.Duration) *DescriptionFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &DescriptionFetcher{
		db: db,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// FetchMissingDescriptions fetches page text for up to limit trails with an
// empty description (0 = no limit). A domain that returns an HTTP error is
// skipped for the rest of the run.
func (f *DescriptionFetcher) FetchMissingDescriptions(limit int) *Result {
	trails, err := f.db.GetTrailsNeedingFetch(limit)
	if err != nil {
		log.Error().Err(err).Msg("listing trails needing fetch")
		return &Result{}
	}

	if len(trails) == 0 {
		log.Info().Msg("no trails need description fetching")
		return &Result{}
	}

	result := &Result{}
	failedDomains := make(map[string]struct{})

	for _, trail := range trails {
		u, _ := url.Parse(trail.URL)
		domain := ""
		if u != nil {
			domain = strings.ToLower(u.Host)
		}

		if _, failed := failedDomains[domain]; failed {
			f.db.MarkTrailFetchAttempted(trail.ID)
			result.Failed++
			continue
		}

		text, httpErr := f.fetchPageText(trail.URL)
		if httpErr != nil {
			f.db.MarkTrailFetchAttempted(trail.ID)
			result.Failed++
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			log.Warn().Str("url", trail.URL).Str("domain", domain).
				Msg("http error, skipping remaining trails from domain")
			continue
		}

		if text != "" {
			f.db.UpdateTrailDescription(trail.ID, &text)
			result.Fetched++
			log.Info().Str("trail", trail.Name).Msg("fetched description")
		} else {
			f.db.MarkTrailFetchAttempted(trail.ID)
			result.Failed++
			log.Debug().Str("url", trail.URL).Msg("no extractable text")
		}
	}

	log.Info().Int("fetched", result.Fetched).Int("failed", result.Failed).
		Msg("description fetch complete")
	return result
}

func (f *DescriptionFetcher) fetchPageText(pageURL string) (string, error) {
	req, err := http.NewRequest("GET", pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "TrailScout/1.0 (trail catalog)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil // connection error, not HTTP error
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil
	}

	parsedURL, _ := url.Parse(pageURL)
	page, err := readability.FromReader(strings.NewReader(string(bodyBytes)), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(page.TextContent)
	if len(text) > minDescriptionLength {
		return text, nil
	}
	return "", nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
