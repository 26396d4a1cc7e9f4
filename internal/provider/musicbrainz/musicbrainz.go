// Package musicbrainz implements metadata.Provider over the MusicBrainz
// ws/2 recording search.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mbsuggest/internal/metadata"
)

const (
	DefaultURL       = "https://musicbrainz.org/ws/2"
	DefaultUserAgent = "mbsuggest/1.0 ( https://github.com/mbsuggest/mbsuggest )"
	DefaultLimit     = 25

	// TypeNamespace prefixes release type identifiers.
	TypeNamespace = "http://musicbrainz.org/ns/mmd-2.0#"
)

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	URL       string
	UserAgent string
	Limit     int
	Timeout   time.Duration
}

// Client is a MusicBrainz Web API client that implements metadata.Provider.
type Client struct {
	httpClient *http.Client
	apiURL     string
	userAgent  string
	limit      int
	limiter    *rate.Limiter
}

// New creates a new MusicBrainz client.
func New(opts Options) *Client {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		apiURL:     strings.TrimRight(opts.URL, "/"),
		userAgent:  opts.UserAgent,
		limit:      opts.Limit,
		// MusicBrainz allows one request per second per client
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (c *Client) Name() string { return "musicbrainz" }

// Search runs a recording search with the given field query and returns the
// scored candidates in the order MusicBrainz ranked them. The query is sent
// as is, even when empty. Every failure is a *metadata.ServiceError.
func (c *Client) Search(ctx context.Context, query string) ([]metadata.Candidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, serviceError(err)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("fmt", "json")
	params.Set("limit", strconv.Itoa(c.limit))

	reqURL := fmt.Sprintf("%s/recording?%s", c.apiURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, serviceError(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, serviceError(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, serviceError(fmt.Errorf("returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, serviceError(fmt.Errorf("failed to decode response: %w", err))
	}

	return parseRecordings(searchResp.Recordings), nil
}

func serviceError(err error) error {
	return &metadata.ServiceError{Op: "musicbrainz search", Err: err}
}

func parseRecordings(recordings []recording) []metadata.Candidate {
	results := make([]metadata.Candidate, 0, len(recordings))
	for _, rec := range recordings {
		cand := metadata.Candidate{
			Score:  rec.Score,
			Artist: metadata.Artist{Name: joinArtistCredits(rec.ArtistCredit)},
			Title:  rec.Title,
		}
		for _, rel := range rec.Releases {
			cand.Releases = append(cand.Releases, parseRelease(rel))
		}
		results = append(results, cand)
	}
	return results
}

func parseRelease(rel release) metadata.Release {
	out := metadata.Release{Title: rel.Title}

	if t := rel.ReleaseGroup.PrimaryType; t != "" {
		out.Types = append(out.Types, typeID(t))
	}
	for _, t := range rel.ReleaseGroup.SecondaryTypes {
		out.Types = append(out.Types, typeID(t))
	}

	if len(rel.Media) > 0 {
		out.TracksOffset = rel.Media[0].TrackOffset
	}
	return out
}

// typeID turns a release group type such as "Album" or "DJ-mix" into a
// namespaced identifier whose suffix is a single word.
func typeID(t string) string {
	return TypeNamespace + strings.NewReplacer(" ", "", "-", "").Replace(t)
}

// joinArtistCredits renders an artist credit the way MusicBrainz displays it,
// using join phrases when present.
func joinArtistCredits(credits []artistCredit) string {
	var b strings.Builder
	for i, ac := range credits {
		name := ac.Name
		if name == "" {
			name = ac.Artist.Name
		}
		b.WriteString(name)
		switch {
		case ac.JoinPhrase != "":
			b.WriteString(ac.JoinPhrase)
		case i < len(credits)-1:
			b.WriteString(", ")
		}
	}
	return b.String()
}

// MusicBrainz API response types

type searchResponse struct {
	Count      int         `json:"count"`
	Recordings []recording `json:"recordings"`
}

type recording struct {
	ID           string         `json:"id"`
	Score        int            `json:"score"`
	Title        string         `json:"title"`
	Length       int            `json:"length"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	Releases     []release      `json:"releases"`
}

type artistCredit struct {
	Name       string     `json:"name"`
	JoinPhrase string     `json:"joinphrase"`
	Artist     artistInfo `json:"artist"`
}

type artistInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type release struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Status       string       `json:"status"`
	Date         string       `json:"date"`
	ReleaseGroup releaseGroup `json:"release-group"`
	Media        []media      `json:"media"`
}

type releaseGroup struct {
	ID             string   `json:"id"`
	PrimaryType    string   `json:"primary-type"`
	SecondaryTypes []string `json:"secondary-types"`
}

type media struct {
	Position    int    `json:"position"`
	Format      string `json:"format"`
	TrackOffset int    `json:"track-offset"`
	TrackCount  int    `json:"track-count"`
}
