package opensubtitles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"subseek/internal/provider"
)

const (
	defaultBaseURL     = "https://api.opensubtitles.com/api/v1"
	defaultUserAgent   = "subseek/dev"
	defaultHTTPTimeout = 45 * time.Second
	maxPages           = 10
	maxPayloadBytes    = 16 << 20
)

// ClientConfig describes the REST client configuration.
type ClientConfig struct {
	APIKey     string
	UserAgent  string
	UserToken  string
	BaseURL    string
	HTTPClient *http.Client
	// MinInterval spaces consecutive requests; zero disables throttling.
	MinInterval time.Duration
	// RateRetries is how often a 429 response is retried.
	RateRetries int
	// InitialBackoff is the first wait after a 429; it doubles per retry.
	InitialBackoff time.Duration
}

// Client wraps the opensubtitles.com REST API.
type Client struct {
	apiKey    string
	userAgent string
	baseURL   *url.URL
	http      *http.Client
	throttle  *throttle
	retries   int
	backoff   time.Duration

	mu    sync.RWMutex
	token string
}

// NewClient creates a Client from the supplied configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("opensubtitles: api key is required")
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: parse base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		apiKey:    apiKey,
		userAgent: userAgent,
		baseURL:   baseURL,
		http:      client,
		throttle:  newThrottle(cfg.MinInterval),
		retries:   cfg.RateRetries,
		backoff:   cfg.InitialBackoff,
		token:     strings.TrimSpace(cfg.UserToken),
	}, nil
}

// Token returns the bearer token in use, if any.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token; empty clears it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = strings.TrimSpace(token)
}

// Login exchanges credentials for a bearer token and starts using it.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", fmt.Errorf("opensubtitles: encode login request: %w", err)
	}
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "login", nil, body, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Token) == "" {
		return "", errors.New("opensubtitles: login returned an empty token")
	}
	c.SetToken(resp.Token)
	return resp.Token, nil
}

// SearchRequest describes one set of subtitle discovery filters.
type SearchRequest struct {
	MovieHash    string
	IMDBID       string
	ParentIMDBID string
	TMDBID       int
	ParentTMDBID int
	Query        string
	Season       int
	Episode      int
	Year         int
	Languages    []string
}

// Params renders the request as API query parameters. Values are lower
// cased and url.Values encodes keys in sorted order.
func (r SearchRequest) Params() url.Values {
	params := url.Values{}
	if r.MovieHash != "" {
		params.Set("moviehash", strings.ToLower(r.MovieHash))
	}
	if imdb := sanitizeIMDBID(r.IMDBID); imdb != "" {
		params.Set("imdb_id", imdb)
	}
	if parent := sanitizeIMDBID(r.ParentIMDBID); parent != "" {
		params.Set("parent_imdb_id", parent)
	}
	if r.TMDBID > 0 {
		params.Set("tmdb_id", strconv.Itoa(r.TMDBID))
	}
	if r.ParentTMDBID > 0 {
		params.Set("parent_tmdb_id", strconv.Itoa(r.ParentTMDBID))
	}
	if q := strings.TrimSpace(strings.ReplaceAll(r.Query, "'", "")); q != "" {
		params.Set("query", strings.ToLower(q))
	}
	if r.Season > 0 && r.Episode > 0 {
		params.Set("season_number", strconv.Itoa(r.Season))
		params.Set("episode_number", strconv.Itoa(r.Episode))
	}
	if r.Year > 0 {
		params.Set("year", strconv.Itoa(r.Year))
	}
	if len(r.Languages) > 0 {
		params.Set("languages", strings.ToLower(strings.Join(r.Languages, ",")))
	}
	return params
}

// Result is one subtitle entry of a search response.
type Result struct {
	ID                string
	FileID            int64
	FileName          string
	Language          string
	Release           string
	URL               string
	HearingImpaired   bool
	ForeignOnly       bool
	MachineTranslated bool
	MovieHashMatch    bool
	DownloadCount     int
	FPS               float64
	FeatureType       string
	Title             string
	MovieName         string
	Year              int
	IMDBID            int64
	TMDBID            int64
	ParentTitle       string
	ParentIMDBID      int64
	ParentTMDBID      int64
	Season            int
	Episode           int
}

// Search runs one search, following pagination up to a fixed page limit.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]Result, error) {
	var out []Result
	for page := 1; page <= maxPages; page++ {
		params := req.Params()
		params.Set("page", strconv.Itoa(page))

		var payload searchResponse
		if err := c.do(ctx, http.MethodGet, "subtitles", params, nil, &payload); err != nil {
			return nil, err
		}
		for _, entry := range payload.Data {
			if entry.Attributes.Language == "" {
				continue
			}
			out = append(out, entry.result())
		}
		if page >= payload.TotalPages {
			break
		}
	}
	return out, nil
}

// Feature is a movie or show known to the API.
type Feature struct {
	ID          string
	FeatureType string
	Title       string
	Year        int
	IMDBID      int64
	TMDBID      int64
}

// Features looks up movies or shows by name. kind is movie, tvshow or
// episode; empty searches all of them.
func (c *Client) Features(ctx context.Context, query, kind string) ([]Feature, error) {
	params := url.Values{}
	params.Set("query", strings.ToLower(strings.TrimSpace(query)))
	if kind != "" {
		params.Set("type", kind)
	}
	var payload featuresResponse
	if err := c.do(ctx, http.MethodGet, "features", params, nil, &payload); err != nil {
		return nil, err
	}
	out := make([]Feature, 0, len(payload.Data))
	for _, entry := range payload.Data {
		out = append(out, Feature{
			ID:          entry.ID,
			FeatureType: strings.ToLower(entry.Attributes.FeatureType),
			Title:       entry.Attributes.Title,
			Year:        int(entry.Attributes.Year),
			IMDBID:      entry.Attributes.IMDBID,
			TMDBID:      entry.Attributes.TMDBID,
		})
	}
	return out, nil
}

// DownloadLink is the answer to a download negotiation.
type DownloadLink struct {
	Link      string
	FileName  string
	Remaining int
	ResetTime string
}

// RequestDownload negotiates a temporary link for fileID. The call counts
// against the account's daily quota.
func (c *Client) RequestDownload(ctx context.Context, fileID int64) (DownloadLink, error) {
	if fileID <= 0 {
		return DownloadLink{}, errors.New("opensubtitles: invalid file id")
	}
	body, err := json.Marshal(map[string]any{"file_id": fileID, "sub_format": "srt"})
	if err != nil {
		return DownloadLink{}, fmt.Errorf("opensubtitles: encode download request: %w", err)
	}
	var info downloadResponse
	if err := c.do(ctx, http.MethodPost, "download", nil, body, &info); err != nil {
		return DownloadLink{}, err
	}
	return DownloadLink{
		Link:      info.Link,
		FileName:  info.FileName,
		Remaining: info.Remaining,
		ResetTime: info.ResetTimeUTC,
	}, nil
}

// Fetch downloads the payload behind a negotiated link.
func (c *Client) Fetch(ctx context.Context, link string) ([]byte, error) {
	target, err := c.baseURL.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: parse download url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: build link request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if err := c.throttle.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: fetch subtitle payload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, statusError("fetch", resp)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: read subtitle data: %w", err)
	}
	return data, nil
}

// do sends one API request, retrying 429 answers with exponential backoff,
// and decodes a JSON answer into out.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte, out any) error {
	endpoint := c.baseURL.JoinPath(path)
	if len(params) > 0 {
		endpoint.RawQuery = params.Encode()
	}
	delay := c.backoff
	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
		if err != nil {
			return fmt.Errorf("opensubtitles: build %s request: %w", path, err)
		}
		c.applyHeaders(req)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if err := c.throttle.wait(ctx); err != nil {
			return err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("opensubtitles: %s request failed: %w", path, err)
		}
		if resp.StatusCode == http.StatusTooManyRequests && attempt < c.retries {
			resp.Body.Close()
			if err := SleepWithContext(ctx, retryAfter(resp, delay)); err != nil {
				return err
			}
			delay = nextBackoff(delay)
			continue
		}
		err = decodeResponse(path, resp, out)
		resp.Body.Close()
		return err
	}
}

func decodeResponse(op string, resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("opensubtitles: decode %s response: %w", op, err)
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &provider.HTTPError{
		Provider:   providerName,
		Operation:  op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

func (c *Client) applyHeaders(req *http.Request) {
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// sanitizeIMDBID strips the tt prefix and leading zeroes.
func sanitizeIMDBID(value string) string {
	value = strings.TrimLeft(strings.ToLower(strings.TrimSpace(value)), "t")
	if value == "" {
		return ""
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n <= 0 {
		return ""
	}
	return strconv.FormatInt(n, 10)
}

// decorateIMDBID renders an IMDb number as tt plus at least seven digits.
func decorateIMDBID(id int64) string {
	if id <= 0 {
		return ""
	}
	return fmt.Sprintf("tt%07d", id)
}

type loginResponse struct {
	Token  string `json:"token"`
	Status int    `json:"status"`
}

type featuresResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Title       string  `json:"title"`
			FeatureType string  `json:"feature_type"`
			Year        flexInt `json:"year"`
			IMDBID      int64   `json:"imdb_id"`
			TMDBID      int64   `json:"tmdb_id"`
		} `json:"attributes"`
	} `json:"data"`
}

type searchResponse struct {
	TotalPages int           `json:"total_pages"`
	TotalCount int           `json:"total_count"`
	Page       int           `json:"page"`
	Data       []searchEntry `json:"data"`
}

type searchEntry struct {
	ID         string           `json:"id"`
	Attributes searchAttributes `json:"attributes"`
}

type searchAttributes struct {
	Language          string         `json:"language"`
	Release           string         `json:"release"`
	URL               string         `json:"url"`
	DownloadCount     int            `json:"download_count"`
	HearingImpaired   bool           `json:"hearing_impaired"`
	ForeignPartsOnly  bool           `json:"foreign_parts_only"`
	MachineTranslated bool           `json:"machine_translated"`
	AITranslated      bool           `json:"ai_translated"`
	MovieHashMatch    bool           `json:"moviehash_match"`
	FPS               float64        `json:"fps"`
	FeatureDetails    featureDetails `json:"feature_details"`
	Files             []searchFile   `json:"files"`
}

type featureDetails struct {
	FeatureType   string `json:"feature_type"`
	Title         string `json:"title"`
	MovieName     string `json:"movie_name"`
	Year          int    `json:"year"`
	IMDBID        int64  `json:"imdb_id"`
	TMDBID        int64  `json:"tmdb_id"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	ParentTitle   string `json:"parent_title"`
	ParentIMDBID  int64  `json:"parent_imdb_id"`
	ParentTMDBID  int64  `json:"parent_tmdb_id"`
}

type searchFile struct {
	FileID   int64  `json:"file_id"`
	FileName string `json:"file_name"`
}

type downloadResponse struct {
	Link         string `json:"link"`
	FileName     string `json:"file_name"`
	Requests     int    `json:"requests"`
	Remaining    int    `json:"remaining"`
	Message      string `json:"message"`
	ResetTimeUTC string `json:"reset_time_utc"`
}

func (e searchEntry) result() Result {
	attrs := e.Attributes
	details := attrs.FeatureDetails
	r := Result{
		ID:                e.ID,
		Language:          attrs.Language,
		Release:           attrs.Release,
		URL:               attrs.URL,
		HearingImpaired:   attrs.HearingImpaired,
		ForeignOnly:       attrs.ForeignPartsOnly,
		MachineTranslated: attrs.MachineTranslated || attrs.AITranslated,
		MovieHashMatch:    attrs.MovieHashMatch,
		DownloadCount:     attrs.DownloadCount,
		FPS:               attrs.FPS,
		FeatureType:       strings.ToLower(details.FeatureType),
		Title:             details.Title,
		MovieName:         details.MovieName,
		Year:              details.Year,
		IMDBID:            details.IMDBID,
		TMDBID:            details.TMDBID,
		ParentTitle:       details.ParentTitle,
		ParentIMDBID:      details.ParentIMDBID,
		ParentTMDBID:      details.ParentTMDBID,
		Season:            details.SeasonNumber,
		Episode:           details.EpisodeNumber,
	}
	if len(attrs.Files) > 0 {
		r.FileID = attrs.Files[0].FileID
		r.FileName = attrs.Files[0].FileName
	}
	return r
}

// flexInt accepts a JSON number, a numeric string, an empty string or null.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", raw, err)
	}
	*f = flexInt(n)
	return nil
}
