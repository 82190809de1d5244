package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/topicscout/topicscout/models"
)

const (
	baseURL         = "https://oauth.reddit.com"
	authURL         = "https://www.reddit.com/api/v1/access_token"
	publicSearchURL = "https://www.reddit.com/search.json"

	defaultLimit = 50
	// fan out over at most this many subreddits per search
	maxSearchSubreddits = 3
)

// Typed errors so the orchestrator can classify failures without inspecting
// vendor error text.
var (
	ErrAuthFailed        = errors.New("reddit authentication failed")
	ErrSourceUnavailable = errors.New("reddit search unavailable")
	ErrRateLimited       = errors.New("reddit rate limit exceeded")
)

// DefaultSubreddits is the prioritized community list searched for any keyword.
var DefaultSubreddits = []string{
	"all", "AskReddit", "technology", "news", "worldnews",
	"science", "business", "entrepreneur", "marketing",
}

// RedditAPI is a Reddit search client using application-only OAuth
type RedditAPI struct {
	clientID     string
	clientSecret string
	userAgent    string
	subreddits   []string
	httpClient   *http.Client
	accessToken  string
	tokenExpiry  time.Time
	mutex        sync.RWMutex
	log          *logrus.Logger

	// endpoint bases, overridable in tests
	authEndpoint   string
	searchBase     string
	publicEndpoint string
}

// redditListing is the Reddit API response structure for a search
type redditListing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string `json:"kind"`
			Data struct {
				ID          string  `json:"id"`
				Title       string  `json:"title"`
				Author      string  `json:"author"`
				Subreddit   string  `json:"subreddit"`
				URL         string  `json:"url"`
				CreatedUTC  float64 `json:"created_utc"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				SelfText    string  `json:"selftext"`
				Permalink   string  `json:"permalink"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// NewRedditAPI creates a new Reddit search client
func NewRedditAPI(clientID, clientSecret, userAgent string, subreddits []string, log *logrus.Logger) *RedditAPI {
	if len(subreddits) == 0 {
		subreddits = DefaultSubreddits
	}

	return &RedditAPI{
		clientID:       clientID,
		clientSecret:   clientSecret,
		userAgent:      userAgent,
		subreddits:     subreddits,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		log:            log,
		authEndpoint:   authURL,
		searchBase:     baseURL,
		publicEndpoint: publicSearchURL,
	}
}

// authenticate obtains an application-only bearer token via the
// client-credentials grant, caching it until expiry
func (r *RedditAPI) authenticate(ctx context.Context) error {
	r.mutex.RLock()
	token := r.accessToken
	expiry := r.tokenExpiry
	r.mutex.RUnlock()

	if token != "" && time.Now().Before(expiry) {
		return nil
	}

	r.log.Info("Authenticating with Reddit API")

	data := url.Values{}
	data.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.authEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("%w: failed to create auth request: %v", ErrAuthFailed, err)
	}

	req.SetBasicAuth(r.clientID, r.clientSecret)
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", ErrAuthFailed, resp.StatusCode, string(body))
	}

	var authResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return fmt.Errorf("%w: failed to decode auth response: %v", ErrAuthFailed, err)
	}

	r.mutex.Lock()
	r.accessToken = authResp.AccessToken
	r.tokenExpiry = time.Now().Add(time.Duration(authResp.ExpiresIn) * time.Second)
	r.mutex.Unlock()

	r.log.Info("Successfully authenticated with Reddit API")
	return nil
}

// SearchPosts searches the prioritized subreddits for a keyword and returns a
// deduplicated candidate set sorted by score. The authenticated multi-subreddit
// path falls back to the public search endpoint if it fails. An empty result is
// not an error at this layer.
func (r *RedditAPI) SearchPosts(ctx context.Context, keyword string, limit int) (*models.SearchResult, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	posts, err := r.searchAuthenticated(ctx, keyword, limit)
	if err != nil {
		r.log.WithError(err).Warn("Authenticated Reddit search failed, falling back to public search")
		posts, err = r.searchPublic(ctx, keyword, limit)
		if err != nil {
			return nil, err
		}
		// single source; skip the multi-source dedup pass
		return &models.SearchResult{
			Posts:        posts,
			TotalResults: len(posts),
			SearchQuery:  keyword,
		}, nil
	}

	unique := dedupePosts(posts)
	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Score > unique[j].Score
	})
	if len(unique) > limit {
		unique = unique[:limit]
	}

	r.log.WithFields(logrus.Fields{
		"keyword":    keyword,
		"raw_count":  len(posts),
		"post_count": len(unique),
	}).Info("Reddit search completed")

	return &models.SearchResult{
		Posts:        unique,
		TotalResults: len(unique),
		SearchQuery:  keyword,
	}, nil
}

// searchAuthenticated fans out over the first few configured subreddits in
// parallel. Individual sub-query failures contribute zero posts; the call as a
// whole fails only when authentication fails or every sub-query errors.
func (r *RedditAPI) searchAuthenticated(ctx context.Context, keyword string, limit int) ([]models.Post, error) {
	if err := r.authenticate(ctx); err != nil {
		return nil, err
	}

	subreddits := r.subreddits
	if len(subreddits) > maxSearchSubreddits {
		subreddits = subreddits[:maxSearchSubreddits]
	}

	perQuery := (limit + len(subreddits) - 1) / len(subreddits)

	results := make([][]models.Post, len(subreddits))
	errs := make([]error, len(subreddits))

	var wg sync.WaitGroup
	for i, subreddit := range subreddits {
		wg.Add(1)
		go func(i int, sr string) {
			defer wg.Done()

			posts, err := r.searchSubreddit(ctx, sr, keyword, perQuery)
			if err != nil {
				r.log.WithError(err).WithField("subreddit", sr).Warn("Subreddit search failed")
				errs[i] = err
				return
			}
			results[i] = posts
		}(i, subreddit)
	}
	wg.Wait()

	var all []models.Post
	failures := 0
	for i := range results {
		if errs[i] != nil {
			failures++
			if errors.Is(errs[i], ErrRateLimited) {
				return nil, errs[i]
			}
			continue
		}
		all = append(all, results[i]...)
	}

	if failures == len(subreddits) {
		return nil, fmt.Errorf("%w: all %d subreddit queries failed", ErrSourceUnavailable, failures)
	}

	return all, nil
}

// searchSubreddit issues one authenticated search query against a subreddit
func (r *RedditAPI) searchSubreddit(ctx context.Context, subreddit, keyword string, limit int) ([]models.Post, error) {
	endpoint := fmt.Sprintf("%s/r/%s/search", r.searchBase, subreddit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	q := req.URL.Query()
	q.Set("q", keyword)
	q.Set("sort", "relevance")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("restrict_sr", strconv.FormatBool(subreddit != "all"))
	q.Set("type", "link")
	q.Set("t", "month")
	req.URL.RawQuery = q.Encode()

	r.mutex.RLock()
	token := r.accessToken
	r.mutex.RUnlock()

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// token likely expired early; drop it so the next call re-authenticates
		r.mutex.Lock()
		r.accessToken = ""
		r.mutex.Unlock()
		return nil, fmt.Errorf("%w: subreddit %s returned 401", ErrAuthFailed, subreddit)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: subreddit %s returned 429", ErrRateLimited, subreddit)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		r.log.WithFields(logrus.Fields{
			"subreddit":     subreddit,
			"status_code":   resp.StatusCode,
			"response_body": string(body),
		}).Error("Reddit API error response")
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return decodePosts(resp.Body)
}

// searchPublic queries the unauthenticated search endpoint with the same
// keyword, limit and time window
func (r *RedditAPI) searchPublic(ctx context.Context, keyword string, limit int) ([]models.Post, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.publicEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrSourceUnavailable, err)
	}

	q := req.URL.Query()
	q.Set("q", keyword)
	q.Set("sort", "relevance")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("t", "month")
	req.URL.RawQuery = q.Encode()

	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: public search returned 429", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: public search returned status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	posts, err := decodePosts(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	r.log.WithFields(logrus.Fields{
		"keyword":    keyword,
		"post_count": len(posts),
	}).Info("Public Reddit search completed")

	return posts, nil
}

// decodePosts decodes a Reddit listing into candidate posts
func decodePosts(body io.Reader) ([]models.Post, error) {
	var listing redditListing
	if err := json.NewDecoder(body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	posts := make([]models.Post, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		d := child.Data

		content := d.SelfText
		if content == "" {
			content = d.URL
		}
		postURL := d.URL
		if postURL == "" {
			postURL = "https://reddit.com" + d.Permalink
		}
		author := d.Author
		if author == "" {
			author = "unknown"
		}

		posts = append(posts, models.Post{
			ID:          d.ID,
			Title:       d.Title,
			Content:     content,
			URL:         postURL,
			Score:       d.Score,
			NumComments: d.NumComments,
			CreatedUTC:  d.CreatedUTC,
			Author:      author,
			Subreddit:   d.Subreddit,
		})
	}

	return posts, nil
}

// dedupePosts drops posts whose normalized title was already seen, keeping the
// first occurrence
func dedupePosts(posts []models.Post) []models.Post {
	seen := make(map[string]bool, len(posts))
	unique := make([]models.Post, 0, len(posts))

	for _, post := range posts {
		key := strings.ToLower(strings.TrimSpace(post.Title))
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, post)
	}

	return unique
}
