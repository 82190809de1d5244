package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/topicscout/topicscout/ai"
	"github.com/topicscout/topicscout/api"
	"github.com/topicscout/topicscout/models"
)

const (
	minKeywordLen = 2
	maxKeywordLen = 100

	defaultLimit   = 50
	sampleSize     = 5
	retryAfterSecs = 60
)

// SourceFetcher retrieves candidate posts for a keyword
type SourceFetcher interface {
	SearchPosts(ctx context.Context, keyword string, limit int) (*models.SearchResult, error)
}

// ContentAnalyzer produces the structured analysis and newsletter draft
type ContentAnalyzer interface {
	AnalyzeContent(ctx context.Context, posts []models.Post, keyword string) (*models.AnalysisResult, error)
	GenerateNewsletterDraft(ctx context.Context, keyword string, analysis *models.AnalysisResult) string
}

// Orchestrator sequences fetch, analysis and composition for one request and
// classifies internal failures into the external error taxonomy
type Orchestrator struct {
	fetcher  SourceFetcher
	analyzer ContentAnalyzer
	log      *logrus.Logger
}

// NewOrchestrator creates an orchestrator. A nil analyzer puts the service in
// degraded mode where every request reports a configuration error.
func NewOrchestrator(fetcher SourceFetcher, analyzer ContentAnalyzer, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		fetcher:  fetcher,
		analyzer: analyzer,
		log:      log,
	}
}

// Run is the single externally invoked entry point of the analysis pipeline
func (o *Orchestrator) Run(ctx context.Context, req *models.AnalyzeRequest) (*models.AnalyzeResponse, *models.ErrorResponse) {
	start := time.Now()

	keyword := strings.TrimSpace(req.Keyword)
	if keyword == "" {
		return nil, &models.ErrorResponse{
			Category: models.ErrInvalidInput,
			Error:    "Keyword is required and must be a string",
		}
	}
	if len(keyword) < minKeywordLen || len(keyword) > maxKeywordLen {
		return nil, &models.ErrorResponse{
			Category: models.ErrInvalidInput,
			Error:    "Keyword must be between 2 and 100 characters",
		}
	}

	if o.analyzer == nil {
		return nil, &models.ErrorResponse{
			Category: models.ErrServiceConfig,
			Error:    "AI service configuration error",
			Details:  "Gemini API key is not properly configured",
		}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	o.log.WithFields(logrus.Fields{
		"keyword": keyword,
		"limit":   limit,
	}).Info("Starting analysis")

	searchResult, err := o.fetcher.SearchPosts(ctx, keyword, limit)
	if err != nil {
		return nil, o.classify(err)
	}

	if len(searchResult.Posts) == 0 {
		return nil, &models.ErrorResponse{
			Category:   models.ErrNoResultsFound,
			Error:      "No relevant posts found for this keyword",
			Suggestion: "Try a different keyword or check your spelling",
		}
	}

	o.log.WithField("post_count", len(searchResult.Posts)).Info("Posts fetched, analyzing with Gemini")

	analysis, err := o.analyzer.AnalyzeContent(ctx, searchResult.Posts, keyword)
	if err != nil {
		return nil, o.classify(err)
	}

	o.log.Info("Generating newsletter draft")
	draft := o.analyzer.GenerateNewsletterDraft(ctx, keyword, analysis)

	sample := searchResult.Posts
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	postsSample := make([]models.PostSample, 0, len(sample))
	for _, post := range sample {
		postsSample = append(postsSample, models.PostSample{
			Title:     post.Title,
			Score:     post.Score,
			Subreddit: post.Subreddit,
			URL:       post.URL,
		})
	}

	o.log.WithFields(logrus.Fields{
		"keyword":    keyword,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("Analysis completed successfully")

	return &models.AnalyzeResponse{
		Success:         true,
		Keyword:         keyword,
		Analysis:        analysis,
		NewsletterDraft: draft,
		SourceData: models.SourceData{
			TotalPosts:  len(searchResult.Posts),
			SearchQuery: searchResult.SearchQuery,
			PostsSample: postsSample,
		},
		GeneratedAt:      time.Now().UTC().Format(time.RFC3339),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

// classify maps typed subsystem errors onto the stable external taxonomy.
// It switches on error identity, never on vendor error text.
func (o *Orchestrator) classify(err error) *models.ErrorResponse {
	o.log.WithError(err).Error("Analysis pipeline error")

	switch {
	case errors.Is(err, api.ErrRateLimited), errors.Is(err, ai.ErrQuotaExceeded):
		return &models.ErrorResponse{
			Category:   models.ErrRateLimited,
			Error:      "Service temporarily unavailable",
			Details:    "API rate limit reached. Please try again in a few minutes.",
			RetryAfter: retryAfterSecs,
		}
	case errors.Is(err, api.ErrAuthFailed), errors.Is(err, api.ErrSourceUnavailable):
		return &models.ErrorResponse{
			Category: models.ErrSourceUnavailable,
			Error:    "Data source error",
			Details:  "Unable to fetch Reddit data. Please try again later.",
		}
	case errors.Is(err, ai.ErrNotConfigured):
		return &models.ErrorResponse{
			Category: models.ErrServiceConfig,
			Error:    "AI service configuration error",
			Details:  "Gemini API key is not properly configured",
		}
	case errors.Is(err, ai.ErrNoPosts):
		return &models.ErrorResponse{
			Category:   models.ErrNoResultsFound,
			Error:      "No relevant posts found for this keyword",
			Suggestion: "Try a different keyword or check your spelling",
		}
	default:
		return &models.ErrorResponse{
			Category: models.ErrInternal,
			Error:    "Internal server error",
			Details:  "An unexpected error occurred during analysis",
		}
	}
}
