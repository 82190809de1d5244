package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/topicscout/topicscout/ai"
	"github.com/topicscout/topicscout/api"
	"github.com/topicscout/topicscout/models"
)

type fakeFetcher struct {
	result *models.SearchResult
	err    error
	calls  int
}

func (f *fakeFetcher) SearchPosts(_ context.Context, keyword string, _ int) (*models.SearchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &models.SearchResult{SearchQuery: keyword}, nil
}

type fakeAnalyzer struct {
	analyzeCalls int
	composeCalls int
}

func (f *fakeAnalyzer) AnalyzeContent(_ context.Context, posts []models.Post, keyword string) (*models.AnalysisResult, error) {
	f.analyzeCalls++
	if len(posts) == 0 {
		return nil, ai.ErrNoPosts
	}
	return &models.AnalysisResult{
		TopKeywords: []models.KeywordInsight{{Keyword: keyword, RelevanceScore: 100}},
	}, nil
}

func (f *fakeAnalyzer) GenerateNewsletterDraft(_ context.Context, keyword string, _ *models.AnalysisResult) string {
	f.composeCalls++
	return "# Draft about " + keyword
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func nPosts(n int) []models.Post {
	posts := make([]models.Post, 0, n)
	for i := 0; i < n; i++ {
		posts = append(posts, models.Post{
			ID:    fmt.Sprintf("p%d", i),
			Title: fmt.Sprintf("Post %d", i),
			Score: 100 - i,
		})
	}
	return posts
}

func TestRunKeywordValidation(t *testing.T) {
	tests := []struct {
		name    string
		keyword string
		valid   bool
	}{
		{"Two characters passes", "ab", true},
		{"One character fails", "a", false},
		{"Empty fails", "", false},
		{"Whitespace only fails", "   ", false},
		{"Exactly 100 characters passes", strings.Repeat("k", 100), true},
		{"101 characters fails", strings.Repeat("k", 101), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := &fakeFetcher{result: &models.SearchResult{
				Posts: nPosts(3), TotalResults: 3, SearchQuery: tc.keyword,
			}}
			o := NewOrchestrator(fetcher, &fakeAnalyzer{}, testLogger())

			resp, errResp := o.Run(context.Background(), &models.AnalyzeRequest{Keyword: tc.keyword})
			if tc.valid {
				assert.Nil(t, errResp)
				assert.True(t, resp.Success)
			} else {
				assert.Nil(t, resp)
				assert.Equal(t, models.ErrInvalidInput, errResp.Category)
				assert.Equal(t, 0, fetcher.calls, "invalid keywords must not reach the fetcher")
			}
		})
	}
}

func TestRunNoResultsSkipsAnalysis(t *testing.T) {
	fetcher := &fakeFetcher{result: &models.SearchResult{SearchQuery: "zxqvbn"}}
	analyzer := &fakeAnalyzer{}
	o := NewOrchestrator(fetcher, analyzer, testLogger())

	resp, errResp := o.Run(context.Background(), &models.AnalyzeRequest{Keyword: "zxqvbn"})
	assert.Nil(t, resp)
	assert.Equal(t, models.ErrNoResultsFound, errResp.Category)
	assert.NotEmpty(t, errResp.Suggestion)
	assert.Equal(t, 0, analyzer.analyzeCalls, "analyzer must not run on an empty candidate set")
	assert.Equal(t, 0, analyzer.composeCalls)
}

func TestRunClassifiesTypedErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		category   models.ErrorCategory
		retryAfter int
	}{
		{
			name:     "Source unavailable",
			err:      fmt.Errorf("%w: all queries failed", api.ErrSourceUnavailable),
			category: models.ErrSourceUnavailable,
		},
		{
			name:     "Auth failure maps to source unavailable",
			err:      fmt.Errorf("%w: status 401", api.ErrAuthFailed),
			category: models.ErrSourceUnavailable,
		},
		{
			name:       "Rate limited carries retry hint",
			err:        fmt.Errorf("%w: 429", api.ErrRateLimited),
			category:   models.ErrRateLimited,
			retryAfter: 60,
		},
		{
			name:     "Unknown errors are internal",
			err:      errors.New("something odd"),
			category: models.ErrInternal,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := NewOrchestrator(&fakeFetcher{err: tc.err}, &fakeAnalyzer{}, testLogger())

			resp, errResp := o.Run(context.Background(), &models.AnalyzeRequest{Keyword: "golang"})
			assert.Nil(t, resp)
			assert.Equal(t, tc.category, errResp.Category)
			assert.Equal(t, tc.retryAfter, errResp.RetryAfter)
			// the raw error text never becomes the primary message
			assert.NotContains(t, errResp.Error, tc.err.Error())
		})
	}
}

func TestRunDegradedWithoutAnalyzer(t *testing.T) {
	o := NewOrchestrator(&fakeFetcher{}, nil, testLogger())

	resp, errResp := o.Run(context.Background(), &models.AnalyzeRequest{Keyword: "golang"})
	assert.Nil(t, resp)
	assert.Equal(t, models.ErrServiceConfig, errResp.Category)
	assert.Equal(t, 500, errResp.HTTPStatus())
}

func TestRunAssemblesResponse(t *testing.T) {
	fetcher := &fakeFetcher{result: &models.SearchResult{
		Posts:        nPosts(8),
		TotalResults: 8,
		SearchQuery:  "golang",
	}}
	analyzer := &fakeAnalyzer{}
	o := NewOrchestrator(fetcher, analyzer, testLogger())

	resp, errResp := o.Run(context.Background(), &models.AnalyzeRequest{Keyword: "golang"})
	assert.Nil(t, errResp)

	assert.True(t, resp.Success)
	assert.Equal(t, "golang", resp.Keyword)
	assert.Equal(t, "# Draft about golang", resp.NewsletterDraft)
	assert.Equal(t, 8, resp.SourceData.TotalPosts)
	assert.Len(t, resp.SourceData.PostsSample, 5, "preview sample is capped at 5 posts")
	assert.Equal(t, "Post 0", resp.SourceData.PostsSample[0].Title)
	assert.NotEmpty(t, resp.GeneratedAt)
	assert.Equal(t, 1, analyzer.analyzeCalls)
	assert.Equal(t, 1, analyzer.composeCalls)
}

func TestErrorResponseStatusMapping(t *testing.T) {
	tests := []struct {
		category models.ErrorCategory
		status   int
	}{
		{models.ErrInvalidInput, 400},
		{models.ErrNoResultsFound, 404},
		{models.ErrRateLimited, 429},
		{models.ErrSourceUnavailable, 503},
		{models.ErrServiceConfig, 500},
		{models.ErrInternal, 500},
	}

	for _, tc := range tests {
		resp := &models.ErrorResponse{Category: tc.category}
		assert.Equal(t, tc.status, resp.HTTPStatus(), "category %s", tc.category)
	}
}
