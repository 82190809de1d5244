package models

// Post represents a single Reddit discussion post used as analysis input
type Post struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	URL         string  `json:"url"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
}

// SearchResult holds the deduplicated, score-ranked candidate set for one search
type SearchResult struct {
	Posts        []Post `json:"posts"`
	TotalResults int    `json:"total_results"`
	SearchQuery  string `json:"search_query"`
}

// KeywordInsight is one extracted keyword with its relevance and usage context
type KeywordInsight struct {
	Keyword        string   `json:"keyword"`
	RelevanceScore float64  `json:"relevance_score"`
	Mentions       int      `json:"mentions"`
	Context        []string `json:"context"`
}

// SentimentAnalysis summarizes the overall tone of the candidate posts
type SentimentAnalysis struct {
	OverallSentiment string  `json:"overall_sentiment"`
	PolarityScore    float64 `json:"polarity_score"`
	Confidence       float64 `json:"confidence"`
	EmotionalTone    string  `json:"emotional_tone"`
}

// TrendingTopic is one discussion topic gaining traction in the candidate set
type TrendingTopic struct {
	Topic            string   `json:"topic"`
	TrendScore       float64  `json:"trend_score"`
	DiscussionPoints []string `json:"discussion_points"`
	Relevance        string   `json:"relevance"`
}

// EngagementMetrics are always computed from the candidate set, never taken
// from the model output
type EngagementMetrics struct {
	AvgScore       int     `json:"avg_score"`
	TotalComments  int     `json:"total_comments"`
	EngagementRate float64 `json:"engagement_rate"`
}

// AnalysisResult is the validated, bounded structured analysis
type AnalysisResult struct {
	TopKeywords       []KeywordInsight  `json:"top_keywords"`
	Sentiment         SentimentAnalysis `json:"sentiment"`
	TrendingTopics    []TrendingTopic   `json:"trending_topics"`
	KeyInsights       []string          `json:"key_insights"`
	ContentThemes     []string          `json:"content_themes"`
	EngagementMetrics EngagementMetrics `json:"engagement_metrics"`
	NewsletterAngles  []string          `json:"newsletter_angles"`
}

// AnalyzeSettings are optional generation knobs passed through from the client
type AnalyzeSettings struct {
	Creativity     int    `json:"creativity,omitempty"`
	IncludeStats   bool   `json:"includeStats,omitempty"`
	TargetAudience string `json:"targetAudience,omitempty"`
}

// AnalyzeRequest is the body of POST /api/analyze
type AnalyzeRequest struct {
	Keyword  string           `json:"keyword"`
	Limit    int              `json:"limit,omitempty"`
	Settings *AnalyzeSettings `json:"settings,omitempty"`
}

// PostSample is the trimmed view of a post included in the response preview
type PostSample struct {
	Title     string `json:"title"`
	Score     int    `json:"score"`
	Subreddit string `json:"subreddit"`
	URL       string `json:"url"`
}

// SourceData summarizes where the analysis input came from
type SourceData struct {
	TotalPosts  int          `json:"total_posts"`
	SearchQuery string       `json:"search_query"`
	PostsSample []PostSample `json:"posts_sample"`
}

// AnalyzeResponse is the success body of POST /api/analyze
type AnalyzeResponse struct {
	Success          bool            `json:"success"`
	Keyword          string          `json:"keyword"`
	Analysis         *AnalysisResult `json:"analysis"`
	NewsletterDraft  string          `json:"newsletter_draft"`
	SourceData       SourceData      `json:"source_data"`
	GeneratedAt      string          `json:"generated_at"`
	ProcessingTimeMS int64           `json:"processing_time"`
}

// ErrorCategory is the stable outward-facing failure taxonomy
type ErrorCategory string

const (
	ErrInvalidInput      ErrorCategory = "invalid_input"
	ErrNoResultsFound    ErrorCategory = "no_results_found"
	ErrServiceConfig     ErrorCategory = "service_configuration_error"
	ErrSourceUnavailable ErrorCategory = "source_unavailable"
	ErrRateLimited       ErrorCategory = "rate_limited"
	ErrInternal          ErrorCategory = "internal_error"
)

// ErrorResponse is the failure body of POST /api/analyze
type ErrorResponse struct {
	Success    bool          `json:"success"`
	Category   ErrorCategory `json:"-"`
	Error      string        `json:"error"`
	Suggestion string        `json:"suggestion,omitempty"`
	RetryAfter int           `json:"retry_after,omitempty"`
	Details    string        `json:"details,omitempty"`
}

// HTTPStatus maps an error category to the status code the handler returns
func (e *ErrorResponse) HTTPStatus() int {
	switch e.Category {
	case ErrInvalidInput:
		return 400
	case ErrNoResultsFound:
		return 404
	case ErrRateLimited:
		return 429
	case ErrSourceUnavailable:
		return 503
	default:
		return 500
	}
}
