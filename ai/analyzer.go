package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/topicscout/topicscout/models"
)

const (
	defaultModel    = "gemini-2.0-flash"
	generateTimeout = 60 * time.Second

	// how much post material goes into the analysis prompt
	maxPromptPosts  = 30
	maxContentChars = 500

	// caps on the bounded arrays of the structured analysis
	maxKeywords = 15
	maxTopics   = 8
	maxInsights = 6
	maxThemes   = 5
	maxAngles   = 5
)

// Typed errors raised at the AI boundary
var (
	ErrNotConfigured = errors.New("GEMINI_API_KEY is not configured")
	ErrQuotaExceeded = errors.New("gemini quota exceeded")
	ErrNoPosts       = errors.New("no posts provided for analysis")
)

// textGenerator produces raw model text for a prompt. Narrow on purpose so
// tests can substitute a stub for the Gemini client.
type textGenerator interface {
	generate(ctx context.Context, prompt string) (string, error)
}

type geminiGenerator struct {
	client *genai.Client
	model  string
}

func (g *geminiGenerator) generate(ctx context.Context, prompt string) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.7),
		TopP:            genai.Ptr[float32](0.9),
		MaxOutputTokens: 4096,
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		if isQuotaError(err) {
			return "", fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return "", err
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}

	return text, nil
}

// isQuotaError translates the vendor's rate/quota signal into our typed error
// right at the boundary, so nothing downstream inspects error text
func isQuotaError(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED"
	}
	msg := err.Error()
	return strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "quota")
}

// Analyzer extracts structured newsletter insights from Reddit posts using
// Gemini, degrading to deterministic fallbacks when the model is unusable
type Analyzer struct {
	gen textGenerator
	log *logrus.Logger
}

// NewAnalyzer creates a Gemini-backed analyzer. A missing API key is a
// construction-time failure so a misconfigured deployment is caught at startup.
func NewAnalyzer(apiKey, model string, log *logrus.Logger) (*Analyzer, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}

	if model == "" {
		model = defaultModel
	}

	return &Analyzer{
		gen: &geminiGenerator{client: client, model: model},
		log: log,
	}, nil
}

// AnalyzeContent analyzes the candidate posts for a keyword. It fails only on
// empty input; model failures and malformed output degrade to a deterministic
// fallback so the result is always a structurally valid analysis.
func (a *Analyzer) AnalyzeContent(ctx context.Context, posts []models.Post, keyword string) (*models.AnalysisResult, error) {
	if len(posts) == 0 {
		return nil, ErrNoPosts
	}

	genCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	raw, err := a.gen.generate(genCtx, buildAnalysisPrompt(posts, keyword))
	if err != nil {
		a.log.WithError(err).WithField("keyword", keyword).Warn("Gemini analysis failed, using fallback analysis")
		return fallbackAnalysis(posts, keyword), nil
	}

	tree, err := decodeJSONTree(raw)
	if err != nil {
		a.log.WithError(err).WithField("keyword", keyword).Warn("Gemini returned unusable JSON, using fallback analysis")
		return fallbackAnalysis(posts, keyword), nil
	}

	return coerceAnalysis(tree, posts), nil
}

// buildAnalysisPrompt embeds the post sample plus the exact output contract
func buildAnalysisPrompt(posts []models.Post, keyword string) string {
	if len(posts) > maxPromptPosts {
		posts = posts[:maxPromptPosts]
	}

	var sb strings.Builder
	for i, post := range posts {
		fmt.Fprintf(&sb, "POST %d:\nTitle: %s\nContent: %s\nScore: %d\nComments: %d\nSubreddit: r/%s\n---\n\n",
			i+1, post.Title, truncateString(post.Content, maxContentChars), post.Score, post.NumComments, post.Subreddit)
	}

	return fmt.Sprintf(`You are an expert content analyst specializing in newsletter content generation. Analyze these Reddit posts about "%s" and provide comprehensive insights for newsletter creation.

REDDIT POSTS DATA:
%s
ANALYSIS REQUIREMENTS:
Analyze the content and return a JSON response with the following structure (ensure it's valid JSON):

{
  "top_keywords": [
    {
      "keyword": "string",
      "relevance_score": number (0-100),
      "mentions": number,
      "context": ["context example 1", "context example 2"]
    }
  ],
  "sentiment": {
    "overall_sentiment": "positive|negative|neutral",
    "polarity_score": number (-1 to 1),
    "confidence": number (0-1),
    "emotional_tone": "descriptive tone"
  },
  "trending_topics": [
    {
      "topic": "string",
      "trend_score": number (0-100),
      "discussion_points": ["point 1", "point 2"],
      "relevance": "why this is trending"
    }
  ],
  "key_insights": ["insight 1", "insight 2", "insight 3"],
  "content_themes": ["theme 1", "theme 2", "theme 3"],
  "engagement_metrics": {
    "avg_score": number,
    "total_comments": number,
    "engagement_rate": number
  },
  "newsletter_angles": ["angle 1", "angle 2", "angle 3"]
}

SPECIFIC INSTRUCTIONS:
1. Extract the top 10-15 most relevant keywords beyond the search term
2. Provide accurate sentiment analysis with confidence scores
3. Identify 5-8 trending discussion topics
4. Generate 4-6 actionable insights for newsletter writers
5. Identify main content themes (3-5 themes)
6. Calculate engagement metrics from the post data
7. Suggest 3-5 unique newsletter angles/hooks

Focus on insights that would be valuable for content creators and newsletter writers. Make the analysis newsletter-ready and actionable.`, keyword, sb.String())
}

// decodeJSONTree strips Markdown fences, slices the substring between the
// first "{" and the last "}", and decodes it as an untyped tree
func decodeJSONTree(raw string) (map[string]any, error) {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var tree map[string]any
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &tree); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model output: %w", err)
	}

	return tree, nil
}

// coerceAnalysis turns an untyped model output tree into a fully-typed,
// bounded analysis. Absent or mis-shaped fields get neutral defaults, capped
// arrays are truncated, and engagement metrics are always recomputed from the
// posts rather than trusted from the model.
func coerceAnalysis(tree map[string]any, posts []models.Post) *models.AnalysisResult {
	result := &models.AnalysisResult{
		TopKeywords:       coerceKeywords(tree["top_keywords"]),
		Sentiment:         coerceSentiment(tree["sentiment"]),
		TrendingTopics:    coerceTopics(tree["trending_topics"]),
		KeyInsights:       coerceStrings(tree["key_insights"], maxInsights),
		ContentThemes:     coerceStrings(tree["content_themes"], maxThemes),
		EngagementMetrics: computeEngagement(posts),
		NewsletterAngles:  coerceStrings(tree["newsletter_angles"], maxAngles),
	}
	return result
}

func coerceKeywords(v any) []models.KeywordInsight {
	items, ok := v.([]any)
	if !ok {
		return []models.KeywordInsight{}
	}

	keywords := make([]models.KeywordInsight, 0, len(items))
	for _, item := range items {
		if len(keywords) >= maxKeywords {
			break
		}
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		keyword := asString(m["keyword"])
		if keyword == "" {
			continue
		}
		mentions := int(asFloat(m["mentions"]))
		if mentions < 0 {
			mentions = 0
		}
		keywords = append(keywords, models.KeywordInsight{
			Keyword:        keyword,
			RelevanceScore: clamp(asFloat(m["relevance_score"]), 0, 100),
			Mentions:       mentions,
			Context:        coerceStrings(m["context"], maxInsights),
		})
	}

	return keywords
}

func coerceSentiment(v any) models.SentimentAnalysis {
	neutral := models.SentimentAnalysis{
		OverallSentiment: "neutral",
		PolarityScore:    0,
		Confidence:       0.5,
		EmotionalTone:    "mixed",
	}

	m, ok := v.(map[string]any)
	if !ok {
		return neutral
	}

	overall := asString(m["overall_sentiment"])
	switch overall {
	case "positive", "negative", "neutral":
	default:
		overall = "neutral"
	}

	tone := asString(m["emotional_tone"])
	if tone == "" {
		tone = "mixed"
	}

	return models.SentimentAnalysis{
		OverallSentiment: overall,
		PolarityScore:    clamp(asFloat(m["polarity_score"]), -1, 1),
		Confidence:       clamp(asFloat(m["confidence"]), 0, 1),
		EmotionalTone:    tone,
	}
}

func coerceTopics(v any) []models.TrendingTopic {
	items, ok := v.([]any)
	if !ok {
		return []models.TrendingTopic{}
	}

	topics := make([]models.TrendingTopic, 0, len(items))
	for _, item := range items {
		if len(topics) >= maxTopics {
			break
		}
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		topic := asString(m["topic"])
		if topic == "" {
			continue
		}
		topics = append(topics, models.TrendingTopic{
			Topic:            topic,
			TrendScore:       clamp(asFloat(m["trend_score"]), 0, 100),
			DiscussionPoints: coerceStrings(m["discussion_points"], maxInsights),
			Relevance:        asString(m["relevance"]),
		})
	}

	return topics
}

func coerceStrings(v any, limit int) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if len(out) >= limit {
			break
		}
		s := asString(item)
		if s == "" {
			continue
		}
		out = append(out, s)
	}

	return out
}

// computeEngagement derives the engagement metrics deterministically from the
// candidate set: average score rounded to nearest integer, summed comment
// count, and a combined rate rounded to two decimals
func computeEngagement(posts []models.Post) models.EngagementMetrics {
	if len(posts) == 0 {
		return models.EngagementMetrics{}
	}

	totalScore := 0
	totalComments := 0
	for _, post := range posts {
		totalScore += post.Score
		totalComments += post.NumComments
	}

	n := float64(len(posts))
	return models.EngagementMetrics{
		AvgScore:       int(math.Round(float64(totalScore) / n)),
		TotalComments:  totalComments,
		EngagementRate: math.Round(float64(totalScore+totalComments)/n*100) / 100,
	}
}

// fallbackAnalysis synthesizes a valid analysis purely from the candidate set
// and keyword when the model call fails or its output is unusable
func fallbackAnalysis(posts []models.Post, keyword string) *models.AnalysisResult {
	metrics := computeEngagement(posts)

	return &models.AnalysisResult{
		TopKeywords: []models.KeywordInsight{
			{
				Keyword:        keyword,
				RelevanceScore: 100,
				Mentions:       len(posts),
				Context:        []string{"Primary search term"},
			},
		},
		Sentiment: models.SentimentAnalysis{
			OverallSentiment: "neutral",
			PolarityScore:    0,
			Confidence:       0.7,
			EmotionalTone:    "mixed discussion",
		},
		TrendingTopics: []models.TrendingTopic{
			{
				Topic:            fmt.Sprintf("%s discussions", keyword),
				TrendScore:       80,
				DiscussionPoints: []string{"General interest"},
				Relevance:        "Main topic",
			},
		},
		KeyInsights: []string{
			fmt.Sprintf("Found %d relevant discussions about %s", len(posts), keyword),
			fmt.Sprintf("Average engagement: %d upvotes per post", metrics.AvgScore),
			"Community shows active interest in this topic",
		},
		ContentThemes:     []string{"General discussion", "Community interest"},
		EngagementMetrics: metrics,
		NewsletterAngles: []string{
			fmt.Sprintf("What Reddit thinks about %s", keyword),
			fmt.Sprintf("Community insights on %s", keyword),
			fmt.Sprintf("Latest %s discussions", keyword),
		},
	}
}

func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength] + "..."
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
