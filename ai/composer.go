package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/topicscout/topicscout/models"
)

// GenerateNewsletterDraft turns an analysis into newsletter prose. It never
// fails: any model error substitutes the deterministic templated draft.
func (a *Analyzer) GenerateNewsletterDraft(ctx context.Context, keyword string, analysis *models.AnalysisResult) string {
	genCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	raw, err := a.gen.generate(genCtx, buildNewsletterPrompt(keyword, analysis))
	if err != nil {
		a.log.WithError(err).WithField("keyword", keyword).Warn("Newsletter generation failed, using fallback draft")
		return fallbackNewsletter(keyword, analysis)
	}

	return strings.TrimSpace(raw)
}

func buildNewsletterPrompt(keyword string, analysis *models.AnalysisResult) string {
	keywords := make([]string, 0, 8)
	for _, k := range analysis.TopKeywords {
		if len(keywords) >= 8 {
			break
		}
		keywords = append(keywords, k.Keyword)
	}

	trends := make([]string, 0, 5)
	for _, t := range analysis.TrendingTopics {
		if len(trends) >= 5 {
			break
		}
		trends = append(trends, t.Topic)
	}

	return fmt.Sprintf(`Create a professional newsletter draft about "%s" using this analysis data:

ANALYSIS DATA:
- Top Keywords: %s
- Overall Sentiment: %s (%.2f)
- Key Trends: %s
- Main Insights: %s
- Content Themes: %s
- Newsletter Angles: %s

NEWSLETTER REQUIREMENTS:
- Length: 400-500 words
- Professional, engaging tone
- Newsletter-ready format with clear sections
- Include actionable insights
- Hook readers with compelling introduction
- End with clear call-to-action

FORMAT THE NEWSLETTER WITH:
1. **Compelling Headline** (attention-grabbing)
2. **Hook Introduction** (2-3 sentences that draw readers in)
3. **Key Insights Section** (3-4 bullet points with main findings)
4. **Trending Discussions** (what people are talking about)
5. **Why This Matters** (relevance and implications)
6. **What's Next** (future outlook or actionable steps)
7. **Call to Action** (engage your audience)

Make it newsletter-ready content that a content creator could send to their subscribers immediately. Use markdown formatting for better readability.`,
		keyword,
		strings.Join(keywords, ", "),
		analysis.Sentiment.OverallSentiment,
		analysis.Sentiment.PolarityScore,
		strings.Join(trends, ", "),
		strings.Join(analysis.KeyInsights, " • "),
		strings.Join(analysis.ContentThemes, ", "),
		strings.Join(analysis.NewsletterAngles, " • "),
	)
}

// fallbackNewsletter builds a fixed multi-section Markdown draft from the
// already-computed analysis fields
func fallbackNewsletter(keyword string, analysis *models.AnalysisResult) string {
	insights := make([]string, 0, len(analysis.KeyInsights))
	for _, insight := range analysis.KeyInsights {
		insights = append(insights, "• "+insight)
	}

	return fmt.Sprintf(`# What's Trending: %s

## The Community Speaks

Recent discussions about **%s** show %s sentiment across online communities, with %d comments and significant engagement.

## Key Insights

%s

## What This Means

The conversation around %s reveals important trends worth watching. Community engagement metrics show %d average upvotes per discussion, indicating strong interest in this topic.

## Looking Ahead

Stay tuned for more insights as this topic continues to evolve in the community discussions.

---

*Want more insights like this? Stay connected for the latest trends and analysis.*`,
		keyword,
		keyword,
		analysis.Sentiment.OverallSentiment,
		analysis.EngagementMetrics.TotalComments,
		strings.Join(insights, "\n"),
		keyword,
		analysis.EngagementMetrics.AvgScore,
	)
}
