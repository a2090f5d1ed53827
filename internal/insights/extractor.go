package insights

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"prismatic/internal/queue"
	"prismatic/internal/services"
	"prismatic/internal/textutil"
)

const defaultMaxInsights = 10

const extractionPrompt = `You analyze a content transcript and extract the most
valuable standalone insights. Respond with JSON only, in the form:
{"insights":[{"category":"...","quote":"...","summary":"...","score":0.0}]}
Category is a short topic label. Quote is a verbatim excerpt supporting the
insight. Summary restates the insight in one or two sentences. Score is a
relevance value between 0 and 1. Extract at most %d insights.`

const draftingPrompt = `You turn an extracted insight into a ready-to-publish
%s post. Write in a direct professional voice, no hashtags unless they add
meaning, at most %d characters. Respond with JSON only, in the form:
{"content":"..."}`

// Extractor turns transcripts into scored insights and drafts platform posts
// from approved ones.
type Extractor struct {
	client      *Client
	maxInsights int
}

// NewExtractor builds an extractor over the completion client.
func NewExtractor(client *Client, maxInsights int) *Extractor {
	if maxInsights <= 0 {
		maxInsights = defaultMaxInsights
	}
	return &Extractor{client: client, maxInsights: maxInsights}
}

// Extract analyzes the transcript and returns scored insights ordered by
// descending score. The returned insights carry no IDs until stored.
func (e *Extractor) Extract(ctx context.Context, transcript string) ([]*queue.Insight, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, services.Wrap(services.ErrValidation, "insights", "extract", "transcript is empty", nil)
	}

	system := fmt.Sprintf(extractionPrompt, e.maxInsights)
	content, err := e.client.CompleteJSON(ctx, system, transcript)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "insights", "extract", "completion", err)
	}

	var payload struct {
		Insights []struct {
			Category string  `json:"category"`
			Quote    string  `json:"quote"`
			Summary  string  `json:"summary"`
			Score    float64 `json:"score"`
		} `json:"insights"`
	}
	if err := decodeModelJSON(content, &payload); err != nil {
		return nil, services.Wrap(services.ErrPlatform, "insights", "extract", "parse payload", err)
	}
	if len(payload.Insights) == 0 {
		return nil, services.Wrap(services.ErrPlatform, "insights", "extract", "model returned no insights", nil)
	}

	results := make([]*queue.Insight, 0, len(payload.Insights))
	for _, in := range payload.Insights {
		summary := strings.TrimSpace(in.Summary)
		if summary == "" {
			continue
		}
		score := in.Score
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		category := strings.TrimSpace(in.Category)
		if category != "" {
			// Model-supplied labels become stable lowercase tokens.
			category = textutil.SanitizeToken(category)
		}
		results = append(results, &queue.Insight{
			Status:   queue.InsightStatusPending,
			Category: category,
			Quote:    strings.TrimSpace(in.Quote),
			Summary:  summary,
			Score:    score,
		})
	}
	if len(results) == 0 {
		return nil, services.Wrap(services.ErrPlatform, "insights", "extract", "model returned no usable insights", nil)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > e.maxInsights {
		results = results[:e.maxInsights]
	}
	return results, nil
}

// Draft produces post content for one insight targeted at the platform,
// bounded by characterLimit.
func (e *Extractor) Draft(ctx context.Context, insight *queue.Insight, platform string, characterLimit int) (string, error) {
	if insight == nil || strings.TrimSpace(insight.Summary) == "" {
		return "", services.Wrap(services.ErrValidation, "insights", "draft", "insight has no summary", nil)
	}
	if characterLimit <= 0 {
		characterLimit = 3000
	}

	system := fmt.Sprintf(draftingPrompt, platform, characterLimit)
	var user strings.Builder
	fmt.Fprintf(&user, "Insight: %s\n", insight.Summary)
	if insight.Quote != "" {
		fmt.Fprintf(&user, "Supporting quote: %q\n", insight.Quote)
	}
	if insight.Category != "" {
		fmt.Fprintf(&user, "Topic: %s\n", insight.Category)
	}

	content, err := e.client.CompleteJSON(ctx, system, user.String())
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "insights", "draft", "completion", err)
	}

	var payload struct {
		Content string `json:"content"`
	}
	if err := decodeModelJSON(content, &payload); err != nil {
		return "", services.Wrap(services.ErrPlatform, "insights", "draft", "parse payload", err)
	}
	draft := strings.TrimSpace(payload.Content)
	if draft == "" {
		return "", services.Wrap(services.ErrPlatform, "insights", "draft", "model returned empty content", nil)
	}
	return draft, nil
}
