package analyze

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// result is the JSON object the model is asked to return.
type result struct {
	ProblemStatement  string         `json:"problem_statement"`
	KeyParticipants   []string       `json:"key_participants"`
	TimelineSummary   string         `json:"timeline_summary"`
	ResolutionStatus  string         `json:"resolution_status"`
	CustomerSentiment string         `json:"customer_sentiment"`
	SentimentScore    *float64       `json:"sentiment_score"`
	NextSteps         []nextStepItem `json:"next_steps"`
	FeatureRequests   []featureItem  `json:"feature_requests"`
}

type nextStepItem struct {
	Text    string  `json:"text"`
	Owner   *string `json:"owner"`
	DueDate *string `json:"due_date"`
}

type featureItem struct {
	Title               string `json:"title"`
	CustomerDescription string `json:"customer_description"`
	UseCase             string `json:"use_case"`
	Urgency             string `json:"urgency"`
	UrgencySignals      string `json:"urgency_signals"`
	CustomerImpact      string `json:"customer_impact"`
}

// cleanJSON strips markdown code fences and any prose around the outermost
// JSON object.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func parseResult(raw string) (*result, error) {
	body := cleanJSON(raw)
	if body == "" {
		return nil, eris.New("analyze: empty model response")
	}
	var r result
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, eris.Wrap(err, "analyze: parse model response")
	}
	return &r, nil
}

// sentimentScores maps each customer_sentiment label to its score.
var sentimentScores = map[string]int{
	"very positive": 2,
	"positive":      1,
	"neutral":       0,
	"negative":      -1,
	"very negative": -2,
}

// score validates sentiment_score. A missing score is allowed; a score that
// is not an integer in -2..2, or that disagrees with a recognised
// customer_sentiment label, is an error.
func (r *result) score() (*int, error) {
	if r.SentimentScore == nil {
		return nil, nil
	}
	f := *r.SentimentScore
	if f != math.Trunc(f) || f < -2 || f > 2 {
		return nil, eris.Errorf("analyze: sentiment_score %v outside -2..2", f)
	}
	v := int(f)
	label := strings.ToLower(strings.TrimSpace(r.CustomerSentiment))
	if want, ok := sentimentScores[label]; ok && want != v {
		return nil, eris.Errorf("analyze: sentiment_score %d does not match customer_sentiment %q (%d)", v, r.CustomerSentiment, want)
	}
	return &v, nil
}

// summary prefers the timeline summary, then the problem statement.
func (r *result) summary() string {
	if r.TimelineSummary != "" {
		return r.TimelineSummary
	}
	return r.ProblemStatement
}
