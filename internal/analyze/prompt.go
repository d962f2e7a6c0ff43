package analyze

import (
	"fmt"

	"github.com/sells-group/thread-intel/internal/model"
)

const responseShape = `Return a JSON object with this structure:
{
  "problem_statement": "The problem or topic discussed",
  "key_participants": ["participant names"],
  "timeline_summary": "What happened in the thread, in order",
  "resolution_status": "e.g. 'Resolved', 'In Progress', 'Pending', 'Unresolved'",
  "customer_sentiment": "One of 'Very Positive', 'Positive', 'Neutral', 'Negative', 'Very Negative'",
  "sentiment_score": integer matching the sentiment (-2 very negative, -1 negative, 0 neutral, 1 positive, 2 very positive),
  "next_steps": [
    {"text": "Action item", "owner": "Name or email of the person responsible, or null", "due_date": "YYYY-MM-DD or null"}
  ],
  "feature_requests": [
    {
      "title": "Short generic name for the feature, e.g. 'Bulk User Editing'",
      "customer_description": "1-2 sentences on what the customer is asking for",
      "use_case": "The problem the customer is trying to solve",
      "urgency": "One of 'Low', 'Medium', 'High'",
      "urgency_signals": "Quote or paraphrase of the wording that signals priority",
      "customer_impact": "Who is affected and how, in one sentence"
    }
  ]
}`

const sentimentGuide = `Sentiment scale:
- "Very Positive" (2): enthusiastic, explicit praise, plans to expand
- "Positive" (1): satisfied, minor issues resolved, optimistic
- "Neutral" (0): factual, no complaints and no praise
- "Negative" (-1): frustrated or confused, blockers, unhappy with a feature or price
- "Very Negative" (-2): angry, threatening to churn, several major issues

The customer is every participant who is not the CSM.`

const fullInstructions = `You are an experienced Customer Success Manager (CSM) analyst. Read the email thread and produce a structured summary.

` + responseShape + `

Feature requests: look for requests for new functionality, suggested improvements, reported limitations that imply a missing capability, and questions about capabilities that do not exist yet. Rate urgency High when it blocks work or is time-sensitive, Medium when important but not blocking, Low for nice-to-have items. Keep titles and descriptions generic enough that similar requests from different customers can be grouped. Return [] when there are none.

Next steps: include only action items explicitly stated in the thread. Never invent or infer them. Use null for a missing owner or due date. Return [] when there are none.

` + sentimentGuide

const incrementalInstructions = `You are a CSM analyst updating the analysis of an ongoing thread.

Summary so far: '%s'.

New messages: '%s'.

1. Rewrite the summary so it covers the whole conversation, merging the summary so far with the new messages.
2. Extract ONLY NEW next steps and feature requests that appear in the new messages. Do not repeat anything already covered by the summary so far. Return [] when there is nothing new.

` + responseShape + `

Next steps: include only action items explicitly stated in the new messages. Never invent or infer them.

` + sentimentGuide

const noPreviousSummary = "No previous summary"

// buildPrompt returns the system instructions and the user message for mode.
func buildPrompt(mode model.AnalysisMode, oldSummary, transcript string) (system, user string) {
	if mode == model.ModeIncremental {
		if oldSummary == "" {
			oldSummary = noPreviousSummary
		}
		system = fmt.Sprintf(incrementalInstructions, oldSummary, transcript)
	} else {
		system = fullInstructions
	}
	return system, "Email Thread:\n\n" + transcript + "\n\n"
}
