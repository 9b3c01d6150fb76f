// Package dialogue owns the questioning stage: the deterministic question
// planner and the adaptive follow-up decision engine.
package dialogue

import (
	"fmt"

	"github.com/spigell/interviewd/internal/interview"
)

// primaryTemplates phrase the opening question for a topic. Selection is by
// topic position, so the same session always produces the same questions.
var primaryTemplates = []string{
	"Let's talk about %s. Walk me through the most challenging work you have done in this area and the decisions you made along the way.",
	"I'd like to dig into %s. Describe a concrete situation where you applied it, what problems came up, and how you solved them.",
	"Tell me about your experience with %s. What did you build, and what would you do differently today?",
}

// PrimaryQuestion expands the topic at the given position into its primary
// question. No model call is involved; the planner is fully deterministic and
// preserves the extractor's priority order.
func PrimaryQuestion(topic interview.Topic, position int) string {
	if position < 0 {
		position = 0
	}
	template := primaryTemplates[position%len(primaryTemplates)]
	return fmt.Sprintf(template, topic.Name)
}
