package agent

import (
	"fmt"
	"strings"

	"deputy/internal/memory"
)

const systemPrompt = `You are a careful assistant that completes tasks using the available tools.

On every turn you must do exactly one of:
- call one tool to make progress,
- call propose_plan to lay out or revise the steps for a multi-step request,
- or reply with plain text to give the user your final answer.

Tool calls with side effects may require human approval; a denied or expired
request appears as a failed observation. React to failed observations instead
of repeating the same call. When the task is complete, reply with text.`

// correctiveNote is appended to the prompt after a malformed model
// decision, before the single retry.
const correctiveNote = "Your previous output could not be interpreted. Reply with exactly one tool call, one propose_plan call, or plain final-answer text."

// buildPrompt assembles the decision prompt from the user input, retrieved
// memory, the plan state, and the observations so far.
func buildPrompt(input string, records []*memory.Record, plan *Plan, observations []string, corrective bool) string {
	var b strings.Builder

	if len(records) > 0 {
		b.WriteString("Relevant memory:\n")
		for _, rec := range records {
			b.WriteString(fmt.Sprintf("- [%s/%s] %s\n", rec.Kind, rec.Role, rec.Content))
		}
		b.WriteString("\n")
	}

	if summary := plan.Summary(); summary != "" {
		b.WriteString(summary)
		b.WriteString("\n")
	}

	if len(observations) > 0 {
		b.WriteString("Observations this turn, oldest first:\n")
		for _, obs := range observations {
			b.WriteString("- " + obs + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("User request: " + input)

	if corrective {
		b.WriteString("\n\n" + correctiveNote)
	}

	return b.String()
}
