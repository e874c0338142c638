package triage

import (
	"fmt"

	"github.com/spec-kit/triage-desk/internal/domain"
)

const systemPrompt = `You are an expert assistant that processes technical support tickets.

Your job is to:
1. Summarize the issue.
2. Estimate its priority.
3. Provide helpful notes and resource links for human moderators.
4. List the technical skills required to resolve it.

Respond with only a raw JSON object. Do not use markdown, code fences or comments.`

const userPromptTemplate = `Analyze the following support ticket and return a JSON object with:

- summary: a short 1-2 sentence summary of the issue.
- priority: one of "low", "medium" or "high".
- helpfulNotes: a detailed technical explanation a moderator can use to solve the issue, with useful links if possible.
- relatedSkills: an array of skills required to solve the issue (e.g. ["React", "PostgreSQL"]).

Use exactly this shape:

{
"summary": "Short summary of the ticket",
"priority": "high",
"helpfulNotes": "Here are useful tips...",
"relatedSkills": ["React", "Node.js"]
}

---

Ticket information:

- Title: %s
- Description: %s`

// Prompt is a single chat exchange sent to the reasoning service.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt embeds the ticket into the fixed triage instructions.
func BuildPrompt(ticket domain.Ticket) Prompt {
	return Prompt{
		System: systemPrompt,
		User:   fmt.Sprintf(userPromptTemplate, ticket.Title, ticket.Description),
	}
}
