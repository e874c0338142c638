package triage

import (
	"strings"

	"github.com/spec-kit/triage-desk/internal/domain"
)

const (
	defaultHelpfulNotes = "Automated analysis was unavailable for this ticket. It needs manual review by a moderator."
	defaultSkill        = "General Support"
)

// Fallback is the complete default result for a ticket.
func Fallback(title string) domain.TriageResult {
	return domain.TriageResult{
		Summary:       "Support ticket: " + strings.TrimSpace(title),
		Priority:      domain.TicketPriorityMedium,
		HelpfulNotes:  defaultHelpfulNotes,
		RelatedSkills: []string{defaultSkill},
	}
}

// BuildResult turns raw model text into a complete result. Fields that are
// present and well typed are kept; everything else takes its default.
// The boolean reports whether any default was used.
func BuildResult(title, text string) (domain.TriageResult, bool) {
	result := Fallback(title)
	parsed, ok := Extract(text)
	if !ok {
		return result, true
	}

	usedDefault := false
	if summary, ok := nonEmptyString(parsed["summary"]); ok {
		result.Summary = summary
	} else {
		usedDefault = true
	}

	if raw, ok := parsed["priority"].(string); ok {
		if priority, valid := domain.ParsePriority(raw); valid {
			result.Priority = priority
		} else {
			usedDefault = true
		}
	} else {
		usedDefault = true
	}

	if notes, ok := nonEmptyString(parsed["helpfulNotes"]); ok {
		result.HelpfulNotes = notes
	} else {
		usedDefault = true
	}

	if skills, ok := stringList(parsed["relatedSkills"]); ok {
		result.RelatedSkills = skills
	} else {
		usedDefault = true
	}

	return result, usedDefault
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// stringList accepts a JSON array made only of strings with at least one non-blank entry.
func stringList(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	raw := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		raw = append(raw, s)
	}
	skills := domain.NormalizeSkills(raw)
	return skills, len(skills) > 0
}
