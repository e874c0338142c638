package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSkills(t *testing.T) {
	got := NormalizeSkills([]string{" Go ", "React", "", "Go", "React", "Postgres"})
	assert.Equal(t, []string{"Go", "React", "Postgres"}, got)
	assert.Empty(t, NormalizeSkills(nil))
	assert.NotNil(t, NormalizeSkills(nil))
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole("Admin")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	_, ok = ParseRole("superuser")
	assert.False(t, ok)
}

func TestTriageResultComplete(t *testing.T) {
	full := TriageResult{
		Summary:       "s",
		Priority:      TicketPriorityHigh,
		HelpfulNotes:  "n",
		RelatedSkills: []string{"Go"},
	}
	assert.True(t, full.Complete())

	missing := full
	missing.Priority = "urgent"
	assert.False(t, missing.Complete())

	noSkills := full
	noSkills.RelatedSkills = nil
	assert.False(t, noSkills.Complete())
}
