package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/vmtune/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestStyler_PlainForNonTerminals(t *testing.T) {
	s := NewStyler(&bytes.Buffer{})
	assert.Equal(t, "Conflicting", s.Status(domain.StatusConflicting))
	assert.Equal(t, "Applied", s.Outcome(domain.OutcomeApplied))
	assert.Equal(t, "-a\n+b\n", s.Diff("-a\n+b\n"))
}

func TestStyler_Colors(t *testing.T) {
	s := NewStylerProfile(termenv.TrueColor)

	colored := s.Status(domain.StatusSatisfied)
	assert.Contains(t, colored, "Satisfied")
	assert.Contains(t, colored, "\x1b[")

	diff := s.Diff("--- a\n+++ b\n@@ -1 +1 @@\n-x\n+y\n ctx\n")
	assert.Equal(t, 6, strings.Count(diff, "\n"), "line structure is kept")
	assert.True(t, strings.HasSuffix(diff, " ctx\n"), "context lines stay plain")
}

func TestNewRenderer(t *testing.T) {
	out, err := NewRenderer(80)("# Kinds\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	assert.NoError(t, err)
	assert.Contains(t, out, "Kinds")
}
