// Package summary produces session summaries and resume prompts,
// preferring a generative backend and falling back to deterministic
// templates when none is reachable.
package summary

import (
	"context"
	"fmt"
	"strings"
)

// Prompt bounds keep generation reproducible in spirit: low
// temperature, capped output, capped activity log.
const (
	maxActivityEntries = 20
	summaryMaxTokens   = 500
	resumeMaxTokens    = 300
	fallbackNoteCount  = 3
	fallbackSummaryCut = 200
)

// Backend is a generative text capability. Availability is probed on
// every call; it is a live capability check, not a cached property.
type Backend interface {
	Available(ctx context.Context) bool
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Engine turns session context into natural-language summaries. A nil
// backend always takes the deterministic path.
type Engine struct {
	backend Backend
}

// NewEngine creates an Engine over the given backend.
func NewEngine(backend Backend) *Engine {
	return &Engine{backend: backend}
}

// SummarizeSession produces a catch-up summary for a session. It never
// fails: backend unavailability or generation errors degrade to the
// deterministic fallback.
func (e *Engine) SummarizeSession(ctx context.Context, gitText string, notes, captures []string, projectName string) string {
	if e.backend == nil || !e.backend.Available(ctx) {
		return FallbackSummary(gitText, notes, projectName)
	}

	out, err := e.backend.Generate(ctx, sessionPrompt(gitText, notes, captures, projectName), summaryMaxTokens)
	if err != nil || strings.TrimSpace(out) == "" {
		return FallbackSummary(gitText, notes, projectName)
	}
	return strings.TrimSpace(out)
}

// ResumePrompt produces a short "where you left off" briefing for a
// developer returning to a project after timeAway.
func (e *Engine) ResumePrompt(ctx context.Context, lastSummary string, recentNotes []string, gitText, timeAway string) string {
	if e.backend == nil || !e.backend.Available(ctx) {
		return FallbackResume(lastSummary, recentNotes, timeAway)
	}

	out, err := e.backend.Generate(ctx, resumePrompt(lastSummary, recentNotes, gitText, timeAway), resumeMaxTokens)
	if err != nil || strings.TrimSpace(out) == "" {
		return FallbackResume(lastSummary, recentNotes, timeAway)
	}
	return strings.TrimSpace(out)
}

func sessionPrompt(gitText string, notes, captures []string, projectName string) string {
	var sections []string
	sections = append(sections, fmt.Sprintf("Project: %s\n", projectName))

	if gitText != "" {
		sections = append(sections, fmt.Sprintf("Git Activity:\n%s\n", gitText))
	}
	if len(notes) > 0 {
		var b strings.Builder
		b.WriteString("Developer Notes:\n")
		for _, n := range notes {
			b.WriteString("- " + n + "\n")
		}
		sections = append(sections, b.String())
	}
	if len(captures) > 0 {
		capped := captures
		if len(capped) > maxActivityEntries {
			capped = capped[:maxActivityEntries]
		}
		sections = append(sections, "Activity Log:\n"+strings.Join(capped, "\n")+"\n")
	}

	return fmt.Sprintf(`You are a helpful assistant that summarizes developer work sessions.

Given the following context from a coding session, provide a brief summary that will help the developer quickly resume their work later.

Focus on:
1. What was being worked on (specific features, bugs, files)
2. What was accomplished
3. What is still incomplete or blocked
4. Suggested next steps

Keep the summary concise (3-5 sentences) and actionable.

Context:
%s

Summary:`, strings.Join(sections, "\n"))
}

func resumePrompt(lastSummary string, recentNotes []string, gitText, timeAway string) string {
	notesBlock := "None"
	if len(recentNotes) > 0 {
		var lines []string
		for _, n := range recentNotes {
			lines = append(lines, "- "+n)
		}
		notesBlock = strings.Join(lines, "\n")
	}

	return fmt.Sprintf(`You are helping a developer resume work on a project after being away for %s.

Last session summary:
%s

Recent notes:
%s

Current git state:
%s

Provide a brief, actionable summary to help them get back up to speed quickly. Focus on:
1. Where they left off
2. What needs attention
3. Immediate next step

Keep it to 2-3 sentences.`, timeAway, lastSummary, notesBlock, gitText)
}

// FallbackSummary is the deterministic, template-based summary: same
// inputs always produce byte-identical output.
func FallbackSummary(gitText string, notes []string, projectName string) string {
	var b strings.Builder
	b.WriteString("Session on " + projectName)

	if len(notes) > 0 {
		capped := notes
		if len(capped) > fallbackNoteCount {
			capped = capped[:fallbackNoteCount]
		}
		b.WriteString("\nNotes: " + strings.Join(capped, "; "))
	}
	if strings.Contains(strings.ToLower(gitText), "commits") {
		b.WriteString("\nGit activity recorded.")
	}
	return b.String()
}

// FallbackResume is the deterministic resume briefing.
func FallbackResume(lastSummary string, recentNotes []string, timeAway string) string {
	var b strings.Builder
	b.WriteString("You've been away for " + timeAway + ".")

	if lastSummary != "" {
		cut := lastSummary
		// Cut on a rune boundary so the briefing stays valid UTF-8.
		if runes := []rune(cut); len(runes) > fallbackSummaryCut {
			cut = string(runes[:fallbackSummaryCut])
		}
		b.WriteString("\nLast session: " + cut)
	}
	if len(recentNotes) > 0 {
		b.WriteString("\nRecent notes: " + recentNotes[0])
	}
	return b.String()
}
