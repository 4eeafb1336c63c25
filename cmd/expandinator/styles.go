package main

import (
	"fmt"
	"strings"

	"expandinator/internal/build"
	"expandinator/internal/rewrite"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
)

// renderModule lists the derive exports of one rewritten module.
func renderModule(title string, reg rewrite.Registry) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString(mutedStyle.Render(fmt.Sprintf(" (%d exports)", reg.Len())))
	b.WriteString("\n")
	if reg.Len() == 0 {
		b.WriteString("  " + mutedStyle.Render("no derive exports") + "\n")
		return b.String()
	}
	for _, key := range reg.Keys() {
		fmt.Fprintf(&b, "  %s -> %s\n", keyStyle.Render(key), reg[key])
	}
	return b.String()
}

// renderReport summarizes a build run.
func renderReport(r *build.Report) string {
	var b strings.Builder
	for _, m := range r.Modules {
		b.WriteString(renderModule(fmt.Sprintf("%s (%s)", m.Target, m.Version), m.Registry))
	}
	fmt.Fprintf(&b, "%s %d modules in %s, lookup module %s\n",
		okStyle.Render("built"), len(r.Modules), r.Duration.Round(1e6), r.TargetsPath)
	b.WriteString(mutedStyle.Render("run "+r.RunID) + "\n")
	return b.String()
}
