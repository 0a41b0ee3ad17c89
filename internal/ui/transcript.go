package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/abelbrown/roundup/internal/edit"
)

// exchange is one command and the session's answer.
type exchange struct {
	command string
	resp    edit.Response
}

// renderTranscript renders the most recent exchanges so that the last
// reply is always visible within height lines.
func renderTranscript(entries []exchange, width, height int) string {
	if height <= 0 {
		return ""
	}
	var lines []string
	for _, e := range entries {
		if e.command != "" {
			for _, l := range wrap("> "+e.command, width) {
				lines = append(lines, CommandEcho.Render(l))
			}
		}
		style := ReplyText
		if e.resp.Outcome == edit.OutcomeApplied || e.resp.Outcome == edit.OutcomeUndone {
			style = ReplyApplied
		}
		for _, l := range wrap(e.resp.Message, width) {
			lines = append(lines, style.Render(l))
		}
		for _, w := range e.resp.Warnings {
			for _, l := range wrap("! "+w, width) {
				lines = append(lines, WarningStyle.Render(l))
			}
		}
	}
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	return strings.Join(lines, "\n")
}

// styleDraft highlights section headings in a draft summary and truncates
// long headlines to the pane width.
func styleDraft(summary string, width int) string {
	if summary == "" {
		return ""
	}
	lines := strings.Split(summary, "\n")
	for i, l := range lines {
		if width > 0 && runewidth.StringWidth(l) > width {
			l = runewidth.Truncate(l, width, "…")
		}
		if l != "" && !strings.HasPrefix(l, " ") {
			l = SectionHeader.Render(l)
		}
		lines[i] = l
	}
	return strings.Join(lines, "\n")
}

// wrap breaks s into lines no wider than width, keeping each paragraph's
// leading indent. Words wider than a line are truncated.
func wrap(s string, width int) []string {
	if width <= 0 {
		return strings.Split(s, "\n")
	}
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		indent := para[:len(para)-len(strings.TrimLeft(para, " "))]
		if len(indent) >= width/2 {
			indent = ""
		}
		indentW := runewidth.StringWidth(indent)

		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line, lineW := indent, indentW
		for _, w := range words {
			ww := runewidth.StringWidth(w)
			if ww > width-indentW {
				w = runewidth.Truncate(w, width-indentW, "…")
				ww = runewidth.StringWidth(w)
			}
			switch {
			case lineW == indentW:
				line += w
				lineW += ww
			case lineW+1+ww <= width:
				line += " " + w
				lineW += 1 + ww
			default:
				lines = append(lines, line)
				line, lineW = indent+w, indentW+ww
			}
		}
		lines = append(lines, line)
	}
	return lines
}
