package tui

import (
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
)

// RenderMarkdown converts assistant markdown into styled terminal lines:
// headings, bullets, fenced code blocks with syntax highlighting, and
// word-wrapped prose.
func RenderMarkdown(text string, width int) []string {
	if width < 20 {
		width = 80
	}

	var out []string
	var codeBuf []string
	codeLang := ""
	inCode := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			if inCode {
				out = append(out, renderCodeBlock(codeLang, strings.Join(codeBuf, "\n"))...)
				codeBuf = nil
				inCode = false
			} else {
				inCode = true
				codeLang = strings.TrimPrefix(trimmed, "```")
			}
			continue
		}
		if inCode {
			codeBuf = append(codeBuf, line)
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "#"):
			out = append(out, HeadingStyle.Render(strings.TrimLeft(trimmed, "# ")))
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			body := trimmed[2:]
			for i, w := range wrap(body, width-4) {
				if i == 0 {
					out = append(out, "  "+BulletStyle.Render("•")+" "+renderInline(w))
				} else {
					out = append(out, "    "+renderInline(w))
				}
			}
		case trimmed == "":
			out = append(out, "")
		default:
			for _, w := range wrap(line, width) {
				out = append(out, renderInline(w))
			}
		}
	}
	// Unterminated fence at stream end: show what we have.
	if inCode && len(codeBuf) > 0 {
		out = append(out, renderCodeBlock(codeLang, strings.Join(codeBuf, "\n"))...)
	}
	return out
}

// renderCodeBlock syntax-highlights a fenced block, falling back to
// plaintext when the language is unknown.
func renderCodeBlock(lang, code string) []string {
	if lang == "" {
		lang = "plaintext"
	}
	var highlighted strings.Builder
	if err := quick.Highlight(&highlighted, code, lang, "terminal256", "dracula"); err != nil {
		if err := quick.Highlight(&highlighted, code, "plaintext", "terminal256", "dracula"); err != nil {
			highlighted.Reset()
			highlighted.WriteString(code)
		}
	}

	lines := strings.Split(strings.TrimRight(highlighted.String(), "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, CodeGutterStyle.Render("│ ")+l)
	}
	return out
}

// renderInline styles `inline code` spans.
func renderInline(line string) string {
	parts := strings.Split(line, "`")
	if len(parts) < 3 {
		return line
	}
	var b strings.Builder
	for i, p := range parts {
		switch {
		case i%2 == 1 && i != len(parts)-1:
			b.WriteString(InlineCodeStyle.Render(p))
		case i%2 == 1:
			// Unmatched trailing backtick.
			b.WriteString("`" + p)
		default:
			b.WriteString(p)
		}
	}
	return b.String()
}

// wrap word-wraps text to the given width.
func wrap(text string, width int) []string {
	if width <= 0 || len(text) <= width {
		return []string{text}
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	cur := words[0]
	for _, w := range words[1:] {
		if len(cur)+1+len(w) > width {
			lines = append(lines, cur)
			cur = w
			continue
		}
		cur += " " + w
	}
	return append(lines, cur)
}
