// Package export renders summaries as Word documents.
package export

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
	"github.com/mossy-p/castiq/internal/models"
)

const (
	fontName  = "Times New Roman"
	fontSize  = 12
	titleSize = 16
	headSize  = 14
)

var (
	reBullet = regexp.MustCompile(`^[\-\*•]\s+(.+)$`)
	reBold   = regexp.MustCompile(`\*\*(.+?)\*\*`)
)

// DefaultTitle is used when the caller gives none.
const DefaultTitle = "Call summary"

// SummaryToDocx writes res to path as a .docx file.
func SummaryToDocx(title string, res models.SummaryResult, path string) error {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}

	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	addRun(doc.AddParagraph(""), title, true, titleSize, "000000")

	addRun(doc.AddParagraph(""), "Summary", true, headSize, "000000")
	addBody(doc, res.Summary)

	if len(res.Chunks) > 1 {
		addRun(doc.AddParagraph(""), "Section summaries", true, headSize, "000000")
		for i, c := range res.Chunks {
			p := doc.AddParagraph("")
			addRun(p, fmt.Sprintf("Section %d: ", i+1), true, fontSize, "000000")
			addRun(p, strings.TrimSpace(c), false, fontSize, "000000")
		}
	}

	if res.Note != "" {
		addRun(doc.AddParagraph(""), res.Note, false, fontSize-1, "666666")
	}

	if err := doc.SaveTo(path); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// addBody writes one paragraph per non-empty line, turning list markers into bullets.
func addBody(doc *docx.RootDoc, text string) {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if m := reBullet.FindStringSubmatch(trimmed); m != nil {
			trimmed = "• " + m[1]
		}
		addRich(doc.AddParagraph(""), trimmed)
	}
}

// addRich renders **bold** spans.
func addRich(p *docx.Paragraph, text string) {
	parts := reBold.Split(text, -1)
	matches := reBold.FindAllStringSubmatch(text, -1)
	for i, part := range parts {
		if part != "" {
			addRun(p, part, false, fontSize, "000000")
		}
		if i < len(matches) {
			addRun(p, matches[i][1], true, fontSize, "000000")
		}
	}
}

func addRun(p *docx.Paragraph, text string, bold bool, size uint64, color string) {
	run := p.AddText(text).Font(fontName).Size(size).Color(color)
	if bold {
		run.Bold(true)
	}
}
