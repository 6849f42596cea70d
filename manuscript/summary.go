package manuscript

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New()

// StripMarkup converts markdown-ish outline into single line of plain text.
func StripMarkup(src string) string {
	source := []byte(src)
	doc := md.Parser().Parse(text.NewReader(source))

	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n.Type() == ast.TypeBlock {
			sb.WriteByte(' ')
		}
		switch node := n.(type) {
		case *ast.HTMLBlock, *ast.RawHTML, *ast.ThematicBreak:
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := node.Lines()
			for i := range lines.Len() {
				seg := lines.At(i)
				sb.Write(seg.Value(source))
				sb.WriteByte(' ')
			}
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			sb.Write(node.Label(source))
			return ast.WalkSkipChildren, nil
		case *ast.String:
			sb.Write(node.Value)
		case *ast.Text:
			sb.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}

// summaryOf returns cleaned summary or nil when nothing is left.
func summaryOf(outline string) *string {
	if len(strings.TrimSpace(outline)) == 0 {
		return nil
	}
	s := StripMarkup(outline)
	if len(s) == 0 {
		return nil
	}
	return &s
}
