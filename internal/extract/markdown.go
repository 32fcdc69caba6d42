package extract

import (
	"context"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type markdownExtractor struct{}

func init() {
	md := &markdownExtractor{}
	Register(".md", md)
	Register(".markdown", md)
}

// Extract renders markdown down to plain text by walking the goldmark AST.
// The first level-1 heading becomes the document title.
func (e *markdownExtractor) Extract(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	md := goldmark.New()
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	meta := map[string]string{}
	blocks := make([]string, 0)
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			heading := strings.TrimSpace(string(n.Text(source)))
			if heading == "" {
				continue
			}
			if n.Level == 1 && meta["title"] == "" {
				meta["title"] = heading
			}
			blocks = append(blocks, heading)
		case *ast.FencedCodeBlock:
			var sb strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				sb.Write(line.Value(source))
			}
			code := strings.TrimSpace(sb.String())
			if code != "" {
				blocks = append(blocks, code)
			}
		default:
			txt := nodeText(node, source)
			if txt != "" {
				blocks = append(blocks, txt)
			}
		}
	}
	return &Result{Text: strings.Join(blocks, "\n\n"), Meta: meta}, nil
}

func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
