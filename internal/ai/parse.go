package ai

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// parseAnalysis defensively decodes the analysis text returned by the
// model. The endpoint is asked for raw JSON but may wrap it in markdown
// code fences or return freeform text; any unparseable variant falls
// back to placeholder values. A category outside the vocabulary is
// replaced by the first vocabulary entry, never passed through.
func parseAnalysis(text string, vocabulary []string) Analysis {
	candidates := []string{strings.TrimSpace(text)}
	candidates = append(candidates, fencedBlocks([]byte(text))...)

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		var analysis Analysis
		if err := json.Unmarshal([]byte(candidate), &analysis); err != nil {
			continue
		}
		return sanitizeAnalysis(analysis, vocabulary)
	}

	return fallbackAnalysis(vocabulary)
}

// fencedBlocks extracts the contents of fenced code blocks from
// markdown-wrapped model output.
func fencedBlocks(source []byte) []string {
	doc := goldmark.New().Parser().Parse(gmtext.NewReader(source))

	var blocks []string
	_ = gmast.Walk(doc, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		fence, ok := n.(*gmast.FencedCodeBlock)
		if !ok {
			return gmast.WalkContinue, nil
		}

		var buf bytes.Buffer
		lines := fence.Lines()
		for i := 0; i < lines.Len(); i++ {
			segment := lines.At(i)
			buf.Write(segment.Value(source))
		}
		if text := strings.TrimSpace(buf.String()); text != "" {
			blocks = append(blocks, text)
		}
		return gmast.WalkContinue, nil
	})

	return blocks
}

func sanitizeAnalysis(analysis Analysis, vocabulary []string) Analysis {
	if strings.TrimSpace(analysis.NameTag) == "" {
		analysis.NameTag = FallbackNameTag
	}
	if !inVocabulary(analysis.Category, vocabulary) {
		analysis.Category = vocabulary[0]
	}
	return analysis
}

func inVocabulary(category string, vocabulary []string) bool {
	for _, entry := range vocabulary {
		if category == entry {
			return true
		}
	}
	return false
}
