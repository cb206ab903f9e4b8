package feed

import (
	"fmt"
	"strings"
	"unicode"

	readability "github.com/go-shiori/go-readability"
)

// ExtractedContent is the readable article body pulled from a post's
// linked page, used for on-demand post content refresh.
type ExtractedContent struct {
	Content   string
	WordCount int
	Direction string
}

type ContentExtractor struct{}

func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{}
}

func (e *ContentExtractor) Run(data []byte) (*ExtractedContent, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(strings.NewReader(string(data)), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to extract content: %w", err)
	}

	if article.Content == "" {
		return nil, fmt.Errorf("no content extracted from HTML data")
	}

	return &ExtractedContent{
		Content:   article.Content,
		WordCount: len(strings.Fields(article.TextContent)),
		Direction: readingDirection(article.TextContent),
	}, nil
}

// readingDirection reports "rtl" when the text is dominated by
// right-to-left script, "ltr" otherwise.
func readingDirection(text string) string {
	var rtl, ltr int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Arabic, r), unicode.Is(unicode.Hebrew, r), unicode.Is(unicode.Syriac, r):
			rtl++
		case unicode.IsLetter(r):
			ltr++
		}
	}
	if rtl > ltr {
		return "rtl"
	}
	return "ltr"
}
