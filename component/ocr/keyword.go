package ocr

import (
	"bufio"
	"strings"
	"unicode"
)

// KeywordMatch is one keyword occurrence inside a text.
type KeywordMatch struct {
	// Keyword as registered, before any mapping
	Keyword string
	// CleanName is the value associated with the keyword at registration
	CleanName string
	Start     int
	End       int
}

// KeywordProcessor finds registered keywords in a text on word boundaries,
// case-insensitively. Multi-word keywords are supported.
type KeywordProcessor struct {
	keywords map[string]string
}

func NewKeywordProcessor() *KeywordProcessor {
	return &KeywordProcessor{keywords: map[string]string{}}
}

// AddKeyword registers keyword; matches map to cleanName. An empty cleanName
// maps the keyword to itself.
func (p *KeywordProcessor) AddKeyword(keyword, cleanName string) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return
	}
	if cleanName == "" {
		cleanName = keyword
	}
	p.keywords[keyword] = cleanName
}

// AddKeywordsFromText registers one keyword per non-empty, non-comment line.
func (p *KeywordProcessor) AddKeywordsFromText(data string, cleanNameFor func(keyword string) string) {
	scanner := bufio.NewScanner(strings.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cleanName := ""
		if cleanNameFor != nil {
			cleanName = cleanNameFor(line)
		}
		p.AddKeyword(line, cleanName)
	}
}

func isWordBoundary(text string, idx int) bool {
	if idx < 0 || idx >= len(text) {
		return true
	}
	r := rune(text[idx])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// ExtractKeywords returns every keyword occurrence in text, leftmost first.
// Overlapping matches of the same region are all reported; callers that need
// one match can stop at the first.
func (p *KeywordProcessor) ExtractKeywords(text string) []KeywordMatch {
	lowered := strings.ToLower(text)
	var matches []KeywordMatch
	for keyword, cleanName := range p.keywords {
		offset := 0
		for {
			idx := strings.Index(lowered[offset:], keyword)
			if idx < 0 {
				break
			}
			start := offset + idx
			end := start + len(keyword)
			if isWordBoundary(lowered, start-1) && isWordBoundary(lowered, end) {
				matches = append(matches, KeywordMatch{
					Keyword:   keyword,
					CleanName: cleanName,
					Start:     start,
					End:       end,
				})
			}
			offset = end
		}
	}
	sortMatches(matches)
	return matches
}

func sortMatches(matches []KeywordMatch) {
	// insertion sort; match lists are short
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].Start < matches[j-1].Start; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
}
