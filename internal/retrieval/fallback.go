package retrieval

import (
	"strings"

	"github.com/koopa0/kbase/internal/corpus"
)

// lexicalSearch is a crude term-match scan over whole documents, used
// when vector retrieval is unavailable. A document matches when its
// lowercase body contains any query term longer than minTermLen as a
// substring. Matches come back in corpus order, capped at maxResults.
func lexicalSearch(query string, docs []corpus.Document, maxResults, minTermLen int) []Passage {
	terms := queryTerms(query, minTermLen)
	if len(terms) == 0 {
		return nil
	}

	var passages []Passage
	for _, doc := range docs {
		if len(passages) >= maxResults {
			break
		}
		body := strings.ToLower(doc.Body)
		for _, term := range terms {
			if strings.Contains(body, term) {
				passages = append(passages, Passage{
					Content: doc.Body,
					Source:  doc.Source,
					Title:   doc.Title,
				})
				break
			}
		}
	}
	return passages
}

// queryTerms splits query on whitespace, lowercases each token, and
// drops tokens of length minTermLen or shorter. Length is counted in
// bytes, matching the substring comparison below.
func queryTerms(query string, minTermLen int) []string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) <= minTermLen {
			continue
		}
		terms = append(terms, strings.ToLower(f))
	}
	return terms
}
