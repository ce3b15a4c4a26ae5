// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"strings"

	"github.com/solanagram/solanagram/models"
)

// Extraction is one captured substring with its occurrence index within the
// message, counted per rule.
type Extraction struct {
	RuleName        string
	Value           string
	OccurrenceIndex int
}

// ApplyExtractor runs one extractor elaboration over a message text: every
// occurrence of the search text yields the following value_length characters
// with surrounding whitespace stripped. Empty captures are dropped.
func ApplyExtractor(e models.MessageElaboration, text string) []Extraction {
	searchText := e.Config.SearchText
	valueLength := e.Config.ValueLength
	if searchText == "" || valueLength <= 0 || text == "" {
		return nil
	}

	var out []Extraction
	occurrence := 0
	offset := 0

	for {
		idx := strings.Index(text[offset:], searchText)
		if idx < 0 {
			break
		}

		start := offset + idx + len(searchText)
		end := start + valueLength
		if end > len(text) {
			end = len(text)
		}

		value := strings.TrimSpace(text[start:end])
		if value != "" {
			out = append(out, Extraction{
				RuleName:        e.Name,
				Value:           value,
				OccurrenceIndex: occurrence,
			})
			occurrence++
		}

		offset = start
	}

	return out
}
