package feedback

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/pantheonreview/pantheon/pkg/models"
)

const jsonRuleName = "json-reviews"

var reviewsKeyRe = regexp.MustCompile(`"(?:reviews|comments)"\s*:\s*\[`)

var (
	jsonLineKeys = []string{"lineNumber", "line", "line_number"}
	jsonBodyKeys = []string{"reviewComment", "comment", "body", "content", "message"}
	jsonFileKeys = []string{"filePath", "path", "file", "file_path", "filename"}
)

// jsonPass decodes a {"reviews": [{"lineNumber": N, "reviewComment": "..."}]}
// payload embedded in the text. Broken JSON goes through jsonrepair before
// it is given up on.
func (e *Extractor) jsonPass(text string, claimed *spans) []models.FeedbackCandidate {
	for _, loc := range reviewsKeyRe.FindAllStringIndex(text, -1) {
		if claimed.contains(loc[0]) {
			continue
		}
		start, end, ok := enclosingObject(text, loc[0])
		if !ok {
			continue
		}

		items, err := decodeReviews(text[start:end])
		if err != nil {
			e.logger.Debug().Err(err).Int("offset", start).Msg("Skipping undecodable review payload")
			continue
		}

		var out []models.FeedbackCandidate
		for _, item := range items {
			c, ok := e.candidateFromJSON(item)
			if !ok {
				continue
			}
			c.SpanStart = start
			c.SpanEnd = end
			out = append(out, c)
		}
		claimed.add(start, end)
		return out
	}
	return nil
}

func (e *Extractor) candidateFromJSON(item map[string]any) (models.FeedbackCandidate, bool) {
	c := models.FeedbackCandidate{Rule: jsonRuleName}

	for _, key := range jsonLineKeys {
		if n, ok := asInt(item[key]); ok {
			c.Line = n
			break
		}
	}
	for _, key := range jsonFileKeys {
		if s, ok := item[key].(string); ok && strings.TrimSpace(s) != "" {
			c.FilePath = cleanPath(s)
			break
		}
	}
	for _, key := range jsonBodyKeys {
		if s, ok := item[key].(string); ok && strings.TrimSpace(s) != "" {
			c.Text = strings.TrimSpace(s)
			break
		}
	}

	if !c.HasLine() && !c.HasFile() {
		return c, false
	}
	if c.Text == "" {
		c.Text = e.placeholder
	}
	return c, true
}

func decodeReviews(raw string) ([]map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return nil, fmt.Errorf("failed to repair review payload: %w", repairErr)
		}
		if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
			return nil, fmt.Errorf("failed to decode repaired review payload: %w", err)
		}
	}

	for _, key := range []string{"reviews", "comments"} {
		list, ok := payload[key].([]any)
		if !ok {
			continue
		}
		items := make([]map[string]any, 0, len(list))
		for _, v := range list {
			if m, ok := v.(map[string]any); ok {
				items = append(items, m)
			}
		}
		return items, nil
	}
	return nil, fmt.Errorf("payload has no reviews list")
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n > 0 && n == float64(int(n)) {
			return int(n), true
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil && i > 0 {
			return i, true
		}
	}
	return 0, false
}

// enclosingObject finds the nearest '{' before pos whose object contains
// pos. An object that never closes runs to the end of the text.
func enclosingObject(text string, pos int) (int, int, bool) {
	for start := strings.LastIndex(text[:pos], "{"); start >= 0; start = strings.LastIndex(text[:start], "{") {
		end := matchBrace(text, start)
		if end > pos {
			return start, end, true
		}
	}
	return 0, 0, false
}

// matchBrace returns the offset just past the brace closing text[start].
// Braces inside JSON strings are ignored.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(text)
}
