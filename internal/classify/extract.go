package classify

import (
	"errors"
	"fmt"
)

// ExtractionError reports why no JSON could be pulled out of model output.
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return "extract json: " + e.Reason
}

// ErrNoJSON is returned when the text contains no bracketed payload at all.
var ErrNoJSON = &ExtractionError{Reason: "no object or array found"}

// ExtractJSON returns the first balanced {...} or [...] substring of text.
// Model output is untrusted input: the scanner is string-aware so braces
// inside quoted values do not unbalance the count, and an unterminated
// payload is an explicit error rather than a partial result.
func ExtractJSON(text string) (string, error) {
	start := -1
	var opener, closer byte
	for i := 0; i < len(text); i++ {
		if text[i] == '{' {
			start, opener, closer = i, '{', '}'
			break
		}
		if text[i] == '[' {
			start, opener, closer = i, '[', ']'
			break
		}
	}
	if start == -1 {
		return "", ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", &ExtractionError{Reason: fmt.Sprintf("unbalanced %q starting at offset %d", string(opener), start)}
}

// IsExtractionError reports whether err came from the JSON extractor.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}
