package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// normalizeJSONC strips comments and trailing commas so the result is plain
// JSON. Stripped bytes become spaces, keeping decode offsets on the same line.
func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripComments(content)
	if err != nil {
		return "", err
	}
	return stripTrailingCommas(withoutComments), nil
}

// literal tracks whether a scan is inside a JSON string.
type literal struct {
	open   bool
	escape bool
}

// step consumes ch and reports whether it belongs to a string literal.
func (l *literal) step(ch byte) bool {
	if l.open {
		switch {
		case l.escape:
			l.escape = false
		case ch == '\\':
			l.escape = true
		case ch == '"':
			l.open = false
		}
		return true
	}
	if ch == '"' {
		l.open = true
		return true
	}
	return false
}

func stripComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	var lit literal
	for i := 0; i < len(content); i++ {
		ch := content[i]
		if lit.step(ch) || ch != '/' || i+1 >= len(content) {
			out.WriteByte(ch)
			continue
		}

		switch content[i+1] {
		case '/':
			end := strings.IndexAny(content[i:], "\r\n")
			if end < 0 {
				end = len(content) - i
			}
			out.WriteString(blank(content[i : i+end]))
			i += end - 1
		case '*':
			end := strings.Index(content[i+2:], "*/")
			if end < 0 {
				return "", fmt.Errorf("unterminated block comment in JSONC")
			}
			span := end + 4
			out.WriteString(blank(content[i : i+span]))
			i += span - 1
		default:
			out.WriteByte(ch)
		}
	}

	return out.String(), nil
}

func blank(comment string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return r
		default:
			return ' '
		}
	}, comment)
}

func stripTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	var lit literal
	for i := 0; i < len(content); i++ {
		ch := content[i]
		if !lit.step(ch) && ch == ',' {
			rest := strings.TrimLeft(content[i+1:], " \t\r\n")
			if rest != "" && (rest[0] == '}' || rest[0] == ']') {
				out.WriteByte(' ')
				continue
			}
		}
		out.WriteByte(ch)
	}

	return out.String()
}

// checkDocument decodes normalized JSON once to report syntax errors with a
// line and column before the document reaches viper.
func checkDocument(normalized string) error {
	decoder := json.NewDecoder(strings.NewReader(normalized))

	var doc map[string]any
	if err := decoder.Decode(&doc); err != nil {
		return wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return wrapJSONDecodeError(normalized, err)
	}
	return nil
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra json.RawMessage
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := min(int(offset), len(content))
	prefix := content[:max(limit-1, 0)]
	line := strings.Count(prefix, "\n") + 1
	col := len(prefix) - strings.LastIndex(prefix, "\n")
	return line, col
}
