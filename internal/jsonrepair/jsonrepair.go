// Package jsonrepair recovers entity arrays from model responses that are
// not valid JSON: code fences, trailing commas, missing delimiters, raw
// control characters and truncated output.
package jsonrepair

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrUnrecoverable is returned when no layer produced a parse.
var ErrUnrecoverable = eris.New("jsonrepair: response could not be recovered")

// Layer identifies which recovery step produced a result.
type Layer int

const (
	LayerNone Layer = iota
	LayerDirect
	LayerRepair
	LayerExtract
)

func (l Layer) String() string {
	switch l {
	case LayerDirect:
		return "direct"
	case LayerRepair:
		return "repair"
	case LayerExtract:
		return "extract"
	default:
		return "none"
	}
}

// Array keys of an entity response.
const (
	KeyContracts   = "contracts"
	KeyReceivables = "receivables"
	KeyExpenses    = "expenses"
)

// Result holds the recovered entity records.
type Result struct {
	Contracts   []map[string]any `json:"contracts"`
	Receivables []map[string]any `json:"receivables"`
	Expenses    []map[string]any `json:"expenses"`
	Layer       Layer            `json:"-"`
}

// Len returns the number of recovered records.
func (r *Result) Len() int {
	return len(r.Contracts) + len(r.Receivables) + len(r.Expenses)
}

// Recover parses an entity response through three layers: a direct parse,
// a syntactic repair, and finally independent extraction of each entity
// array so one malformed array does not lose the others.
func Recover(text string) (*Result, error) {
	var res Result
	err := json.Unmarshal([]byte(Clean(text)), &res)
	if err == nil {
		res.Layer = LayerDirect
		logLayer(res.Layer, res.Len())
		return &res, nil
	}

	res = Result{}
	if rerr := json.Unmarshal([]byte(Repair(text)), &res); rerr == nil {
		res.Layer = LayerRepair
		logLayer(res.Layer, res.Len())
		return &res, nil
	}

	res = Result{Layer: LayerExtract}
	parsed := 0
	for _, target := range []struct {
		key string
		dst *[]map[string]any
	}{
		{KeyContracts, &res.Contracts},
		{KeyReceivables, &res.Receivables},
		{KeyExpenses, &res.Expenses},
	} {
		raw, ok := ExtractArray(text, target.key)
		if !ok {
			continue
		}
		if aerr := unmarshalLenient(raw, target.dst); aerr != nil {
			zap.L().Warn("jsonrepair: dropping malformed array",
				zap.String("array", target.key),
				zap.Error(aerr),
			)
			*target.dst = nil
			continue
		}
		parsed++
	}
	if parsed == 0 {
		return nil, eris.Wrap(ErrUnrecoverable, err.Error())
	}
	logLayer(res.Layer, res.Len())
	return &res, nil
}

// ParseObject decodes a single JSON object response into v using the
// direct and repair layers.
func ParseObject(text string, v any) (Layer, error) {
	err := json.Unmarshal([]byte(Clean(text)), v)
	if err == nil {
		return LayerDirect, nil
	}
	if rerr := json.Unmarshal([]byte(Repair(text)), v); rerr == nil {
		logLayer(LayerRepair, 1)
		return LayerRepair, nil
	}
	return LayerNone, eris.Wrap(ErrUnrecoverable, err.Error())
}

func unmarshalLenient(raw string, dst any) error {
	if err := json.Unmarshal([]byte(raw), dst); err == nil {
		return nil
	}
	return json.Unmarshal([]byte(Repair(raw)), dst)
}

func logLayer(l Layer, records int) {
	if l == LayerDirect {
		return
	}
	zap.L().Info("jsonrepair: recovered malformed response",
		zap.String("layer", l.String()),
		zap.Int("records", records),
	)
}

// Clean strips markdown code fences and any prose around the outermost
// JSON object.
func Clean(text string) string {
	text = stripFences(text)
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "}]")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}

// Repair rewrites text into syntactically valid JSON where it can: it
// escapes raw control characters inside strings, drops trailing commas,
// inserts missing commas between adjacent values, and closes strings and
// brackets left open by truncation. Text after the top-level value closes
// is discarded.
func Repair(text string) string {
	text = stripFences(text)
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	text = text[start:]

	out := make([]byte, 0, len(text)+16)
	var stack []byte
	inStr, esc := false, false

scan:
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inStr {
			switch {
			case esc:
				esc = false
				out = append(out, c)
			case c == '\\':
				esc = true
				out = append(out, c)
			case c == '"':
				inStr = false
				out = append(out, c)
			case c == '\n':
				out = append(out, '\\', 'n')
			case c == '\r':
				out = append(out, '\\', 'r')
			case c == '\t':
				out = append(out, '\\', 't')
			case c < 0x20:
			default:
				out = append(out, c)
			}
			continue
		}

		switch c {
		case '"':
			out = commaIfAdjacent(out)
			inStr = true
			out = append(out, c)
		case '{', '[':
			out = commaIfAdjacent(out)
			if c == '{' {
				stack = append(stack, '}')
			} else {
				stack = append(stack, ']')
			}
			out = append(out, c)
		case '}', ']':
			out = dropTrailingComma(out)
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
			out = append(out, c)
			if len(stack) == 0 {
				break scan
			}
		case ' ', '\n', '\r', '\t', ',', ':':
			out = append(out, c)
		default:
			if c < 0x20 {
				continue
			}
			if isLiteralStart(c) {
				out = commaIfAdjacent(out)
			}
			out = append(out, c)
		}
	}

	if inStr {
		if esc {
			out = out[:len(out)-1]
		}
		out = append(out, '"')
	}
	out = dropDanglingKey(out, len(stack) > 0 && stack[len(stack)-1] == '}')
	for i := len(stack) - 1; i >= 0; i-- {
		out = dropTrailingComma(out)
		out = append(out, stack[i])
	}
	return string(out)
}

func isLiteralStart(c byte) bool {
	return c == '-' || c >= '0' && c <= '9' || c == 't' || c == 'f' || c == 'n'
}

// commaIfAdjacent inserts a comma when a new value starts right after a
// completed one. Literal ends (digits, true, false, null) count only when
// whitespace separates them from the new value.
func commaIfAdjacent(out []byte) []byte {
	j := len(out) - 1
	for j >= 0 && isSpace(out[j]) {
		j--
	}
	if j < 0 {
		return out
	}
	prev := out[j]
	ended := prev == '"' || prev == '}' || prev == ']'
	if !ended && j < len(out)-1 {
		ended = prev >= '0' && prev <= '9' || prev == 'e' || prev == 'l'
	}
	if !ended {
		return out
	}
	return append(out, ',')
}

func dropTrailingComma(out []byte) []byte {
	j := len(out) - 1
	for j >= 0 && isSpace(out[j]) {
		j--
	}
	if j >= 0 && out[j] == ',' {
		return append(out[:j], out[j+1:]...)
	}
	return out
}

// dropDanglingKey removes an object key left without its value by
// truncation, so closing the open brackets yields valid JSON.
func dropDanglingKey(out []byte, inObject bool) []byte {
	j := lastNonSpace(out)
	if j < 0 || !inObject {
		return out
	}
	hadColon := out[j] == ':'
	if hadColon {
		j = lastNonSpace(out[:j])
	}
	if j <= 0 || out[j] != '"' {
		return out
	}
	k := j - 1
	for k >= 0 && !(out[k] == '"' && (k == 0 || out[k-1] != '\\')) {
		k--
	}
	if k < 0 {
		return out
	}
	if !hadColon {
		// A lone string is a key only when it opens a member.
		m := lastNonSpace(out[:k])
		if m < 0 || (out[m] != ',' && out[m] != '{') {
			return out
		}
	}
	return dropTrailingComma(out[:k])
}

func lastNonSpace(out []byte) int {
	j := len(out) - 1
	for j >= 0 && isSpace(out[j]) {
		j--
	}
	return j
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}

// ExtractArray locates `"key": [` in text and returns the array through its
// matching closing bracket, skipping brackets inside strings. A truncated
// array is returned up to the end of text.
func ExtractArray(text, key string) (string, bool) {
	needle := `"` + key + `"`
	from := 0
	for {
		idx := strings.Index(text[from:], needle)
		if idx < 0 {
			return "", false
		}
		i := from + idx + len(needle)
		for i < len(text) && (isSpace(text[i]) || text[i] == ':') {
			i++
		}
		if i < len(text) && text[i] == '[' {
			return text[i:matchBracket(text, i)], true
		}
		from = from + idx + 1
	}
}

// matchBracket returns the index just past the bracket closing the one at
// start, or len(text) when it never closes.
func matchBracket(text string, start int) int {
	depth := 0
	inStr, esc := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(text)
}
