package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Host      *string          `json:"host"`
	Port      *int             `json:"port"`
	PortRange *jsoncPortRange  `json:"port_range"`
	TimeoutMS *int             `json:"timeout_ms"`
	Output    *string          `json:"output"`
	Debug     *bool            `json:"debug"`
	Scan      *jsoncScan       `json:"scan"`
	Commands  *jsoncStringList `json:"commands"`
}

type jsoncPortRange struct {
	Start *int `json:"start"`
	End   *int `json:"end"`
}

type jsoncScan struct {
	RatePerSecond *float64 `json:"rate_per_second"`
	Burst         *int     `json:"burst"`
	TimeoutMS     *int     `json:"timeout_ms"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = splitList(single)
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	payload.applyTo(&cfg)

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) {
	if payload.Host != nil {
		cfg.Host = strings.TrimSpace(*payload.Host)
	}
	if payload.Port != nil {
		cfg.Port = *payload.Port
	}
	if payload.PortRange != nil {
		if payload.PortRange.Start != nil {
			cfg.PortRange.Start = *payload.PortRange.Start
		}
		if payload.PortRange.End != nil {
			cfg.PortRange.End = *payload.PortRange.End
		}
	}
	if payload.TimeoutMS != nil {
		cfg.TimeoutMS = *payload.TimeoutMS
	}
	if payload.Output != nil {
		cfg.Output = strings.ToLower(strings.TrimSpace(*payload.Output))
	}
	if payload.Debug != nil {
		cfg.Debug = *payload.Debug
	}

	if payload.Scan != nil {
		if payload.Scan.RatePerSecond != nil {
			cfg.Scan.RatePerSecond = *payload.Scan.RatePerSecond
		}
		if payload.Scan.Burst != nil {
			cfg.Scan.Burst = *payload.Scan.Burst
		}
		if payload.Scan.TimeoutMS != nil {
			cfg.Scan.TimeoutMS = *payload.Scan.TimeoutMS
		}
	}

	if payload.Commands != nil {
		commands := make([]string, 0, len(*payload.Commands))
		for _, name := range *payload.Commands {
			commands = append(commands, strings.TrimSpace(name))
		}
		cfg.Commands = commands
	}
}

// normalizeJSONC blanks comments and drops trailing commas so the result
// decodes as strict JSON with unchanged byte offsets for error reporting.
func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

// stringTracker follows JSON string boundaries one byte at a time.
type stringTracker struct {
	inString bool
	escape   bool
}

// consume reports whether ch belongs to a string literal (quotes included).
func (s *stringTracker) consume(ch byte) bool {
	if s.inString {
		switch {
		case s.escape:
			s.escape = false
		case ch == '\\':
			s.escape = true
		case ch == '"':
			s.inString = false
		}
		return true
	}
	if ch == '"' {
		s.inString = true
		return true
	}
	return false
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	var str stringTracker
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		switch {
		case lineComment:
			if ch == '\n' || ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
		case blockComment:
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
			} else if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
		case str.consume(ch):
			out.WriteByte(ch)
		case ch == '/' && i+1 < len(content) && content[i+1] == '/':
			lineComment = true
			out.WriteString("  ")
			i++
		case ch == '/' && i+1 < len(content) && content[i+1] == '*':
			blockComment = true
			out.WriteString("  ")
			i++
		default:
			out.WriteByte(ch)
		}
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	var str stringTracker
	for i := 0; i < len(content); i++ {
		ch := content[i]
		if !str.consume(ch) && ch == ',' && closesAfterWhitespace(content, i+1) {
			out.WriteByte(' ')
			continue
		}
		out.WriteByte(ch)
	}

	return out.String()
}

func closesAfterWhitespace(content string, from int) bool {
	j := from
	for j < len(content) && isJSONWhitespace(content[j]) {
		j++
	}
	return j < len(content) && (content[j] == '}' || content[j] == ']')
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
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

	line, col := 1, 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
