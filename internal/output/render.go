// Package output renders command results and API failures for the terminal.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rbright/archiconnect/internal/acapi"
	"gopkg.in/yaml.v3"
)

// Format selects the result encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(raw); f {
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want json or yaml)", raw)
	}
}

// RenderResult writes a raw JSON result in the requested format.
func RenderResult(w io.Writer, result json.RawMessage, format Format) error {
	switch format {
	case FormatYAML:
		return renderYAML(w, result)
	default:
		return renderJSON(w, result)
	}
}

// renderJSON re-indents with tabs, preserving key order and number text.
// Strings are written unescaped apart from what JSON requires.
func renderJSON(w io.Writer, result json.RawMessage) error {
	dec := json.NewDecoder(bytes.NewReader(result))
	dec.UseNumber()

	var out bytes.Buffer
	if err := writeJSONValue(&out, dec, 0); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	out.WriteByte('\n')
	_, err := w.Write(out.Bytes())
	return err
}

func writeJSONValue(out *bytes.Buffer, dec *json.Decoder, depth int) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch t := tok.(type) {
	case json.Delim:
		closing := byte('}')
		if t == '[' {
			closing = ']'
		}
		out.WriteByte(byte(t))
		first := true
		for dec.More() {
			if !first {
				out.WriteByte(',')
			}
			first = false
			newline(out, depth+1)
			if t == '{' {
				key, err := dec.Token()
				if err != nil {
					return err
				}
				writeJSONString(out, key.(string))
				out.WriteString(": ")
			}
			if err := writeJSONValue(out, dec, depth+1); err != nil {
				return err
			}
		}
		if _, err := dec.Token(); err != nil {
			return err
		}
		if !first {
			newline(out, depth)
		}
		out.WriteByte(closing)
	case string:
		writeJSONString(out, t)
	case json.Number:
		out.WriteString(t.String())
	case bool:
		out.WriteString(strconv.FormatBool(t))
	case nil:
		out.WriteString("null")
	default:
		return fmt.Errorf("unexpected token %v", tok)
	}
	return nil
}

func newline(out *bytes.Buffer, depth int) {
	out.WriteByte('\n')
	out.WriteString(strings.Repeat("\t", depth))
}

func writeJSONString(out *bytes.Buffer, s string) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	out.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}

// renderYAML converts through a yaml.Node so key order survives.
func renderYAML(w io.Writer, result json.RawMessage) error {
	var compact bytes.Buffer
	if err := json.Compact(&compact, result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(compact.Bytes(), &doc); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	blockStyle(&doc)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return enc.Close()
}

// blockStyle drops the flow and quoting styles inherited from JSON syntax.
// The encoder re-quotes any string that would otherwise change type.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		blockStyle(child)
	}
}

// RenderAPIError writes an application failure as "Error <code>" followed by
// the indented message.
func RenderAPIError(w io.Writer, apiErr *acapi.APIError) {
	if apiErr == nil {
		return
	}
	fmt.Fprintf(w, "Error %d\n\t%s\n", apiErr.Code, apiErr.Message)
}

// RenderOutcome reports one command exchange. The result goes to stdout and
// every failure to stderr. It returns false when the command failed.
func RenderOutcome(stdout, stderr io.Writer, outcome acapi.Outcome, err error, format Format) bool {
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return false
	}

	switch outcome.Kind {
	case acapi.OutcomeSuccess:
		if !outcome.HasResult() {
			fmt.Fprintln(stderr, "command succeeded without a result")
			return true
		}
		if err := RenderResult(stdout, outcome.Result, format); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return false
		}
		return true
	case acapi.OutcomeAPIFailure:
		RenderAPIError(stderr, outcome.Error)
		return false
	default:
		fmt.Fprintln(stderr, "error: command failed without an error description")
		return false
	}
}
