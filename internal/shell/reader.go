package shell

import (
	"bufio"
	"errors"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"
)

// LineReader yields one input line per call and io.EOF when input ends.
type LineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// OpenReader picks a line editor with history and completion when in is a
// terminal, and plain line scanning otherwise.
func OpenReader(in *os.File, words []string) LineReader {
	if term.IsTerminal(int(in.Fd())) {
		return newLinerReader(words)
	}
	return NewScanReader(in)
}

type linerReader struct {
	state *liner.State
}

func newLinerReader(words []string) *linerReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	state.SetWordCompleter(completeWords(words))
	state.SetTabCompletionStyle(liner.TabPrints)
	return &linerReader{state: state}
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		r.state.AppendHistory(line)
	}
	return line, nil
}

func (r *linerReader) Close() error {
	return r.state.Close()
}

// ScanReader reads newline-delimited input without echoing a prompt.
type ScanReader struct {
	scanner *bufio.Scanner
}

func NewScanReader(in io.Reader) *ScanReader {
	return &ScanReader{scanner: bufio.NewScanner(in)}
}

func (r *ScanReader) Prompt(string) (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *ScanReader) Close() error { return nil }

// completeWords completes the first word of a line against words.
func completeWords(words []string) liner.WordCompleter {
	sorted := slices.Clone(words)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	// pos counts runes, not bytes.
	return func(line string, pos int) (string, []string, string) {
		runes := []rune(line)
		pos = min(max(pos, 0), len(runes))
		head, tail := string(runes[:pos]), string(runes[pos:])
		if strings.ContainsAny(strings.TrimLeft(head, " "), " \t") {
			return head, nil, tail
		}

		lead := head[:len(head)-len(strings.TrimLeft(head, " "))]
		prefix := strings.ToLower(strings.TrimLeft(head, " "))
		var matches []string
		for _, w := range sorted {
			if strings.HasPrefix(strings.ToLower(w), prefix) {
				matches = append(matches, w)
			}
		}
		return lead, matches, tail
	}
}
