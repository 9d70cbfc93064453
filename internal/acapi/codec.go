package acapi

import (
	"bytes"
	"encoding/json"
	"errors"
)

// CommandPrefix namespaces every command name on the wire.
const CommandPrefix = "API."

// Request is the wire form of a single command.
type Request struct {
	Command string `json:"command"`
}

// OutcomeKind tags which variant an Outcome holds.
type OutcomeKind int

const (
	OutcomeUnknownFailure OutcomeKind = iota
	OutcomeSuccess
	OutcomeAPIFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeAPIFailure:
		return "api_failure"
	default:
		return "unknown_failure"
	}
}

// Outcome is the decoded form of a response envelope. Result is set only for
// OutcomeSuccess (and only when the server sent one); Error only for
// OutcomeAPIFailure.
type Outcome struct {
	Kind   OutcomeKind
	Result json.RawMessage
	Error  *APIError
}

// Succeeded reports whether the envelope carried succeeded=true.
func (o Outcome) Succeeded() bool { return o.Kind == OutcomeSuccess }

// HasResult reports whether a successful envelope included a non-null result.
func (o Outcome) HasResult() bool { return o.Kind == OutcomeSuccess && len(o.Result) > 0 }

// EncodeRequest renders the request body for the named command.
func EncodeRequest(name string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// A struct with one string field always encodes.
	_ = enc.Encode(Request{Command: CommandPrefix + name})
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

// DecodeResponse maps a response body onto exactly one Outcome variant.
// Bodies that are not valid JSON yield a *ProtocolError.
func DecodeResponse(body []byte) (Outcome, error) {
	if !json.Valid(body) {
		return Outcome{}, &ProtocolError{Err: describeInvalidJSON(body)}
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Outcome{Kind: OutcomeUnknownFailure}, nil
	}

	// Keys are matched exactly; struct decoding would fold case.
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Outcome{Kind: OutcomeUnknownFailure}, nil
	}
	rawSucceeded, ok := env["succeeded"]
	if !ok {
		return Outcome{Kind: OutcomeUnknownFailure}, nil
	}

	var succeeded bool
	if err := json.Unmarshal(rawSucceeded, &succeeded); err != nil || isNull(rawSucceeded) {
		return Outcome{Kind: OutcomeUnknownFailure}, nil
	}

	if succeeded {
		out := Outcome{Kind: OutcomeSuccess}
		if result := env["result"]; !isNull(result) {
			out.Result = result
		}
		return out, nil
	}

	apiErr, ok := decodeAPIError(env["error"])
	if !ok {
		return Outcome{Kind: OutcomeUnknownFailure}, nil
	}
	return Outcome{Kind: OutcomeAPIFailure, Error: apiErr}, nil
}

// decodeAPIError requires an object carrying exactly-named integer "code" and
// string "message" members.
func decodeAPIError(raw json.RawMessage) (*APIError, bool) {
	if isNull(raw) {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}

	var apiErr APIError
	code, ok := fields["code"]
	if !ok || isNull(code) || json.Unmarshal(code, &apiErr.Code) != nil {
		return nil, false
	}
	message, ok := fields["message"]
	if !ok || isNull(message) || json.Unmarshal(message, &apiErr.Message) != nil {
		return nil, false
	}
	return &apiErr, true
}

// isNull treats an absent key and a literal null the same.
func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func describeInvalidJSON(body []byte) error {
	var v any
	err := json.Unmarshal(body, &v)
	if err == nil {
		return errors.New("invalid JSON")
	}
	return err
}
