package actions

import (
	"bufio"
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

/*
Log entries are stored as newline-delimited JSON. Each line is an object with
exactly one key naming the action kind:

    {"commitInfo":{"timestamp":1704067200000,"operation":"WRITE",...}}
    {"add":{"path":"part-0.parquet","size":10,...}}
    {"remove":{"path":"part-1.parquet","deletionTimestamp":1704067200000,...}}

Unrecognized kinds decode to Opaque and re-encode unchanged.
*/

////////////////////////////////////////////////////////////////////////////////

const (
	kindAdd        = "add"
	kindRemove     = "remove"
	kindMetadata   = "metaData"
	kindProtocol   = "protocol"
	kindCommitInfo = "commitInfo"
)

// maxLineSize bounds a single encoded action.
const maxLineSize = 64 * 1024 * 1024

type encoder struct {
	buf *bytes.Buffer
}

func (e *encoder) line(kind string, v any) error {
	data, err := json.Marshal(map[string]any{kind: v})
	if err != nil {
		return fmt.Errorf("failed to encode %s action: %w", kind, err)
	}
	e.buf.Write(data)
	e.buf.WriteByte('\n')
	return nil
}

func (e *encoder) AddFile(a AddFile) error       { return e.line(kindAdd, a) }
func (e *encoder) RemoveFile(a RemoveFile) error { return e.line(kindRemove, a) }
func (e *encoder) Metadata(a Metadata) error     { return e.line(kindMetadata, a) }
func (e *encoder) Protocol(a Protocol) error     { return e.line(kindProtocol, a) }
func (e *encoder) CommitInfo(a CommitInfo) error { return e.line(kindCommitInfo, a) }

func (e *encoder) Opaque(a Opaque) error {
	if a.Kind == "" {
		return MalformedActionError{Reason: "opaque action without a kind"}
	}
	return e.line(a.Kind, json.RawMessage(a.Payload))
}

// Encode serializes actions as newline-delimited JSON, preserving order.
func Encode(actions []Action) ([]byte, error) {
	enc := &encoder{buf: &bytes.Buffer{}}
	for _, action := range actions {
		if err := action.Accept(enc); err != nil {
			return nil, err
		}
	}
	return enc.buf.Bytes(), nil
}

// Decode parses newline-delimited JSON into actions. Blank lines are skipped.
func Decode(data []byte) ([]Action, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	result := []Action{}
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		action, err := decodeLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
		result = append(result, action)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan actions: %w", err)
	}
	return result, nil
}

func decodeLine(line []byte) (Action, error) {
	obj := map[string]json.RawMessage{}
	if err := json.Unmarshal(line, &obj); err != nil {
		return nil, MalformedActionError{Reason: err.Error()}
	}
	if len(obj) != 1 {
		return nil, MalformedActionError{Reason: fmt.Sprintf("expected one action kind, found %d", len(obj))}
	}
	for kind, payload := range obj {
		switch kind {
		case kindAdd:
			return decodeAs[AddFile](kind, payload)
		case kindRemove:
			return decodeAs[RemoveFile](kind, payload)
		case kindMetadata:
			return decodeAs[Metadata](kind, payload)
		case kindProtocol:
			return decodeAs[Protocol](kind, payload)
		case kindCommitInfo:
			return decodeAs[CommitInfo](kind, payload)
		default:
			return Opaque{Kind: kind, Payload: append([]byte(nil), payload...)}, nil
		}
	}
	panic("unreachable")
}

func decodeAs[T Action](kind string, payload []byte) (Action, error) {
	var action T
	if err := json.Unmarshal(payload, &action); err != nil {
		return nil, MalformedActionError{Kind: kind, Reason: err.Error()}
	}
	return action, nil
}
