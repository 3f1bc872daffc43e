// Package worker manages one persistent out-of-process synthesis worker and
// exposes its operations as correlated, awaitable calls over a
// newline-delimited JSON-RPC byte stream.
package worker

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	jsonrpcVersion = "2.0"

	// methodReady is the unsolicited notification the worker emits once its
	// model is loaded and it can accept calls.
	methodReady = "ready"
)

// Request is one outbound envelope, written as a single line.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is one inbound envelope. A nil ID marks a notification.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a worker-reported call failure.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("worker error %d: %s", e.Code, e.Message)
}

// LineParser splits a byte stream into newline-terminated frames. It buffers
// at most one partial line between feeds; a partial line at the end of a
// chunk is prefixed to the next chunk, never emitted on its own.
type LineParser struct {
	rest []byte
}

// Feed appends a chunk and returns every complete line it closed, without
// the trailing newline. Returned slices do not alias the input.
func (p *LineParser) Feed(chunk []byte) [][]byte {
	p.rest = append(p.rest, chunk...)

	var lines [][]byte
	for {
		idx := bytes.IndexByte(p.rest, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimSuffix(p.rest[:idx], []byte{'\r'})
		out := make([]byte, len(line))
		copy(out, line)
		lines = append(lines, out)
		p.rest = p.rest[idx+1:]
	}

	// Re-own the residue so it cannot alias a caller buffer.
	if len(p.rest) > 0 {
		rest := make([]byte, len(p.rest))
		copy(rest, p.rest)
		p.rest = rest
	} else {
		p.rest = nil
	}

	return lines
}

// Pending returns the number of buffered bytes awaiting a newline.
func (p *LineParser) Pending() int {
	return len(p.rest)
}
