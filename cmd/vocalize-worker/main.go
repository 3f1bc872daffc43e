// vocalize-worker is a reference synthesis worker speaking the line-oriented
// JSON-RPC protocol on stdio. It renders silence instead of speech, which
// makes it useful as a protocol smoke test and a template for real workers
// that wrap an actual model runtime.
package main

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/dgnsrekt/vocalize-go/internal/wav"
	"github.com/dgnsrekt/vocalize-go/internal/worker"
)

const msPerChar = 60

func main() {
	out := bufio.NewWriter(os.Stdout)

	// Signal readiness: a real worker emits this after model load.
	emit(out, worker.Response{
		JSONRPC: "2.0",
		Method:  "ready",
	})

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req struct {
			ID     int64           `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(line, &req); err != nil {
			fmt.Fprintf(os.Stderr, "dropping malformed request: %v\n", err)
			continue
		}

		switch req.Method {
		case "synthesize":
			handleSynthesize(out, req.ID, req.Params)
		case "list_voices":
			respond(out, req.ID, []worker.VoiceInfo{
				{ID: "silence", Name: "Silence", Language: "zxx", Gender: "neutral"},
			})
		case "clone_voice":
			handleCloneVoice(out, req.ID, req.Params)
		case "shutdown":
			respond(out, req.ID, map[string]bool{"ok": true})
			return
		default:
			respondError(out, req.ID, -32601, "method not found: "+req.Method)
		}
	}
}

func handleSynthesize(out *bufio.Writer, id int64, raw json.RawMessage) {
	var params worker.SynthesizeParams
	if err := json.Unmarshal(raw, &params); err != nil {
		respondError(out, id, -32602, "invalid synthesize params")
		return
	}
	if params.Text == "" {
		respondError(out, id, -32602, "text is required")
		return
	}

	durationMs := len([]rune(params.Text)) * msPerChar
	data := wav.Silence(durationMs, wav.PiperSampleRate, 1)

	respond(out, id, worker.SynthesizeReply{
		Audio:      base64.StdEncoding.EncodeToString(data),
		Format:     "wav",
		SampleRate: wav.PiperSampleRate,
		Channels:   1,
		DurationMs: int64(durationMs),
	})
}

func handleCloneVoice(out *bufio.Writer, id int64, raw json.RawMessage) {
	var params struct {
		Name    string   `json:"name"`
		Samples []string `json:"samples"`
	}
	if err := json.Unmarshal(raw, &params); err != nil || params.Name == "" {
		respondError(out, id, -32602, "invalid clone_voice params")
		return
	}

	respond(out, id, worker.VoiceInfo{
		ID:       "clone-" + uuid.NewString(),
		Name:     params.Name,
		Language: "zxx",
		Gender:   "neutral",
	})
}

func respond(out *bufio.Writer, id int64, result any) {
	payload, err := json.Marshal(result)
	if err != nil {
		respondError(out, id, -32603, "encoding result failed")
		return
	}
	emit(out, worker.Response{JSONRPC: "2.0", ID: &id, Result: payload})
}

func respondError(out *bufio.Writer, id int64, code int, message string) {
	emit(out, worker.Response{
		JSONRPC: "2.0",
		ID:      &id,
		Error:   &worker.RPCError{Code: code, Message: message},
	})
}

func emit(out *bufio.Writer, resp worker.Response) {
	line, err := json.Marshal(resp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encoding response: %v\n", err)
		return
	}
	out.Write(line)
	out.WriteByte('\n')
	out.Flush()
}
