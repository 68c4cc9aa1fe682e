package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// wireChunk is the JSON shape of one streamed chunk object. FinishReason is
// a pointer so token chunks serialize it as an explicit null; the terminal
// reason travels in the trailing literal instead.
type wireChunk struct {
	Index        int       `json:"index"`
	Delta        wireDelta `json:"delta"`
	FinishReason *string   `json:"finish_reason"`
}

type wireDelta struct {
	Content string `json:"content"`
}

// WriteStream renders the session onto w using the incremental wire format:
// an opening literal, comma-separated chunk objects, and a closing literal.
// The overall body is only valid JSON once fully flushed.
//
// A write failure means the client is gone; that is not an error condition
// here. The session is closed (which cancels the producer) and WriteStream
// returns nil. The closing literal is written whenever the chunk channel
// ends, so a generation failure still terminates the body.
func WriteStream(w io.Writer, s *Session) error {
	defer s.Close()

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	disconnected := func(err error) error {
		s.logger.Debug("client disconnected during streaming",
			"stream_id", s.ID(), "error", err.Error())
		return nil
	}

	if _, err := fmt.Fprintf(w, `{"id": %q, "choices": [`, s.ID()); err != nil {
		return disconnected(err)
	}
	flush()

	first := true
	for chunk := range s.Chunks() {
		if chunk.FinishReason != "" {
			break
		}
		data, err := json.Marshal(wireChunk{
			Index: chunk.Index,
			Delta: wireDelta{Content: chunk.Content},
		})
		if err != nil {
			return fmt.Errorf("marshal chunk %d: %w", chunk.Index, err)
		}
		if !first {
			if _, err := w.Write([]byte(",")); err != nil {
				return disconnected(err)
			}
		}
		first = false
		if _, err := w.Write(data); err != nil {
			return disconnected(err)
		}
		flush()
	}

	if _, err := io.WriteString(w, `], "finish_reason": "stop"}`); err != nil {
		return disconnected(err)
	}
	flush()
	return nil
}
