package relay

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrBadRequest = errors.New("bad_request")

// Message is one chat turn. Content is kept raw because clients send either
// a plain string or an array of typed blocks; both are forwarded untouched.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Text extracts the textual content for token estimation. Non-text blocks
// contribute nothing.
func (m Message) Text() string {
	if len(m.Content) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(m.Content, &blocks); err != nil {
		return ""
	}

	var b strings.Builder
	for _, block := range blocks {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// CompletionRequest is a chat-completion call. Only the fields the relay
// needs are decoded; everything else rides along in raw form and reaches the
// upstream unchanged.
type CompletionRequest struct {
	Model    string
	Messages []Message
	Stream   bool

	raw map[string]json.RawMessage
}

func (r *CompletionRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return ErrBadRequest
	}

	var model string
	if v, ok := raw["model"]; ok {
		if err := json.Unmarshal(v, &model); err != nil {
			return ErrBadRequest
		}
	}

	var messages []Message
	if v, ok := raw["messages"]; ok {
		if err := json.Unmarshal(v, &messages); err != nil {
			return ErrBadRequest
		}
	}

	var stream bool
	if v, ok := raw["stream"]; ok {
		if err := json.Unmarshal(v, &stream); err != nil {
			return ErrBadRequest
		}
	}

	r.Model = strings.TrimSpace(model)
	r.Messages = messages
	r.Stream = stream
	r.raw = raw
	return nil
}

func (r CompletionRequest) Validate() error {
	if r.Model == "" || len(r.Messages) == 0 {
		return ErrBadRequest
	}
	return nil
}

// PromptText concatenates the textual content of all messages.
func (r CompletionRequest) PromptText() string {
	var b strings.Builder
	for i, m := range r.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.Text())
	}
	return b.String()
}

// UpstreamBody rebuilds the request for the upstream: the original payload,
// with vendor patch fields merged in at the top level.
func (r CompletionRequest) UpstreamBody(patch map[string]any) ([]byte, error) {
	body := make(map[string]json.RawMessage, len(r.raw)+len(patch))
	for k, v := range r.raw {
		body[k] = v
	}
	for k, v := range patch {
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		body[k] = encoded
	}
	return json.Marshal(body)
}
