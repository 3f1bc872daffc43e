package worker

import (
	"context"
	"encoding/json"
	"fmt"
)

// SynthesizeParams are the arguments of the synthesize method.
type SynthesizeParams struct {
	Text     string  `json:"text"`
	Voice    string  `json:"voice,omitempty"`
	Language string  `json:"language,omitempty"`
	Rate     float64 `json:"rate,omitempty"`
}

// SynthesizeReply is the result of the synthesize method. Audio is base64
// encoded by the worker so it survives the line-oriented transport.
type SynthesizeReply struct {
	Audio      string `json:"audio"`
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	DurationMs int64  `json:"duration_ms"`
}

// VoiceInfo describes one voice the worker offers.
type VoiceInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	Gender   string `json:"gender,omitempty"`
}

type cloneVoiceParams struct {
	Name    string   `json:"name"`
	Samples []string `json:"samples"`
}

// Synthesize asks the worker to render text to audio.
func (c *Client) Synthesize(ctx context.Context, params SynthesizeParams) (*SynthesizeReply, error) {
	raw, err := c.Call(ctx, "synthesize", params)
	if err != nil {
		return nil, err
	}

	var reply SynthesizeReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decoding synthesize result: %w", err)
	}
	return &reply, nil
}

// ListVoices asks the worker for its available voices.
func (c *Client) ListVoices(ctx context.Context) ([]VoiceInfo, error) {
	raw, err := c.Call(ctx, "list_voices", nil)
	if err != nil {
		return nil, err
	}

	var voices []VoiceInfo
	if err := json.Unmarshal(raw, &voices); err != nil {
		return nil, fmt.Errorf("decoding list_voices result: %w", err)
	}
	return voices, nil
}

// CloneVoice asks the worker to build a new voice from sample recordings on
// disk and returns the resulting voice.
func (c *Client) CloneVoice(ctx context.Context, name string, samplePaths []string) (*VoiceInfo, error) {
	raw, err := c.Call(ctx, "clone_voice", cloneVoiceParams{Name: name, Samples: samplePaths})
	if err != nil {
		return nil, err
	}

	var voice VoiceInfo
	if err := json.Unmarshal(raw, &voice); err != nil {
		return nil, fmt.Errorf("decoding clone_voice result: %w", err)
	}
	return &voice, nil
}
