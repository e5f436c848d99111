package measure

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Transcriber produces a timestamped transcript of an audio clip.
type Transcriber interface {
	Transcribe(ctx context.Context, audioData []byte) ([]TranscriptSegment, error)
}

// transcriptionCreator is the slice of the OpenAI client the transcriber
// needs. *openai.Client implements it; tests inject fakes.
type transcriptionCreator interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// WhisperTranscriber transcribes clips through the OpenAI audio API with
// verbose timestamps.
type WhisperTranscriber struct {
	client transcriptionCreator
	model  string
}

// WhisperOption configures a WhisperTranscriber.
type WhisperOption func(*WhisperTranscriber)

func withTranscriptionCreator(tc transcriptionCreator) WhisperOption {
	return func(w *WhisperTranscriber) { w.client = tc }
}

func NewWhisperTranscriber(apiKey, baseURL, model string, opts ...WhisperOption) *WhisperTranscriber {
	w := &WhisperTranscriber{model: model}
	if w.model == "" {
		w.model = "whisper-1"
	}
	if key := strings.TrimSpace(apiKey); key != "" {
		oc := openai.DefaultConfig(key)
		if baseURL != "" {
			oc.BaseURL = baseURL
		}
		w.client = openai.NewClientWithConfig(oc)
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Enabled reports whether transcription can run.
func (w *WhisperTranscriber) Enabled() bool { return w != nil && w.client != nil }

// Transcribe returns the clip's timestamped segments, dropping empty units.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioData []byte) ([]TranscriptSegment, error) {
	if !w.Enabled() {
		return nil, nil
	}
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: "scene.mp3",
		Reader:   bytes.NewReader(audioData),
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w", err)
	}

	segments := make([]TranscriptSegment, 0, len(resp.Segments))
	for _, raw := range resp.Segments {
		text := strings.TrimSpace(raw.Text)
		if text == "" {
			continue
		}
		start := int(math.Round(raw.Start * 1000))
		end := int(math.Round(raw.End * 1000))
		if start < 0 {
			start = 0
		}
		if end < start {
			end = start
		}
		segments = append(segments, TranscriptSegment{Text: text, StartMS: start, EndMS: end})
	}
	return segments, nil
}
