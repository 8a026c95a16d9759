// ABOUTME: Voice I/O adapter wrapping local speech-to-text and text-to-speech servers
// ABOUTME: Transcription and synthesis are long-running calls invoked off the dispatch loop
package voice

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ratatoskr-ai/ratatoskr/internal/errs"
	"github.com/ratatoskr-ai/ratatoskr/internal/models"
)

// FrameSize is the synthesized audio chunk size handed to playback
const FrameSize = 4096

// Adapter wraps a local whisper server for transcription and a local TTS
// server for synthesis, both behind OpenAI-compatible endpoints.
type Adapter struct {
	stt   *openai.Client
	tts   *openai.Client
	voice openai.SpeechVoice
}

// NewAdapter creates a voice adapter against the given STT and TTS base URLs
func NewAdapter(whisperBaseURL, ttsBaseURL, ttsVoice string) *Adapter {
	sttCfg := openai.DefaultConfig("local")
	sttCfg.BaseURL = whisperBaseURL
	ttsCfg := openai.DefaultConfig("local")
	ttsCfg.BaseURL = ttsBaseURL

	if ttsVoice == "" {
		ttsVoice = string(openai.VoiceAlloy)
	}

	return &Adapter{
		stt:   openai.NewClientWithConfig(sttCfg),
		tts:   openai.NewClientWithConfig(ttsCfg),
		voice: openai.SpeechVoice(ttsVoice),
	}
}

// Transcribe converts a bounded audio buffer to text. A decode error and
// unintelligible input both surface as TranscriptionFailure; an empty
// transcription is never returned silently, so callers can tell "no speech"
// from "engine error" by the wrapped cause.
func (a *Adapter) Transcribe(ctx context.Context, turnID int64, audio []byte) (*models.Transcript, error) {
	if len(audio) == 0 {
		return nil, errs.New(errs.KindTranscriptionFailure, "empty audio buffer", nil)
	}

	resp, err := a.stt.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: "input.wav",
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		if e := errs.FromContext(ctx, "transcription"); e != nil {
			return nil, e
		}
		return nil, errs.New(errs.KindTranscriptionFailure, "speech engine error", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, errs.New(errs.KindTranscriptionFailure, "no speech detected", nil)
	}

	return &models.Transcript{TurnID: turnID, Text: text}, nil
}

// AudioStream is a lazy, finite, non-restartable sequence of audio frames.
// Frames closes at end of audio, on failure, or within one frame of
// cancellation; Err is valid once the channel is closed.
type AudioStream struct {
	frames chan []byte
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// Frames returns the frame channel; closed at stream end
func (s *AudioStream) Frames() <-chan []byte {
	return s.frames
}

// Err returns the terminal failure, or nil after clean completion
func (s *AudioStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel stops frame production and releases the engine resources
func (s *AudioStream) Cancel() {
	s.cancel()
}

func (s *AudioStream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Synthesize produces an audio frame stream for the given text. Frame
// production stops within one frame's latency of cancellation and the
// underlying engine body is closed.
func (a *Adapter) Synthesize(ctx context.Context, text string) (*AudioStream, error) {
	ctx, cancel := context.WithCancel(ctx)

	body, err := a.tts.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.TTSModel1,
		Input: text,
		Voice: a.voice,
	})
	if err != nil {
		cancel()
		if e := errs.FromContext(ctx, "synthesis"); e != nil {
			return nil, e
		}
		return nil, errs.New(errs.KindSynthesisFailure, "voice model unavailable", err)
	}

	stream := &AudioStream{
		frames: make(chan []byte),
		cancel: cancel,
	}

	go pumpFrames(ctx, body, stream)
	return stream, nil
}

// pumpFrames reads fixed-size frames from the engine body until EOF,
// failure, or cancellation
func pumpFrames(ctx context.Context, body io.ReadCloser, stream *AudioStream) {
	defer func() {
		body.Close()
		close(stream.frames)
		stream.cancel()
	}()

	for {
		if e := errs.FromContext(ctx, "synthesis"); e != nil {
			stream.fail(e)
			return
		}

		frame := make([]byte, FrameSize)
		n, err := io.ReadFull(body, frame)
		if n > 0 {
			select {
			case stream.frames <- frame[:n]:
			case <-ctx.Done():
				stream.fail(errs.FromContext(ctx, "synthesis"))
				return
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return
		}
		if err != nil {
			if e := errs.FromContext(ctx, "synthesis"); e != nil {
				stream.fail(e)
				return
			}
			stream.fail(errs.New(errs.KindSynthesisFailure, "reading synthesized audio", err))
			return
		}
	}
}
