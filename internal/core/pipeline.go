// ABOUTME: Turn pipeline: input resolution, retrieval, context, generation, synthesis, persistence
// ABOUTME: Stage failures short-circuit with the failing stage identified; synthesis failure is non-fatal
package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ratatoskr-ai/ratatoskr/internal/errs"
	"github.com/ratatoskr-ai/ratatoskr/internal/models"
	"github.com/ratatoskr-ai/ratatoskr/internal/util"
	"github.com/ratatoskr-ai/ratatoskr/internal/voice"
)

// Pipeline stage names carried on TurnFailed events
const (
	StageTranscription = "transcription"
	StageRetrieval     = "retrieval"
	StageContext       = "context"
	StageGeneration    = "generation"
	StageSynthesis     = "synthesis"
	StagePersistence   = "persistence"
)

// Synthesis chunking cadences (mirrors internal/config)
const (
	ChunkingSentence = "sentence"
	ChunkingFull     = "full"
)

// EventSink receives incremental events as the pipeline produces them
type EventSink func(models.Event)

// PipelineConfig carries the tunables for one pipeline instance
type PipelineConfig struct {
	TopK              int
	SynthesisChunking string

	TranscribeTimeout time.Duration
	GenerateTimeout   time.Duration
	SynthesizeTimeout time.Duration
	MemoryTimeout     time.Duration

	MaxRetries int
	RetryDelay time.Duration
}

// Pipeline executes the fixed stage sequence for one dispatched turn
type Pipeline struct {
	voice   VoiceIO
	model   ModelAdapter
	memory  MemoryStore
	builder *ContextBuilder
	cfg     PipelineConfig
}

// NewPipeline wires a pipeline over the three adapters
func NewPipeline(voiceIO VoiceIO, model ModelAdapter, memory MemoryStore, builder *ContextBuilder, cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		voice:   voiceIO,
		model:   model,
		memory:  memory,
		builder: builder,
		cfg:     cfg,
	}
}

// Run executes all stages for the turn under the mode frozen at dispatch.
// genEnd is invoked exactly once, as soon as generation has finished, failed,
// or been pre-empted by an earlier stage failure; the orchestrator uses it
// to release the next turn's generation slot. Transcription, retrieval, and
// persistence are retried on transient failures; generation never is.
func (p *Pipeline) Run(ctx context.Context, turn *models.Turn, dispatchMode models.InteractionMode,
	history []models.ContextEntry, emit EventSink, genEnd func(transcript, response string, genErr error)) (*models.TurnResult, error) {

	genEnded := false
	endGeneration := func(transcript, response string, err error) {
		if genEnded {
			return
		}
		genEnded = true
		if genEnd != nil {
			genEnd(transcript, response, err)
		}
	}

	// Stage 1: input resolution
	transcript, err := p.resolveInput(ctx, turn)
	if err != nil {
		e := asStageError(err, StageTranscription)
		endGeneration("", "", e)
		return nil, e
	}

	// Stage 2: memory retrieval (empty result on a fresh store is expected)
	memories, err := p.retrieve(ctx, transcript)
	if err != nil {
		e := asStageError(err, StageRetrieval)
		endGeneration(transcript, "", e)
		return nil, e
	}

	// Stage 3: context assembly
	window := p.builder.Build(turn.ID, history, memories, transcript)

	// Stage 5 runs as a worker overlapping stage 4 when chunked synthesis
	// is configured; TextOnly mode skips it entirely
	var synth *synthWorker
	if dispatchMode.Synthesizes() {
		synth = p.startSynthWorker(ctx, turn.ID, emit)
	}

	// Stage 4: generation, streamed incrementally
	response, err := p.generate(ctx, turn, window, emit, synth)
	if err != nil {
		if synth != nil {
			synth.abort()
		}
		e := asStageError(err, StageGeneration)
		endGeneration(transcript, "", e)
		return nil, e
	}
	endGeneration(transcript, response, nil)

	// Stage 5: drain remaining synthesis. Failure downgrades the turn to
	// "completed with playback error" instead of failing it; cancellation
	// still fails the turn.
	var playbackErr error
	if synth != nil {
		playbackErr = synth.wait()
		if errs.KindOf(playbackErr) == errs.KindCancelled {
			return nil, asStageError(playbackErr, StageSynthesis)
		}
	}

	// Stage 6: memory persistence, even after a playback error
	if err := p.persist(ctx, turn, transcript, response); err != nil {
		return nil, asStageError(err, StagePersistence)
	}

	return &models.TurnResult{
		TurnID:        turn.ID,
		Transcript:    transcript,
		Response:      response,
		PlaybackError: playbackErr,
	}, nil
}

// resolveInput produces the transcript: transcribe audio input, pass text through
func (p *Pipeline) resolveInput(ctx context.Context, turn *models.Turn) (string, error) {
	if turn.Kind == models.InputText {
		return turn.Text, nil
	}

	var transcript *models.Transcript
	err := util.Retry(ctx, p.cfg.MaxRetries, p.cfg.RetryDelay, errs.IsTransient, func() error {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.TranscribeTimeout)
		defer cancel()
		var err error
		transcript, err = p.voice.Transcribe(callCtx, turn.ID, turn.Audio)
		return err
	})
	if err != nil {
		return "", err
	}
	return transcript.Text, nil
}

// retrieve queries long-term memory for the transcript
func (p *Pipeline) retrieve(ctx context.Context, transcript string) ([]models.MemorySearchResult, error) {
	var memories []models.MemorySearchResult
	err := util.Retry(ctx, p.cfg.MaxRetries, p.cfg.RetryDelay, errs.IsTransient, func() error {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.MemoryTimeout)
		defer cancel()
		var err error
		memories, err = p.memory.Query(callCtx, transcript, p.cfg.TopK)
		return err
	})
	if err != nil {
		return nil, err
	}
	return memories, nil
}

// generate streams the model response, emitting PartialText per fragment and
// feeding completed sentences to the synthesis worker when chunking is on
func (p *Pipeline) generate(ctx context.Context, turn *models.Turn, window *models.ContextWindow,
	emit EventSink, synth *synthWorker) (string, error) {

	genCtx, cancel := context.WithTimeout(ctx, p.cfg.GenerateTimeout)
	defer cancel()

	stream, err := p.model.Generate(genCtx, window)
	if err != nil {
		return "", err
	}

	var response strings.Builder
	pending := ""
	for fragment := range stream.Fragments() {
		response.WriteString(fragment)
		emit(models.Event{
			Type:   models.EventPartialText,
			TurnID: turn.ID,
			At:     time.Now().UTC(),
			Text:   fragment,
		})

		if synth != nil && p.cfg.SynthesisChunking == ChunkingSentence {
			pending += fragment
			sentences, remainder := voice.SplitSentences(pending)
			for _, sentence := range sentences {
				synth.push(sentence)
			}
			pending = remainder
		}
	}

	if err := stream.Err(); err != nil {
		return "", err
	}

	if synth != nil {
		switch p.cfg.SynthesisChunking {
		case ChunkingSentence:
			if strings.TrimSpace(pending) != "" {
				synth.push(pending)
			}
		default:
			synth.push(response.String())
		}
	}

	return response.String(), nil
}

// persist upserts a summary of the completed exchange
func (p *Pipeline) persist(ctx context.Context, turn *models.Turn, transcript, response string) error {
	summary := fmt.Sprintf("User: %s\nRatatoskr: %s", transcript, response)
	return util.Retry(ctx, p.cfg.MaxRetries, p.cfg.RetryDelay, errs.IsTransient, func() error {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.MemoryTimeout)
		defer cancel()
		_, err := p.memory.Upsert(callCtx, summary, turn.ID)
		return err
	})
}

// asStageError annotates err with the failing stage
func asStageError(err error, stage string) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*errs.Error); ok {
		return e.WithStage(stage)
	}
	return (&errs.Error{Kind: errs.KindOf(err), Message: err.Error(), Err: err}).WithStage(stage)
}

// synthWorker synthesizes queued text chunks sequentially, streaming frames
// as PartialAudio events. After the first failure it drains remaining chunks
// without synthesizing so generation is never stalled.
type synthWorker struct {
	pipeline *Pipeline
	chunks   chan string
	done     chan struct{}
	err      error
}

func (p *Pipeline) startSynthWorker(ctx context.Context, turnID int64, emit EventSink) *synthWorker {
	w := &synthWorker{
		pipeline: p,
		chunks:   make(chan string, 16),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(w.done)
		for chunk := range w.chunks {
			if w.err != nil {
				continue
			}
			if err := p.speak(ctx, turnID, chunk, emit); err != nil {
				w.err = err
			}
		}
	}()

	return w
}

// push enqueues a chunk for synthesis
func (w *synthWorker) push(text string) {
	w.chunks <- text
}

// wait closes the queue and returns the first synthesis failure, if any
func (w *synthWorker) wait() error {
	close(w.chunks)
	<-w.done
	return w.err
}

// abort discards queued work after a generation failure
func (w *synthWorker) abort() {
	close(w.chunks)
	<-w.done
}

// speak synthesizes one chunk and streams its frames to the event sink
func (p *Pipeline) speak(ctx context.Context, turnID int64, text string, emit EventSink) error {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.SynthesizeTimeout)
	defer cancel()

	stream, err := p.voice.Synthesize(callCtx, text)
	if err != nil {
		return err
	}

	for frame := range stream.Frames() {
		emit(models.Event{
			Type:   models.EventPartialAudio,
			TurnID: turnID,
			At:     time.Now().UTC(),
			Audio:  frame,
		})
	}
	return stream.Err()
}
