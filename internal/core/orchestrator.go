// ABOUTME: Conversation orchestrator: FIFO turn queue, single-dispatcher generation, event fan-out
// ABOUTME: Turn N+1's early stages may overlap turn N's playback; generations never overlap
package core

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ratatoskr-ai/ratatoskr/internal/errs"
	"github.com/ratatoskr-ai/ratatoskr/internal/mode"
	"github.com/ratatoskr-ai/ratatoskr/internal/models"
)

const defaultQueueDepth = 64

// subscriber event buffer; a subscriber stalled past this loses events
// rather than stalling turn processing
const subscriberBuffer = 256

// Orchestrator owns the turn queue and is the sole invoker of generation,
// enforcing the at-most-one-active-generation rule by construction. Events
// of kind TurnStarted/TurnCompleted/TurnFailed are emitted in submission
// order even though a turn's synthesis and persistence drain concurrently
// with the next turn's transcription and retrieval.
type Orchestrator struct {
	modes    *mode.Controller
	pipeline *Pipeline

	queue  chan *models.Turn
	nextID atomic.Int64

	historyMu sync.Mutex
	history   []models.ContextEntry

	subMu       sync.Mutex
	subscribers []chan models.Event

	currentMu     sync.Mutex
	currentCancel context.CancelFunc
	currentTurnID int64

	ctx     context.Context
	stop    context.CancelFunc
	stopped sync.WaitGroup
}

// NewOrchestrator creates an orchestrator over the given mode controller and
// pipeline. Call Start before submitting turns and Close on shutdown.
func NewOrchestrator(modes *mode.Controller, pipeline *Pipeline) *Orchestrator {
	ctx, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		modes:    modes,
		pipeline: pipeline,
		queue:    make(chan *models.Turn, defaultQueueDepth),
		ctx:      ctx,
		stop:     stop,
	}
}

// Start launches the dispatcher loop
func (o *Orchestrator) Start() {
	o.stopped.Add(1)
	go o.dispatch()
}

// Close stops accepting turns, cancels in-flight work, and waits for the
// dispatcher to drain
func (o *Orchestrator) Close() {
	o.stop()
	o.stopped.Wait()

	o.subMu.Lock()
	for _, ch := range o.subscribers {
		close(ch)
	}
	o.subscribers = nil
	o.subMu.Unlock()
}

// GetMode returns the current interaction mode
func (o *Orchestrator) GetMode() models.InteractionMode {
	return o.modes.Current()
}

// SetMode switches the interaction mode for turns dispatched afterwards
func (o *Orchestrator) SetMode(m models.InteractionMode) {
	o.modes.Set(m)
}

// SubmitText enqueues a typed turn
func (o *Orchestrator) SubmitText(text string) (*models.Turn, error) {
	return o.submit(models.InputText, text, nil)
}

// SubmitAudio enqueues a spoken turn
func (o *Orchestrator) SubmitAudio(audio []byte) (*models.Turn, error) {
	return o.submit(models.InputAudio, "", audio)
}

// submit validates the input kind against the current mode and enqueues the
// turn. Rejected turns never reach the pipeline.
func (o *Orchestrator) submit(kind models.InputKind, text string, audio []byte) (*models.Turn, error) {
	current := o.modes.Current()
	if !current.Allows(kind) {
		return nil, errs.New(errs.KindUnsupportedInputKind,
			string(kind)+" input is not allowed in "+string(current)+" mode", nil)
	}

	turn := &models.Turn{
		ID:        o.nextID.Add(1),
		Mode:      current,
		Kind:      kind,
		Text:      text,
		Audio:     audio,
		CreatedAt: time.Now().UTC(),
	}

	select {
	case o.queue <- turn:
		return turn, nil
	case <-o.ctx.Done():
		return nil, errs.New(errs.KindCancelled, "orchestrator is shut down", nil)
	}
}

// CancelCurrent aborts the turn currently in flight, if any. The
// cancellation propagates into the model adapter and any active synthesis;
// queued turns are unaffected.
func (o *Orchestrator) CancelCurrent() bool {
	o.currentMu.Lock()
	defer o.currentMu.Unlock()
	if o.currentCancel == nil {
		return false
	}
	o.currentCancel()
	return true
}

// Subscribe returns an ordered event channel and an unsubscribe func. The
// channel closes on unsubscribe or orchestrator shutdown.
func (o *Orchestrator) Subscribe() (<-chan models.Event, func()) {
	ch := make(chan models.Event, subscriberBuffer)

	o.subMu.Lock()
	o.subscribers = append(o.subscribers, ch)
	o.subMu.Unlock()

	unsubscribe := func() {
		o.subMu.Lock()
		defer o.subMu.Unlock()
		for i, sub := range o.subscribers {
			if sub == ch {
				o.subscribers = append(o.subscribers[:i], o.subscribers[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

// emit broadcasts an event to all subscribers in order. The lock is held
// across the sends so an unsubscribe can never close a channel mid-send.
// A subscriber that stalls past its buffer loses events rather than
// stalling the conversation; the UI is a local, prompt consumer.
func (o *Orchestrator) emit(event models.Event) {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	for _, ch := range o.subscribers {
		select {
		case ch <- event:
		default:
			log.Printf("[Orchestrator] Dropping %s event for turn %d: subscriber buffer full",
				event.Type, event.TurnID)
		}
	}
}

// dispatch pulls turns in FIFO order. It waits for each turn's generation to
// end before dispatching the next, while the finished turn's synthesis and
// persistence keep draining on their own goroutine.
func (o *Orchestrator) dispatch() {
	defer o.stopped.Done()

	prevDone := make(chan struct{})
	close(prevDone)

	var tails sync.WaitGroup
	defer tails.Wait()

	for {
		var turn *models.Turn
		select {
		case turn = <-o.queue:
		case <-o.ctx.Done():
			return
		}

		genDone := make(chan struct{})
		turnDone := make(chan struct{})

		tails.Add(1)
		go func(turn *models.Turn, prev chan struct{}) {
			defer tails.Done()
			o.runTurn(turn, genDone, prev, turnDone)
		}(turn, prevDone)

		<-genDone
		prevDone = turnDone
	}
}

// runTurn executes one turn end to end. genDone is closed once generation
// has finished (or can never start); the terminal event waits for the
// previous turn's terminal event so the ordering invariant holds.
func (o *Orchestrator) runTurn(turn *models.Turn, genDone, prevDone, turnDone chan struct{}) {
	defer close(turnDone)

	var genOnce sync.Once
	releaseGeneration := func() { genOnce.Do(func() { close(genDone) }) }
	defer releaseGeneration()

	// Mode is frozen here, at dispatch; later Set calls do not affect this turn
	dispatchMode := o.modes.Current()

	o.emit(models.Event{Type: models.EventTurnStarted, TurnID: turn.ID, At: time.Now().UTC()})

	terminal := func(event models.Event) {
		<-prevDone
		o.emit(event)
	}

	// The mode may have changed while the turn sat queued; a now-disallowed
	// input kind fails at dispatch rather than running a forbidden stage
	if !dispatchMode.Allows(turn.Kind) {
		err := errs.New(errs.KindUnsupportedInputKind,
			string(turn.Kind)+" input is not allowed in "+string(dispatchMode)+" mode", nil)
		terminal(o.failureEvent(turn, err))
		return
	}

	ctx, cancel := context.WithCancel(o.ctx)
	defer cancel()
	o.setCurrent(turn.ID, cancel)
	defer o.clearCurrent(turn.ID)

	history := o.snapshotHistory()

	result, err := o.pipeline.Run(ctx, turn, dispatchMode, history, o.emit,
		func(transcript, response string, genErr error) {
			if genErr == nil {
				o.appendHistory(transcript, response)
			}
			releaseGeneration()
		})
	if err != nil {
		log.Printf("[Orchestrator] Turn %d failed: %v", turn.ID, err)
		terminal(o.failureEvent(turn, err))
		return
	}

	completed := models.Event{
		Type:     models.EventTurnCompleted,
		TurnID:   turn.ID,
		At:       time.Now().UTC(),
		Text:     result.Response,
		Relisten: dispatchMode == models.ModeVoiceOnly,
	}
	if result.PlaybackError != nil {
		log.Printf("[Orchestrator] Turn %d completed with playback error: %v", turn.ID, result.PlaybackError)
		completed.PlaybackError = result.PlaybackError.Error()
	}
	terminal(completed)
}

// failureEvent converts a pipeline error into a TurnFailed event carrying
// the failing stage, the error kind, and any partial model output
func (o *Orchestrator) failureEvent(turn *models.Turn, err error) models.Event {
	event := models.Event{
		Type:    models.EventTurnFailed,
		TurnID:  turn.ID,
		At:      time.Now().UTC(),
		Kind:    string(errs.KindOf(err)),
		Cause:   err.Error(),
		Partial: errs.PartialOf(err),
	}
	if e, ok := err.(*errs.Error); ok {
		event.Stage = e.Stage
	}
	return event
}

func (o *Orchestrator) setCurrent(turnID int64, cancel context.CancelFunc) {
	o.currentMu.Lock()
	o.currentTurnID = turnID
	o.currentCancel = cancel
	o.currentMu.Unlock()
}

func (o *Orchestrator) clearCurrent(turnID int64) {
	o.currentMu.Lock()
	if o.currentTurnID == turnID {
		o.currentCancel = nil
		o.currentTurnID = 0
	}
	o.currentMu.Unlock()
}

func (o *Orchestrator) snapshotHistory() []models.ContextEntry {
	o.historyMu.Lock()
	defer o.historyMu.Unlock()
	out := make([]models.ContextEntry, len(o.history))
	copy(out, o.history)
	return out
}

// appendHistory records a completed exchange for subsequent context windows
func (o *Orchestrator) appendHistory(userText, assistantText string) {
	o.historyMu.Lock()
	o.history = append(o.history,
		models.ContextEntry{Role: models.RoleUser, Text: userText},
		models.ContextEntry{Role: models.RoleAssistant, Text: assistantText},
	)
	o.historyMu.Unlock()
}
