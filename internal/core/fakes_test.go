// ABOUTME: In-memory fakes for the adapter interfaces used by pipeline and orchestrator tests
// ABOUTME: Deterministic streams, scriptable failures, and call recording

package core

import (
	"context"
	"sync"

	"github.com/ratatoskr-ai/ratatoskr/internal/errs"
	"github.com/ratatoskr-ai/ratatoskr/internal/models"
)

// fakeGenStream replays canned fragments, then reports a scripted error
type fakeGenStream struct {
	fragments chan string
	err       error
	partial   []string
}

func newFakeGenStream(fragments []string, err error) *fakeGenStream {
	ch := make(chan string, len(fragments))
	for _, f := range fragments {
		ch <- f
	}
	close(ch)
	return &fakeGenStream{fragments: ch, err: err, partial: fragments}
}

func (s *fakeGenStream) Fragments() <-chan string { return s.fragments }
func (s *fakeGenStream) Err() error               { return s.err }
func (s *fakeGenStream) Partial() []string        { return s.partial }
func (s *fakeGenStream) Cancel()                  {}

// blockingStream emits its fragments and then stalls until the context is
// cancelled, simulating a generation that never finishes on its own
type blockingStream struct {
	ch      chan string
	mu      sync.Mutex
	err     error
	partial []string
}

func newBlockingStream(ctx context.Context, fragments []string) *blockingStream {
	s := &blockingStream{ch: make(chan string)}
	go func() {
		defer close(s.ch)
		for _, f := range fragments {
			select {
			case s.ch <- f:
				s.mu.Lock()
				s.partial = append(s.partial, f)
				s.mu.Unlock()
			case <-ctx.Done():
				s.setErr(ctx)
				return
			}
		}
		<-ctx.Done()
		s.setErr(ctx)
	}()
	return s
}

func (s *blockingStream) setErr(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := errs.FromContext(ctx, "generation"); e != nil {
		e.Partial = append([]string(nil), s.partial...)
		s.err = e
	}
}

func (s *blockingStream) Fragments() <-chan string { return s.ch }

func (s *blockingStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *blockingStream) Partial() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.partial...)
}

func (s *blockingStream) Cancel() {}

// fakeModel scripts generation behavior and records the context windows it saw
type fakeModel struct {
	mu       sync.Mutex
	windows  []*models.ContextWindow
	startErr error
	streamErr error
	fragments []string
	blocking  bool
}

func (m *fakeModel) Generate(ctx context.Context, window *models.ContextWindow) (GenerationStream, error) {
	m.mu.Lock()
	m.windows = append(m.windows, window)
	m.mu.Unlock()

	if m.startErr != nil {
		return nil, m.startErr
	}
	if m.blocking {
		return newBlockingStream(ctx, m.fragments), nil
	}
	return newFakeGenStream(m.fragments, m.streamErr), nil
}

func (m *fakeModel) lastWindow() *models.ContextWindow {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.windows) == 0 {
		return nil
	}
	return m.windows[len(m.windows)-1]
}

// fakeAudioStream replays canned frames
type fakeAudioStream struct {
	frames chan []byte
	err    error
}

func newFakeAudioStream(frames [][]byte, err error) *fakeAudioStream {
	ch := make(chan []byte, len(frames))
	for _, f := range frames {
		ch <- f
	}
	close(ch)
	return &fakeAudioStream{frames: ch, err: err}
}

func (s *fakeAudioStream) Frames() <-chan []byte { return s.frames }
func (s *fakeAudioStream) Err() error            { return s.err }
func (s *fakeAudioStream) Cancel()               {}

// fakeVoice scripts transcription and synthesis behavior. When gate is set,
// synthesized streams produce no frames and stay open until gate is closed.
type fakeVoice struct {
	mu              sync.Mutex
	transcript      string
	transcribeErrs  []error // consumed one per call; nil entries mean success
	transcribeCalls int
	synthStartErr   error
	synthStreamErr  error
	synthFrames     [][]byte
	synthCalls      []string
	gate            chan struct{}
}

func (v *fakeVoice) Transcribe(ctx context.Context, turnID int64, audio []byte) (*models.Transcript, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.transcribeCalls++
	if len(v.transcribeErrs) > 0 {
		err := v.transcribeErrs[0]
		v.transcribeErrs = v.transcribeErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &models.Transcript{TurnID: turnID, Text: v.transcript}, nil
}

func (v *fakeVoice) Synthesize(ctx context.Context, text string) (AudioStream, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.synthStartErr != nil {
		return nil, v.synthStartErr
	}
	v.synthCalls = append(v.synthCalls, text)
	if v.gate != nil {
		ch := make(chan []byte)
		gate := v.gate
		go func() {
			<-gate
			close(ch)
		}()
		return &fakeAudioStream{frames: ch}, nil
	}
	frames := v.synthFrames
	if frames == nil {
		frames = [][]byte{[]byte("frame")}
	}
	return newFakeAudioStream(frames, v.synthStreamErr), nil
}

func (v *fakeVoice) calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.transcribeCalls
}

func (v *fakeVoice) synthesized() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.synthCalls...)
}

// fakeMemory scripts retrieval results and records upserted summaries
type fakeMemory struct {
	mu           sync.Mutex
	queryResults []models.MemorySearchResult
	queryErrs    []error // consumed one per call; nil entries mean success
	upsertErrs   []error // consumed one per call; nil entries mean success
	upserts      []string
}

func (m *fakeMemory) Upsert(ctx context.Context, text string, turnID int64) (*models.MemoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.upsertErrs) > 0 {
		err := m.upsertErrs[0]
		m.upsertErrs = m.upsertErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	m.upserts = append(m.upserts, text)
	return &models.MemoryRecord{ID: models.NewMemoryID(), Text: text, TurnID: turnID}, nil
}

func (m *fakeMemory) Query(ctx context.Context, text string, k int) ([]models.MemorySearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queryErrs) > 0 {
		err := m.queryErrs[0]
		m.queryErrs = m.queryErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(m.queryResults) > k {
		return m.queryResults[:k], nil
	}
	return m.queryResults, nil
}

func (m *fakeMemory) persisted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.upserts...)
}

// eventCollector accumulates emitted events behind a mutex
type eventCollector struct {
	mu     sync.Mutex
	events []models.Event
}

func (c *eventCollector) sink(event models.Event) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
}

func (c *eventCollector) all() []models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Event(nil), c.events...)
}

func (c *eventCollector) ofType(eventType models.EventType) []models.Event {
	var out []models.Event
	for _, e := range c.all() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
