package internal_recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	internal_scheduler "github.com/shiraai/api/conversation-api/internal/scheduler"
	internal_type "github.com/shiraai/api/conversation-api/internal/type"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type fakePermissions struct {
	mu      sync.Mutex
	granted bool
	err     error
	calls   int
}

func (p *fakePermissions) RequestPermission(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.granted, p.err
}

// fakeDevice hands out captures whose duration is the running time measured
// on now. Failures are keyed by capture index, counted from zero.
type fakeDevice struct {
	now func() time.Time

	mu        sync.Mutex
	captures  []*fakeCapture
	failNew   map[int]bool
	failStart map[int]bool
	failStop  map[int]bool
	empty     map[int]bool
}

func newFakeDevice(now func() time.Time) *fakeDevice {
	return &fakeDevice{
		now:       now,
		failNew:   map[int]bool{},
		failStart: map[int]bool{},
		failStop:  map[int]bool{},
		empty:     map[int]bool{},
	}
}

func (d *fakeDevice) NewCapture(opts internal_type.CaptureOptions) (internal_type.Capture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := len(d.captures)
	c := &fakeCapture{dev: d, idx: idx, opts: opts}
	d.captures = append(d.captures, c)
	if d.failNew[idx] {
		return nil, fmt.Errorf("device busy %d", idx)
	}
	return c, nil
}

func (d *fakeDevice) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.captures)
}

func (d *fakeDevice) capture(i int) *fakeCapture {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.captures[i]
}

type fakeCapture struct {
	dev  *fakeDevice
	idx  int
	opts internal_type.CaptureOptions

	running    bool
	paused     bool
	stopped    bool
	lastResume time.Time
	acc        time.Duration
}

func (c *fakeCapture) Start(ctx context.Context) error {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	if c.dev.failStart[c.idx] {
		return fmt.Errorf("start failed %d", c.idx)
	}
	c.running = true
	c.lastResume = c.dev.now()
	return nil
}

func (c *fakeCapture) Pause(ctx context.Context) error {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	c.acc += c.dev.now().Sub(c.lastResume)
	c.running = false
	c.paused = true
	return nil
}

func (c *fakeCapture) Resume(ctx context.Context) error {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	c.running = true
	c.paused = false
	c.lastResume = c.dev.now()
	return nil
}

func (c *fakeCapture) Stop(ctx context.Context) (internal_type.CaptureResult, error) {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	if c.running {
		c.acc += c.dev.now().Sub(c.lastResume)
	}
	c.running = false
	c.stopped = true
	if c.dev.failStop[c.idx] {
		return internal_type.CaptureResult{}, fmt.Errorf("stop failed %d", c.idx)
	}
	if c.dev.empty[c.idx] {
		return internal_type.CaptureResult{Format: "wav"}, nil
	}
	return internal_type.CaptureResult{
		URI:      fmt.Sprintf("mem://capture-%d", c.idx),
		Format:   "wav",
		Duration: c.acc,
	}, nil
}

type fakeQueue struct {
	mu       sync.Mutex
	chunks   []internal_type.Chunk
	triggers int
}

func (q *fakeQueue) Enqueue(chunk internal_type.Chunk) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.chunks = append(q.chunks, chunk)
}

func (q *fakeQueue) Trigger() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.triggers++
}

func (q *fakeQueue) snapshot() ([]internal_type.Chunk, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]internal_type.Chunk(nil), q.chunks...), q.triggers
}

type harness struct {
	clock   *internal_scheduler.Manual
	perms   *fakePermissions
	device  *fakeDevice
	queue   *fakeQueue
	ctrl    *Controller
	errorsM sync.Mutex
	errors  []error
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		clock: internal_scheduler.NewManual(epoch),
		perms: &fakePermissions{granted: true},
		queue: &fakeQueue{},
	}
	h.device = newFakeDevice(h.clock.Now)
	all := append([]Option{
		WithScheduler(h.clock),
		WithRotationErrorHook(func(_ string, err error) {
			h.errorsM.Lock()
			h.errors = append(h.errors, err)
			h.errorsM.Unlock()
		}),
	}, opts...)
	h.ctrl = NewController(commons.NewNopLogger(), h.perms, h.device, h.queue, all...)
	return h
}

func (h *harness) start(t *testing.T, d time.Duration) string {
	t.Helper()
	id, err := h.ctrl.Start(context.Background(), internal_type.RecordingOptions{
		ConversationID: "conv-1",
		UserID:         "user-1",
		ChunkDuration:  d,
	})
	require.NoError(t, err)
	return id
}

func sequences(chunks []internal_type.Chunk) []int {
	out := make([]int, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.SequenceNumber)
	}
	return out
}

func TestController_ThreeChunksAfter4100ms(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, 2000*time.Millisecond)
	assert.Equal(t, internal_type.StatusRecording, h.ctrl.Status())

	h.clock.Advance(4100 * time.Millisecond)
	session, err := h.ctrl.Stop(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.Equal(t, id, session.ID)
	assert.Equal(t, internal_type.StatusStopped, session.Status)
	assert.Equal(t, 4100*time.Millisecond, session.TotalDuration)
	require.Len(t, session.Chunks, 3)
	assert.Equal(t, []int{1, 2, 3}, sequences(session.Chunks))
	assert.Equal(t, []string{"chunk_1", "chunk_2", "chunk_3"},
		[]string{session.Chunks[0].ID, session.Chunks[1].ID, session.Chunks[2].ID})
	assert.Equal(t, 2000*time.Millisecond, session.Chunks[0].Duration)
	assert.Equal(t, 2000*time.Millisecond, session.Chunks[1].Duration)
	assert.Equal(t, 100*time.Millisecond, session.Chunks[2].Duration)
	for _, c := range session.Chunks {
		assert.Equal(t, "conv-1", c.ConversationID)
		assert.Equal(t, "user-1", c.UserID)
		assert.Equal(t, id, c.SessionID)
	}

	queued, triggers := h.queue.snapshot()
	assert.Equal(t, session.Chunks, queued)
	assert.Equal(t, 1, triggers)
	assert.Equal(t, internal_type.StatusIdle, h.ctrl.Status())
	assert.Nil(t, h.ctrl.CurrentSession())
}

func TestController_ChunkCountFollowsDuration(t *testing.T) {
	for _, d := range []time.Duration{500 * time.Millisecond, time.Second, 1500 * time.Millisecond, 3 * time.Second} {
		for _, l := range []time.Duration{300 * time.Millisecond, 2500 * time.Millisecond, 7300 * time.Millisecond} {
			t.Run(fmt.Sprintf("%s/%s", d, l), func(t *testing.T) {
				h := newHarness(t)
				h.start(t, d)
				h.clock.Advance(l)
				session, err := h.ctrl.Stop(context.Background())
				require.NoError(t, err)
				want := int(l/d) + 1
				assert.Len(t, session.Chunks, want)
				assert.Equal(t, l, session.TotalDuration)
			})
		}
	}
}

func TestController_DefaultChunkDuration(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctrl.Start(context.Background(), internal_type.RecordingOptions{ConversationID: "c"})
	require.NoError(t, err)
	h.clock.Advance(1999 * time.Millisecond)
	chunks, _ := h.queue.snapshot()
	assert.Empty(t, chunks)
	h.clock.Advance(time.Millisecond)
	chunks, _ = h.queue.snapshot()
	assert.Len(t, chunks, 1)
}

func TestController_SequenceContiguousAcrossFailedRotations(t *testing.T) {
	h := newHarness(t)
	h.device.failStop[1] = true
	h.device.failStop[3] = true
	h.start(t, time.Second)

	h.clock.Advance(5500 * time.Millisecond)
	session, err := h.ctrl.Stop(context.Background())
	require.NoError(t, err)

	// six captures, two lost
	assert.Equal(t, 6, h.device.count())
	assert.Equal(t, []int{1, 2, 3, 4}, sequences(session.Chunks))
	assert.Equal(t, "mem://capture-0", session.Chunks[0].URI)
	assert.Equal(t, "mem://capture-2", session.Chunks[1].URI)
	require.Len(t, h.errors, 2)
	for _, err := range h.errors {
		assert.ErrorIs(t, err, internal_type.ErrCaptureFailure)
		assert.NotErrorIs(t, err, internal_type.ErrRecordingPaused, "a lost chunk keeps recording")
	}
}

func TestController_EmptyCaptureProducesNoChunk(t *testing.T) {
	h := newHarness(t)
	h.device.empty[0] = true
	h.device.empty[2] = true
	h.start(t, time.Second)
	h.clock.Advance(2 * time.Second)
	session, err := h.ctrl.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, sequences(session.Chunks))
	assert.Equal(t, "mem://capture-1", session.Chunks[0].URI)
	assert.Equal(t, 3, h.device.count(), "recording continues after an empty capture")
}

func TestController_RotationOpenFailurePausesSession(t *testing.T) {
	h := newHarness(t)
	h.device.failStart[1] = true
	h.start(t, time.Second)

	h.clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, internal_type.StatusPaused, h.ctrl.Status())
	require.Len(t, h.errors, 1)
	assert.ErrorIs(t, h.errors[0], internal_type.ErrCaptureFailure)
	assert.ErrorIs(t, h.errors[0], internal_type.ErrRecordingPaused)

	// timer is disarmed while paused
	h.clock.Advance(5 * time.Second)
	assert.Equal(t, 2, h.device.count())

	require.NoError(t, h.ctrl.Resume(context.Background()))
	assert.Equal(t, internal_type.StatusRecording, h.ctrl.Status())
	h.clock.Advance(time.Second)
	session, err := h.ctrl.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, sequences(session.Chunks))
}

func TestController_PauseResume(t *testing.T) {
	h := newHarness(t)
	h.start(t, 1500*time.Millisecond)
	ctx := context.Background()

	h.clock.Advance(1600 * time.Millisecond) // one rotation at 1500
	require.NoError(t, h.ctrl.Pause(ctx))
	assert.Equal(t, internal_type.StatusPaused, h.ctrl.Status())
	assert.True(t, h.device.capture(1).paused)

	h.clock.Advance(10 * time.Second)
	chunks, _ := h.queue.snapshot()
	assert.Len(t, chunks, 1, "no rotation while paused")

	require.NoError(t, h.ctrl.Resume(ctx))
	h.clock.Advance(1400 * time.Millisecond)
	chunks, _ = h.queue.snapshot()
	assert.Len(t, chunks, 1, "resume re-arms with the session chunk duration")
	h.clock.Advance(100 * time.Millisecond)
	chunks, _ = h.queue.snapshot()
	require.Len(t, chunks, 2)
	// 100ms before the pause plus 1500ms after resume
	assert.Equal(t, 1600*time.Millisecond, chunks[1].Duration)
	assert.Equal(t, 3, h.device.count(), "pause keeps the same capture")
}

func TestController_PauseIsNoopWhenNotRecording(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Pause(ctx))
	assert.Equal(t, internal_type.StatusIdle, h.ctrl.Status())
	require.NoError(t, h.ctrl.Resume(ctx))
	assert.Equal(t, internal_type.StatusIdle, h.ctrl.Status())

	h.start(t, time.Second)
	_, err := h.ctrl.Stop(ctx)
	require.NoError(t, err)

	require.NoError(t, h.ctrl.Pause(ctx))
	assert.Equal(t, internal_type.StatusIdle, h.ctrl.Status())
	assert.Equal(t, 1, h.device.count())

	h.start(t, time.Second)
	require.NoError(t, h.ctrl.Pause(ctx))
	require.NoError(t, h.ctrl.Pause(ctx))
	assert.Equal(t, internal_type.StatusPaused, h.ctrl.Status())
}

func TestController_StopTwice(t *testing.T) {
	h := newHarness(t)
	h.start(t, time.Second)
	ctx := context.Background()

	first, err := h.ctrl.Stop(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	chunksBefore, triggersBefore := h.queue.snapshot()
	capturesBefore := h.device.count()

	second, err := h.ctrl.Stop(ctx)
	require.NoError(t, err)
	assert.Nil(t, second)

	chunksAfter, triggersAfter := h.queue.snapshot()
	assert.Equal(t, chunksBefore, chunksAfter)
	assert.Equal(t, triggersBefore, triggersAfter)
	assert.Equal(t, capturesBefore, h.device.count())
}

func TestController_StopWhilePausedFinalizesCapture(t *testing.T) {
	h := newHarness(t)
	h.start(t, 2*time.Second)
	ctx := context.Background()
	h.clock.Advance(700 * time.Millisecond)
	require.NoError(t, h.ctrl.Pause(ctx))
	h.clock.Advance(time.Second)

	session, err := h.ctrl.Stop(ctx)
	require.NoError(t, err)
	require.Len(t, session.Chunks, 1)
	assert.Equal(t, 700*time.Millisecond, session.Chunks[0].Duration)
	assert.Equal(t, 1700*time.Millisecond, session.TotalDuration)
}

func TestController_StopReportsFinalCaptureFailure(t *testing.T) {
	h := newHarness(t)
	h.device.failStop[0] = true
	h.start(t, time.Second)

	session, err := h.ctrl.Stop(context.Background())
	assert.ErrorIs(t, err, internal_type.ErrCaptureFailure)
	require.NotNil(t, session)
	assert.Equal(t, internal_type.StatusStopped, session.Status)
	assert.Empty(t, session.Chunks)
	assert.Equal(t, internal_type.StatusIdle, h.ctrl.Status())
}

func TestController_StartStopsExistingSession(t *testing.T) {
	for _, pause := range []bool{false, true} {
		t.Run(fmt.Sprintf("paused=%t", pause), func(t *testing.T) {
			h := newHarness(t)
			first := h.start(t, time.Second)
			h.clock.Advance(500 * time.Millisecond)
			if pause {
				require.NoError(t, h.ctrl.Pause(context.Background()))
			}
			second := h.start(t, time.Second)
			assert.NotEqual(t, first, second)

			chunks, triggers := h.queue.snapshot()
			require.Len(t, chunks, 1)
			assert.Equal(t, first, chunks[0].SessionID)
			assert.Equal(t, 1, triggers)

			h.clock.Advance(time.Second)
			chunks, _ = h.queue.snapshot()
			require.Len(t, chunks, 2)
			assert.Equal(t, second, chunks[1].SessionID)
			assert.Equal(t, 2, chunks[1].SequenceNumber, "numbering continues within the conversation")
		})
	}
}

type fakeSequences struct {
	last map[string]int
	err  error
}

func (s *fakeSequences) LastSequenceNumber(ctx context.Context, conversationID string) (int, error) {
	return s.last[conversationID], s.err
}

func TestController_SequenceContinuesAcrossSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.start(t, time.Second)
	h.clock.Advance(1500 * time.Millisecond)
	first, err := h.ctrl.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, sequences(first.Chunks))
	assert.Equal(t, 1, first.FirstSequence)

	h.start(t, time.Second)
	h.clock.Advance(1500 * time.Millisecond)
	second, err := h.ctrl.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, sequences(second.Chunks))
	assert.Equal(t, "chunk_3", second.Chunks[0].ID)

	// another conversation has its own numbering
	_, err = h.ctrl.Start(ctx, internal_type.RecordingOptions{ConversationID: "conv-2", ChunkDuration: time.Second})
	require.NoError(t, err)
	other, err := h.ctrl.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, sequences(other.Chunks))
}

func TestController_SequenceSeededFromSource(t *testing.T) {
	src := &fakeSequences{last: map[string]int{"conv-1": 7}}
	h := newHarness(t, WithSequenceSource(src))
	ctx := context.Background()

	h.start(t, time.Second)
	h.clock.Advance(1500 * time.Millisecond)
	session, err := h.ctrl.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 9}, sequences(session.Chunks))

	// a source lagging behind this controller does not rewind numbering
	h.start(t, time.Second)
	session, err = h.ctrl.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{10}, sequences(session.Chunks))
}

func TestController_SequenceSourceFailure(t *testing.T) {
	src := &fakeSequences{err: errors.New("connection refused")}
	h := newHarness(t, WithSequenceSource(src))
	_, err := h.ctrl.Start(context.Background(), internal_type.RecordingOptions{ConversationID: "conv-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, internal_type.StatusIdle, h.ctrl.Status())
	assert.Zero(t, h.device.count())
}

func TestController_PermissionDenied(t *testing.T) {
	h := newHarness(t)
	h.perms.granted = false
	_, err := h.ctrl.Start(context.Background(), internal_type.RecordingOptions{ConversationID: "c"})
	assert.ErrorIs(t, err, internal_type.ErrPermissionDenied)
	assert.Equal(t, internal_type.StatusIdle, h.ctrl.Status())
	assert.Zero(t, h.device.count())

	h.perms.err = errors.New("prompt dismissed")
	_, err = h.ctrl.Start(context.Background(), internal_type.RecordingOptions{ConversationID: "c"})
	assert.ErrorIs(t, err, internal_type.ErrPermissionDenied)
}

func TestController_PermissionRequestedOnce(t *testing.T) {
	h := newHarness(t)
	h.start(t, time.Second)
	h.start(t, time.Second)
	assert.Equal(t, 1, h.perms.calls)
}

func TestController_StartCaptureFailure(t *testing.T) {
	h := newHarness(t)
	h.device.failNew[0] = true
	_, err := h.ctrl.Start(context.Background(), internal_type.RecordingOptions{ConversationID: "c"})
	assert.ErrorIs(t, err, internal_type.ErrCaptureFailure)
	assert.Equal(t, internal_type.StatusIdle, h.ctrl.Status())
	assert.Zero(t, h.clock.Pending())

	h.device.failStart[1] = true
	_, err = h.ctrl.Start(context.Background(), internal_type.RecordingOptions{ConversationID: "c"})
	assert.ErrorIs(t, err, internal_type.ErrCaptureFailure)
}

func TestController_InvalidOptions(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctrl.Start(context.Background(), internal_type.RecordingOptions{})
	assert.Error(t, err)
	_, err = h.ctrl.Start(context.Background(), internal_type.RecordingOptions{ConversationID: "c", Quality: "ultra"})
	assert.Error(t, err)
	assert.Zero(t, h.perms.calls)
}

func TestController_StaleTickIsIgnored(t *testing.T) {
	h := newHarness(t)
	first := h.start(t, time.Second)
	staleGen := h.ctrl.generation

	require.NoError(t, h.ctrl.Pause(context.Background()))
	require.NoError(t, h.ctrl.Resume(context.Background()))

	h.ctrl.tick(first, staleGen)
	chunks, _ := h.queue.snapshot()
	assert.Empty(t, chunks)

	h.ctrl.tick("other-session", h.ctrl.generation)
	chunks, _ = h.queue.snapshot()
	assert.Empty(t, chunks)

	h.ctrl.tick(first, h.ctrl.generation)
	chunks, _ = h.queue.snapshot()
	assert.Len(t, chunks, 1)
}

func TestController_Cleanup(t *testing.T) {
	h := newHarness(t)
	h.start(t, time.Second)
	h.clock.Advance(1500 * time.Millisecond)
	h.ctrl.Cleanup(context.Background())

	assert.Equal(t, internal_type.StatusIdle, h.ctrl.Status())
	assert.Zero(t, h.clock.Pending())
	assert.True(t, h.device.capture(1).stopped)
	chunks, _ := h.queue.snapshot()
	assert.Len(t, chunks, 1, "cleanup does not produce a final chunk")
}

func TestController_CurrentSessionIsCopy(t *testing.T) {
	h := newHarness(t)
	h.start(t, time.Second)
	h.clock.Advance(2500 * time.Millisecond)

	s := h.ctrl.CurrentSession()
	require.NotNil(t, s)
	assert.Len(t, s.Chunks, 2)
	assert.Equal(t, 2500*time.Millisecond, s.TotalDuration)
	s.Chunks[0].SequenceNumber = 99
	s.Status = internal_type.StatusStopped

	again := h.ctrl.CurrentSession()
	assert.Equal(t, 1, again.Chunks[0].SequenceNumber)
	assert.Equal(t, internal_type.StatusRecording, again.Status)
}

func TestController_Hooks(t *testing.T) {
	var seen []int
	m := metrics.NewMetrics()
	h := newHarness(t,
		WithChunkHook(func(c internal_type.Chunk) { seen = append(seen, c.SequenceNumber) }),
		WithMetrics(m),
		WithSessionIDGenerator(func() string { return "fixed" }),
	)
	id := h.start(t, time.Second)
	assert.Equal(t, "fixed", id)
	h.clock.Advance(2 * time.Second)
	_, err := h.ctrl.Stop(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.RecordingChunksTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RecordingSessionsTotal.WithLabelValues("start")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RecordingSessionsTotal.WithLabelValues("stop")))
}

func TestController_ConcurrentTransitionsWithRealTimer(t *testing.T) {
	perms := &fakePermissions{granted: true}
	device := newFakeDevice(time.Now)
	queue := &fakeQueue{}
	ctrl := NewController(commons.NewNopLogger(), perms, device, queue)
	ctx := context.Background()

	_, err := ctrl.Start(ctx, internal_type.RecordingOptions{ConversationID: "c", ChunkDuration: 2 * time.Millisecond})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = ctrl.Pause(ctx)
				time.Sleep(time.Millisecond)
				_ = ctrl.Resume(ctx)
				_ = ctrl.CurrentSession()
			}
		}()
	}
	wg.Wait()
	session, err := ctrl.Stop(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)

	for i, c := range session.Chunks {
		assert.Equal(t, i+1, c.SequenceNumber)
	}
	queued, _ := queue.snapshot()
	assert.Equal(t, session.Chunks, queued)
}
