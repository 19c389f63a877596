package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sentinel-worker-go/internal/models"
	"sentinel-worker-go/internal/services/confirm"
	"sentinel-worker-go/internal/services/detection"
	"sentinel-worker-go/internal/services/scoring"
)

var errNoFrame = errors.New("no frame")

type fakeFrame struct {
	n      int
	closed atomic.Bool
}

func (f *fakeFrame) Encode() ([]byte, error) {
	return []byte(fmt.Sprintf("raw-%d", f.n)), nil
}

func (f *fakeFrame) Annotate(res *models.DetectionResult) ([]byte, error) {
	return []byte(fmt.Sprintf("ann-%d", f.n)), nil
}

func (f *fakeFrame) Close() error {
	f.closed.Store(true)
	return nil
}

// fakeDevice serves frames from a channel, or generates them endlessly when
// frames is nil. Entries in failFirst make the first reads fail.
type fakeDevice struct {
	frames    chan *fakeFrame
	failFirst int32
	reads     atomic.Int32
	n         atomic.Int32
	closed    atomic.Bool
}

func (d *fakeDevice) Read() (Frame, error) {
	if d.reads.Add(1) <= d.failFirst {
		return nil, errNoFrame
	}
	if d.frames == nil {
		time.Sleep(time.Millisecond)
		return &fakeFrame{n: int(d.n.Add(1))}, nil
	}
	f, ok := <-d.frames
	if !ok {
		time.Sleep(time.Millisecond)
		return nil, errNoFrame
	}
	return f, nil
}

func (d *fakeDevice) Close() error {
	d.closed.Store(true)
	return nil
}

type fakeDetector struct {
	mu    sync.Mutex
	calls int
	fail  map[int]bool // call numbers that fail, 1-based
	out   []models.RawDetection
}

func (f *fakeDetector) Detect(ctx context.Context, frame []byte) ([]models.RawDetection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail[f.calls] {
		return nil, errors.New("inference failed")
	}
	return f.out, nil
}

func (f *fakeDetector) Close() error { return nil }

func (f *fakeDetector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingPublisher struct {
	msgs chan *models.FrameMessage
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{msgs: make(chan *models.FrameMessage, 1024)}
}

func (p *recordingPublisher) Broadcast(msg interface{}) {
	if fm, ok := msg.(*models.FrameMessage); ok {
		select {
		case p.msgs <- fm:
		default:
		}
	}
}

func (p *recordingPublisher) next(t *testing.T) *models.FrameMessage {
	t.Helper()
	select {
	case m := <-p.msgs:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame message")
		return nil
	}
}

type recordingAlerts struct {
	mu     sync.Mutex
	events []string
}

func (a *recordingAlerts) Dispatch(cameraID int, res *models.DetectionResult, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, *res.Alert)
}

func (a *recordingAlerts) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

type harness struct {
	m       *Manager
	pub     *recordingPublisher
	det     *fakeDetector
	devices map[int]*fakeDevice
	openErr error
}

func newHarness(t *testing.T, det *fakeDetector, devices map[int]*fakeDevice) *harness {
	t.Helper()

	reg := detection.NewRegistry(detection.LoaderFunc(func(ctx context.Context, path string) (detection.Detector, error) {
		return det, nil
	}))
	if err := reg.Init(context.Background(), "fake.onnx"); err != nil {
		t.Fatal(err)
	}
	pipeline := detection.NewPipeline(detection.PipelineConfig{
		PersonMinConfidence: 0.5,
		ObjectMinConfidence: 0.5,
		Confirm:             confirm.Config{WindowTicks: 3},
		AlertDecay:          5 * time.Second,
	}, reg, detection.DefaultClassTable(), scoring.NewScorer(scoring.DefaultConfig()))

	h := &harness{pub: newRecordingPublisher(), det: det, devices: devices}
	opener := func(id int) (Device, error) {
		if h.openErr != nil {
			return nil, h.openErr
		}
		d, ok := h.devices[id]
		if !ok {
			return nil, fmt.Errorf("no device %d", id)
		}
		return d, nil
	}

	h.m = NewManager(Config{
		CameraIDs: []int{0, 1},
		FrameSkip: 2,
	}, opener, pipeline, h.pub, zerolog.Nop())

	var clock atomic.Int64
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.m.now = func() time.Time {
		return base.Add(time.Duration(clock.Add(1)) * time.Millisecond)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.m.StopAll(ctx)
	})
	return h
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestFrameSkipReemitsCachedResult(t *testing.T) {
	dev := &fakeDevice{frames: make(chan *fakeFrame, 6)}
	h := newHarness(t, &fakeDetector{}, map[int]*fakeDevice{0: dev})
	t.Cleanup(func() { close(dev.frames) })

	frames := make([]*fakeFrame, 6)
	for i := range frames {
		frames[i] = &fakeFrame{n: i + 1}
		dev.frames <- frames[i]
	}

	if _, err := h.m.Start(0); err != nil {
		t.Fatal(err)
	}

	// tick 1 has nothing cached and emits nothing; ticks 2..6 emit
	msgs := make([]*models.FrameMessage, 5)
	for i := range msgs {
		msgs[i] = h.pub.next(t)
	}

	wantFrames := []string{"ann-2", "ann-2", "ann-4", "ann-4", "ann-6"}
	for i, m := range msgs {
		if string(m.Frame) != wantFrames[i] {
			t.Errorf("message %d frame = %s, want %s", i, m.Frame, wantFrames[i])
		}
		if m.CameraID != 0 || m.Type != models.MessageTypeFrame {
			t.Errorf("message %d = %+v", i, m)
		}
	}

	if msgs[1].Detections != msgs[0].Detections {
		t.Error("skip tick must re-emit the cached result unchanged")
	}
	if msgs[1].Timestamp == msgs[0].Timestamp {
		t.Error("re-emitted message must carry a fresh timestamp")
	}
	if msgs[2].Detections == msgs[1].Detections {
		t.Error("processed tick must produce a new result")
	}
	if h.det.callCount() != 3 {
		t.Errorf("detector calls = %d, want 3", h.det.callCount())
	}
	for _, f := range frames {
		waitFor(t, f.closed.Load)
	}
}

func TestDetectorFailureBehavesLikeSkip(t *testing.T) {
	dev := &fakeDevice{frames: make(chan *fakeFrame, 6)}
	det := &fakeDetector{fail: map[int]bool{1: true, 3: true}}
	h := newHarness(t, det, map[int]*fakeDevice{0: dev})
	t.Cleanup(func() { close(dev.frames) })

	for i := 1; i <= 6; i++ {
		dev.frames <- &fakeFrame{n: i}
	}
	if _, err := h.m.Start(0); err != nil {
		t.Fatal(err)
	}

	// tick 2 fails (nothing cached), tick 4 succeeds, tick 6 fails and re-emits tick 4
	want := []string{"ann-4", "ann-4", "ann-4"}
	for i, w := range want {
		if m := h.pub.next(t); string(m.Frame) != w {
			t.Errorf("message %d frame = %s, want %s", i, m.Frame, w)
		}
	}

	waitFor(t, func() bool {
		st := h.m.Stats()
		return len(st) == 1 && st[0].DetectorErrors == 2
	})
}

func TestTransientReadFailureRetries(t *testing.T) {
	dev := &fakeDevice{frames: make(chan *fakeFrame, 2), failFirst: 2}
	h := newHarness(t, &fakeDetector{}, map[int]*fakeDevice{0: dev})
	h.m.cfg.FrameRetryDelay = time.Millisecond
	t.Cleanup(func() { close(dev.frames) })

	dev.frames <- &fakeFrame{n: 1}
	dev.frames <- &fakeFrame{n: 2}
	if _, err := h.m.Start(0); err != nil {
		t.Fatal(err)
	}

	if m := h.pub.next(t); string(m.Frame) != "ann-2" {
		t.Errorf("frame = %s, want ann-2", m.Frame)
	}
	st := h.m.Stats()
	if len(st) != 1 || st[0].ReadErrors != 2 {
		t.Errorf("stats = %+v, want 2 read errors", st)
	}
}

func TestOpenFailureEndsSession(t *testing.T) {
	h := newHarness(t, &fakeDetector{}, nil)
	h.openErr = errors.New("device busy")

	started, err := h.m.Start(0)
	if err != nil || !started {
		t.Fatalf("Start = %v, %v", started, err)
	}
	waitFor(t, func() bool { return len(h.m.Active()) == 0 })

	// a later start is attempted afresh
	h.openErr = nil
	h.devices = map[int]*fakeDevice{0: {}}
	if started, _ := h.m.Start(0); !started {
		t.Error("camera should be startable after an open failure")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	h := newHarness(t, &fakeDetector{}, map[int]*fakeDevice{0: {}, 1: {}})

	if ok, err := h.m.Start(0); !ok || err != nil {
		t.Fatalf("first start = %v, %v", ok, err)
	}
	if ok, err := h.m.Start(0); ok || err != nil {
		t.Fatalf("second start = %v, %v", ok, err)
	}
	if _, err := h.m.Start(7); !errors.Is(err, ErrUnknownCamera) {
		t.Errorf("err = %v, want ErrUnknownCamera", err)
	}
	if n := h.m.StartAll(); n != 1 {
		t.Errorf("StartAll started %d, want 1", n)
	}
	if got := h.m.Active(); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("active = %v", got)
	}
}

func TestStopAllReleasesDevices(t *testing.T) {
	devs := map[int]*fakeDevice{0: {}, 1: {}}
	h := newHarness(t, &fakeDetector{}, devs)
	h.m.StartAll()

	h.pub.next(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.m.StopAll(ctx); err != nil {
		t.Fatalf("StopAll: %v", err)
	}
	if len(h.m.Active()) != 0 {
		t.Errorf("active = %v", h.m.Active())
	}
	for id, d := range devs {
		if !d.closed.Load() {
			t.Errorf("device %d not released", id)
		}
	}
}

func TestStopSingleCamera(t *testing.T) {
	devs := map[int]*fakeDevice{0: {}, 1: {}}
	h := newHarness(t, &fakeDetector{}, devs)
	h.m.StartAll()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	stopped, err := h.m.Stop(ctx, 1)
	if err != nil || !stopped {
		t.Fatalf("Stop = %v, %v", stopped, err)
	}
	if !devs[1].closed.Load() {
		t.Error("Stop returned before the device was released")
	}
	if got := h.m.Active(); len(got) != 1 || got[0] != 0 {
		t.Errorf("active = %v", got)
	}
	if stopped, _ := h.m.Stop(ctx, 1); stopped {
		t.Error("stopping an idle camera should report false")
	}
}

// slowDevice takes a while per read so a cancelled session keeps its device
// open for up to one read after Stop.
type slowDevice struct {
	open *atomic.Int32
	n    atomic.Int32
}

func (d *slowDevice) Read() (Frame, error) {
	time.Sleep(50 * time.Millisecond)
	return &fakeFrame{n: int(d.n.Add(1))}, nil
}

func (d *slowDevice) Close() error {
	d.open.Add(-1)
	return nil
}

func TestRestartNeverOpensDeviceTwice(t *testing.T) {
	h := newHarness(t, &fakeDetector{}, nil)

	var open, maxOpen, opens atomic.Int32
	h.m.opener = func(id int) (Device, error) {
		n := open.Add(1)
		opens.Add(1)
		for {
			cur := maxOpen.Load()
			if n <= cur || maxOpen.CompareAndSwap(cur, n) {
				break
			}
		}
		return &slowDevice{open: &open}, nil
	}

	// a stop whose wait is cut short leaves the old session releasing
	for i := 0; i < 3; i++ {
		if ok, err := h.m.Start(0); err != nil || !ok {
			t.Fatalf("Start #%d = %v, %v", i, ok, err)
		}
		waitFor(t, func() bool { return opens.Load() == int32(i+1) })

		expired, cancel := context.WithCancel(context.Background())
		cancel()
		if stopped, _ := h.m.Stop(expired, 0); !stopped {
			t.Fatalf("Stop #%d reported no live session", i)
		}
	}

	ok, err := h.m.Start(0)
	if err != nil || !ok {
		t.Fatalf("final Start = %v, %v", ok, err)
	}
	waitFor(t, func() bool { return opens.Load() == 4 })

	if got := maxOpen.Load(); got != 1 {
		t.Errorf("max concurrently open devices for camera 0 = %d, want 1", got)
	}
	if got := h.m.Active(); len(got) != 1 || got[0] != 0 {
		t.Errorf("active = %v", got)
	}
}

func TestAlertDispatchedOnEdgeOnly(t *testing.T) {
	det := &fakeDetector{out: []models.RawDetection{
		{ClassID: 43, Confidence: 0.9, BBox: models.BBox{0, 0, 10, 10}},
	}}
	dev := &fakeDevice{frames: make(chan *fakeFrame, 6)}
	h := newHarness(t, det, map[int]*fakeDevice{0: dev})
	sink := &recordingAlerts{}
	h.m.SetAlertSink(sink)
	t.Cleanup(func() { close(dev.frames) })

	for i := 1; i <= 6; i++ {
		dev.frames <- &fakeFrame{n: i}
	}
	h.m.Start(0)

	first := h.pub.next(t)
	if first.Detections.Alert == nil {
		t.Fatal("first processed tick should carry the alert")
	}
	for i := 0; i < 4; i++ {
		m := h.pub.next(t)
		if m.Detections != first.Detections && m.Detections.Alert != nil {
			t.Error("alert repeated on a later processed tick")
		}
	}
	if sink.count() != 1 {
		t.Errorf("alerts dispatched = %d, want 1", sink.count())
	}
}
