package connect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/osa030/soundqueue/internal/app/notification"
	"github.com/osa030/soundqueue/internal/app/playback"
	"github.com/osa030/soundqueue/internal/domain/playlist"
	"github.com/osa030/soundqueue/internal/domain/sound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

const testToken = "secret"

type fakePlayer struct {
	mu       sync.Mutex
	calls    []string
	plays    []playback.PlayOptions
	preloads []playback.Selector
	seeks    []float64
	seekIDs  []*sound.ID
	volume   int
	muted    bool
	loop     bool
	visible  *bool
	infos    []playback.Info
	index    int
	err      error
}

func (f *fakePlayer) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakePlayer) Play(_ context.Context, opts playback.PlayOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays = append(f.plays, opts)
	return f.err
}

func (f *fakePlayer) Pause() { f.record("pause") }
func (f *fakePlayer) Stop()  { f.record("stop") }

func (f *fakePlayer) Next(context.Context) error     { f.record("next"); return f.err }
func (f *fakePlayer) Previous(context.Context) error { f.record("previous"); return f.err }
func (f *fakePlayer) First(context.Context) error    { f.record("first"); return f.err }
func (f *fakePlayer) Last(context.Context) error     { f.record("last"); return f.err }
func (f *fakePlayer) ResetQueue()                    { f.record("reset") }

func (f *fakePlayer) Snapshot() ([]playback.Info, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.infos, f.index
}

func (f *fakePlayer) SetVolume(v int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
}

func (f *fakePlayer) GetVolume() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

func (f *fakePlayer) Mute()   { f.record("mute") }
func (f *fakePlayer) UnMute() { f.record("unmute") }

func (f *fakePlayer) IsMuted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

func (f *fakePlayer) SetPosition(_ context.Context, percent float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, percent)
	return f.err
}

func (f *fakePlayer) SetPositionInSeconds(_ context.Context, position time.Duration, id *sound.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, position.Seconds())
	f.seekIDs = append(f.seekIDs, id)
	return f.err
}

func (f *fakePlayer) SetLoopQueue(loop bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loop = loop
}

func (f *fakePlayer) GetLoopQueue() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loop
}

func (f *fakePlayer) SetVisibility(visible bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = &visible
}

func (f *fakePlayer) Preload(_ context.Context, sel playback.Selector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preloads = append(f.preloads, sel)
	return f.err
}

type fakeEnqueuer struct {
	entries    []playlist.Entry
	placements []playback.Placement
	err        error
}

func (f *fakeEnqueuer) Add(_ context.Context, e playlist.Entry, placement playback.Placement) ([]sound.ID, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.entries = append(f.entries, e)
	f.placements = append(f.placements, placement)
	id := e.ID
	if id.IsZero() {
		id = sound.StringID("generated")
	}
	return []sound.ID{id}, nil
}

type testEnv struct {
	player   *fakePlayer
	enqueuer *fakeEnqueuer
	notifier *notification.Manager
	server   *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		player:   &fakePlayer{volume: 80},
		enqueuer: &fakeEnqueuer{},
		notifier: notification.NewManager(),
	}
	svc := NewControlService(env.player, env.enqueuer, env.notifier)
	path, handler := svc.Handler(connect.WithInterceptors(NewAdminAuthInterceptor(testToken)))

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	env.server = httptest.NewServer(mux)
	t.Cleanup(func() {
		env.notifier.Close()
		env.server.Close()
	})
	return env
}

func (env *testEnv) call(t *testing.T, procedure string, body map[string]any) (map[string]any, error) {
	t.Helper()
	msg, err := structpb.NewStruct(body)
	require.NoError(t, err)

	client := connect.NewClient[structpb.Struct, structpb.Struct](env.server.Client(), env.server.URL+procedure)
	req := connect.NewRequest(msg)
	req.Header().Set(AdminTokenHeader, testToken)
	resp, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return resp.Msg.AsMap(), nil
}

func TestAdminAuthInterceptor(t *testing.T) {
	env := newTestEnv(t)
	client := connect.NewClient[structpb.Struct, structpb.Struct](env.server.Client(), env.server.URL+ProcedureGetStatus)

	tests := []struct {
		name  string
		token string
		code  connect.Code
	}{
		{name: "missing token", token: "", code: connect.CodeUnauthenticated},
		{name: "wrong token", token: "nope", code: connect.CodeUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := connect.NewRequest(&structpb.Struct{})
			if tt.token != "" {
				req.Header().Set(AdminTokenHeader, tt.token)
			}
			_, err := client.CallUnary(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tt.code, connect.CodeOf(err))
		})
	}

	req := connect.NewRequest(&structpb.Struct{})
	req.Header().Set(AdminTokenHeader, testToken)
	_, err := client.CallUnary(context.Background(), req)
	assert.NoError(t, err)
}

func TestControlService_Play(t *testing.T) {
	offset := 1500 * time.Millisecond

	tests := []struct {
		name     string
		body     map[string]any
		expected playback.PlayOptions
		code     connect.Code
	}{
		{name: "current", body: map[string]any{}, expected: playback.PlayOptions{Selector: playback.Current()}},
		{name: "next", body: map[string]any{"selector": "next"}, expected: playback.PlayOptions{Selector: playback.Next()}},
		{name: "numeric id", body: map[string]any{"id": 2}, expected: playback.PlayOptions{Selector: playback.ByID(sound.IntID(2))}},
		{name: "string id wins", body: map[string]any{"id": "intro", "selector": "last"}, expected: playback.PlayOptions{Selector: playback.ByID(sound.StringID("intro"))}},
		{name: "offset", body: map[string]any{"offset_sec": 1.5}, expected: playback.PlayOptions{Selector: playback.Current(), Offset: &offset}},
		{name: "unknown selector", body: map[string]any{"selector": "sideways"}, code: connect.CodeInvalidArgument},
		{name: "fractional id", body: map[string]any{"id": 1.5}, code: connect.CodeInvalidArgument},
		{name: "unknown field", body: map[string]any{"speed": 2}, code: connect.CodeInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.call(t, ProcedurePlay, tt.body)
			if tt.code != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.code, connect.CodeOf(err))
				assert.Empty(t, env.player.plays)
				return
			}
			require.NoError(t, err)
			require.Len(t, env.player.plays, 1)
			assert.Equal(t, tt.expected, env.player.plays[0])
		})
	}
}

func TestControlService_Commands(t *testing.T) {
	tests := []struct {
		procedure string
		call      string
	}{
		{procedure: ProcedurePause, call: "pause"},
		{procedure: ProcedureStop, call: "stop"},
		{procedure: ProcedureNext, call: "next"},
		{procedure: ProcedurePrevious, call: "previous"},
		{procedure: ProcedureFirst, call: "first"},
		{procedure: ProcedureLast, call: "last"},
		{procedure: ProcedureResetQueue, call: "reset"},
		{procedure: ProcedureMute, call: "mute"},
		{procedure: ProcedureUnMute, call: "unmute"},
	}

	for _, tt := range tests {
		t.Run(tt.call, func(t *testing.T) {
			env := newTestEnv(t)
			res, err := env.call(t, tt.procedure, nil)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.call}, env.player.calls)
			assert.Equal(t, float64(80), res["volume"])
		})
	}
}

func TestControlService_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code connect.Code
	}{
		{name: "network", err: &playback.NetworkError{URL: "a.mp3", StatusCode: 404, Err: errors.New("not found")}, code: connect.CodeUnavailable},
		{name: "decode", err: &playback.DecodeError{Err: errors.New("bad header")}, code: connect.CodeInternal},
		{name: "no url", err: errors.Wrap(playback.ErrNoURL, "sound 1"), code: connect.CodeNotFound},
		{name: "superseded", err: playback.ErrSuperseded, code: connect.CodeAborted},
		{name: "closed", err: playback.ErrClosed, code: connect.CodeUnavailable},
		{name: "invalid percent", err: playback.ErrInvalidPercent, code: connect.CodeInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.player.err = tt.err
			_, err := env.call(t, ProcedureNext, nil)
			require.Error(t, err)
			assert.Equal(t, tt.code, connect.CodeOf(err))
		})
	}
}

func TestControlService_Enqueue(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.call(t, ProcedureEnqueue, map[string]any{
		"id":        3,
		"title":     "Chime",
		"sources":   []any{"chime.ogg", map[string]any{"url": "chime.mp3", "preferred": true}},
		"placement": "afterCurrent",
	})
	require.NoError(t, err)
	assert.Equal(t, []any{float64(3)}, res["ids"])
	require.Len(t, env.enqueuer.entries, 1)
	assert.Equal(t, sound.IntID(3), env.enqueuer.entries[0].ID)
	assert.Len(t, env.enqueuer.entries[0].Sources, 2)
	assert.Equal(t, playback.PlacementAfterCurrent, env.enqueuer.placements[0])

	res, err = env.call(t, ProcedureEnqueue, map[string]any{"url": "https://cdn.example.com/a.mp3"})
	require.NoError(t, err)
	assert.Equal(t, []any{"generated"}, res["ids"])
	assert.Equal(t, playback.PlacementAppend, env.enqueuer.placements[1])

	_, err = env.call(t, ProcedureEnqueue, map[string]any{"title": "no sources"})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = env.call(t, ProcedureEnqueue, map[string]any{"url": "a.mp3", "placement": "middle"})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	env.enqueuer.err = playback.ErrDuplicateID
	_, err = env.call(t, ProcedureEnqueue, map[string]any{"url": "a.mp3"})
	assert.Equal(t, connect.CodeAlreadyExists, connect.CodeOf(err))
}

func TestControlService_GetStatus(t *testing.T) {
	env := newTestEnv(t)
	env.player.infos = []playback.Info{
		{ID: sound.IntID(1), Title: "Intro", State: playback.StateStopped, Pipeline: playback.PipelineReady, Duration: 10 * time.Second},
		{ID: sound.StringID("b"), Title: "B", State: playback.StatePlaying, Pipeline: playback.PipelineReady, PlayedPercentage: 25},
	}
	env.player.index = 1
	env.player.loop = true

	res, err := env.call(t, ProcedureGetStatus, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(1), res["current_index"])
	assert.Equal(t, true, res["loop_queue"])
	assert.Equal(t, false, res["muted"])

	queue, ok := res["queue"].([]any)
	require.True(t, ok)
	require.Len(t, queue, 2)
	first := queue[0].(map[string]any)
	assert.Equal(t, float64(1), first["id"])
	assert.Equal(t, float64(10), first["duration_sec"])

	current := res["current"].(map[string]any)
	assert.Equal(t, "b", current["id"])
	assert.Equal(t, "playing", current["state"])
	assert.Equal(t, float64(25), current["played_percentage"])
}

func TestControlService_Settings(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.call(t, ProcedureSetVolume, map[string]any{"volume": 30})
	require.NoError(t, err)
	assert.Equal(t, 30, env.player.volume)

	_, err = env.call(t, ProcedureSetVolume, nil)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = env.call(t, ProcedureSetLoopQueue, map[string]any{"enabled": true})
	require.NoError(t, err)
	assert.True(t, env.player.loop)

	_, err = env.call(t, ProcedureSetVisibility, map[string]any{"visible": false})
	require.NoError(t, err)
	require.NotNil(t, env.player.visible)
	assert.False(t, *env.player.visible)

	_, err = env.call(t, ProcedureSetVisibility, map[string]any{})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestControlService_Seek(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.call(t, ProcedureSetPosition, map[string]any{"percent": 50})
	require.NoError(t, err)

	_, err = env.call(t, ProcedureSetPositionInSeconds, map[string]any{"seconds": 2.5})
	require.NoError(t, err)

	_, err = env.call(t, ProcedureSetPositionInSeconds, map[string]any{"seconds": 4, "id": "b"})
	require.NoError(t, err)

	assert.Equal(t, []float64{50, 2.5, 4}, env.player.seeks)
	require.Len(t, env.player.seekIDs, 2)
	assert.Nil(t, env.player.seekIDs[0])
	assert.Equal(t, sound.StringID("b"), *env.player.seekIDs[1])

	_, err = env.call(t, ProcedureSetPosition, map[string]any{})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestControlService_Preload(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.call(t, ProcedurePreload, map[string]any{"selector": "next"})
	require.NoError(t, err)
	_, err = env.call(t, ProcedurePreload, map[string]any{"id": 4})
	require.NoError(t, err)

	assert.Equal(t, []playback.Selector{playback.Next(), playback.ByID(sound.IntID(4))}, env.player.preloads)
}

func TestControlService_SubscribeEvents(t *testing.T) {
	env := newTestEnv(t)
	client := connect.NewClient[structpb.Struct, structpb.Struct](env.server.Client(), env.server.URL+ProcedureSubscribeEvents)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req := connect.NewRequest(&structpb.Struct{})
	req.Header().Set(AdminTokenHeader, testToken)
	stream, err := client.CallServerStream(ctx, req)
	require.NoError(t, err)
	defer stream.Close()

	require.True(t, stream.Receive(), "initial state: %v", stream.Err())
	initial := stream.Msg().AsMap()
	assert.Equal(t, "initial_state", initial["type"])
	assert.Contains(t, initial, "status")

	require.Eventually(t, func() bool { return env.notifier.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, env.notifier.Broadcast(notification.Event{
		Type:    notification.EventStarted,
		SoundID: sound.IntID(1),
		Offset:  2 * time.Second,
	}))

	require.True(t, stream.Receive(), "event: %v", stream.Err())
	event := stream.Msg().AsMap()
	assert.Equal(t, "started", event["type"])
	assert.Equal(t, float64(1), event["sound_id"])
	assert.Equal(t, float64(2), event["offset_sec"])
	assert.Greater(t, event["sequence_no"], initial["sequence_no"])
}

func TestControlService_SubscribeEventsUnauthenticated(t *testing.T) {
	env := newTestEnv(t)
	client := connect.NewClient[structpb.Struct, structpb.Struct](env.server.Client(), env.server.URL+ProcedureSubscribeEvents)

	stream, err := client.CallServerStream(context.Background(), connect.NewRequest(&structpb.Struct{}))
	if err == nil {
		defer stream.Close()
		assert.False(t, stream.Receive())
		err = stream.Err()
	}
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
}
