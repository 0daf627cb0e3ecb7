package playback

import (
	"testing"

	"github.com/osa030/soundqueue/internal/domain/sound"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queueIDs(p *Player) []string {
	return lo.Map(p.GetQueue(), func(s *Sound, _ int) string { return s.ID().String() })
}

func TestAddSoundToQueue_Placement(t *testing.T) {
	tests := []struct {
		name      string
		existing  []string
		placement Placement
		want      []string
		wantIndex int
	}{
		{name: "append to empty", existing: nil, placement: PlacementAppend, want: []string{"x"}, wantIndex: 0},
		{name: "prepend to empty", existing: nil, placement: PlacementPrepend, want: []string{"x"}, wantIndex: 0},
		{name: "after current on empty", existing: nil, placement: PlacementAfterCurrent, want: []string{"x"}, wantIndex: 0},
		{name: "append to one", existing: []string{"a"}, placement: PlacementAppend, want: []string{"a", "x"}, wantIndex: 0},
		{name: "prepend to one", existing: []string{"a"}, placement: PlacementPrepend, want: []string{"x", "a"}, wantIndex: 1},
		{name: "after current on one", existing: []string{"a"}, placement: PlacementAfterCurrent, want: []string{"a", "x"}, wantIndex: 0},
		{name: "append to two", existing: []string{"a", "b"}, placement: PlacementAppend, want: []string{"a", "b", "x"}, wantIndex: 0},
		{name: "prepend to two", existing: []string{"a", "b"}, placement: PlacementPrepend, want: []string{"x", "a", "b"}, wantIndex: 1},
		{name: "after current on two", existing: []string{"a", "b"}, placement: PlacementAfterCurrent, want: []string{"a", "x", "b"}, wantIndex: 0},
		{name: "append to three", existing: []string{"a", "b", "c"}, placement: PlacementAppend, want: []string{"a", "b", "c", "x"}, wantIndex: 0},
		{name: "prepend to three", existing: []string{"a", "b", "c"}, placement: PlacementPrepend, want: []string{"x", "a", "b", "c"}, wantIndex: 1},
		{name: "after current on three", existing: []string{"a", "b", "c"}, placement: PlacementAfterCurrent, want: []string{"a", "x", "b", "c"}, wantIndex: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newTestPlayer(t, Config{})
			enqueue(t, p, tt.existing...)

			_, err := p.AddSoundToQueue(attrs("x", Callbacks{}), tt.placement)
			require.NoError(t, err)
			assert.Equal(t, tt.want, queueIDs(p))
			assert.Equal(t, tt.wantIndex, p.CurrentIndex())
		})
	}
}

func TestAddSoundToQueue_AfterMovedCursor(t *testing.T) {
	p, _, _ := newTestPlayer(t, Config{})
	enqueue(t, p, "a", "b", "c")

	p.mu.Lock()
	p.resolveTargetLocked(Last(), true)
	p.mu.Unlock()

	_, err := p.AddSoundToQueue(attrs("x", Callbacks{}), PlacementAfterCurrent)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "x"}, queueIDs(p))
}

func TestAddSoundToQueue_IDs(t *testing.T) {
	p, _, _ := newTestPlayer(t, Config{})

	generated, err := p.AddSoundToQueue(SoundAttributes{}, PlacementAppend)
	require.NoError(t, err)
	assert.False(t, generated.ID().IsZero())

	_, err = p.AddSoundToQueue(SoundAttributes{ID: sound.IntID(1)}, PlacementAppend)
	require.NoError(t, err)
	_, err = p.AddSoundToQueue(SoundAttributes{ID: sound.StringID("1")}, PlacementAppend)
	require.NoError(t, err, "numeric and string ids are distinct")

	_, err = p.AddSoundToQueue(SoundAttributes{ID: sound.IntID(1)}, PlacementAppend)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Len(t, p.GetQueue(), 3)
}

func TestAddSoundToQueue_LoopDefault(t *testing.T) {
	p, _, _ := newTestPlayer(t, Config{LoopSong: true})

	inherited, err := p.AddSoundToQueue(SoundAttributes{}, PlacementAppend)
	require.NoError(t, err)
	overridden, err := p.AddSoundToQueue(SoundAttributes{Loop: lo.ToPtr(false)}, PlacementAppend)
	require.NoError(t, err)

	assert.True(t, inherited.Info().Loop)
	assert.False(t, overridden.Info().Loop)
}

func TestAddSoundsToQueue_KeepsOrder(t *testing.T) {
	tests := []struct {
		name      string
		existing  []string
		placement Placement
		want      []string
		wantIndex int
	}{
		{name: "append to empty", existing: nil, placement: PlacementAppend, want: []string{"x", "y", "z"}, wantIndex: 0},
		{name: "prepend to empty", existing: nil, placement: PlacementPrepend, want: []string{"x", "y", "z"}, wantIndex: 0},
		{name: "after current on empty", existing: nil, placement: PlacementAfterCurrent, want: []string{"x", "y", "z"}, wantIndex: 0},
		{name: "append to two", existing: []string{"a", "b"}, placement: PlacementAppend, want: []string{"a", "b", "x", "y", "z"}, wantIndex: 0},
		{name: "prepend to two", existing: []string{"a", "b"}, placement: PlacementPrepend, want: []string{"x", "y", "z", "a", "b"}, wantIndex: 3},
		{name: "after current on two", existing: []string{"a", "b"}, placement: PlacementAfterCurrent, want: []string{"a", "x", "y", "z", "b"}, wantIndex: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newTestPlayer(t, Config{})
			enqueue(t, p, tt.existing...)

			added, err := p.AddSoundsToQueue([]SoundAttributes{
				attrs("x", Callbacks{}), attrs("y", Callbacks{}), attrs("z", Callbacks{}),
			}, tt.placement)
			require.NoError(t, err)
			assert.Len(t, added, 3)
			assert.Equal(t, tt.want, queueIDs(p))
			assert.Equal(t, tt.wantIndex, p.CurrentIndex())
		})
	}
}

func TestAddSoundsToQueue_DuplicateAddsNothing(t *testing.T) {
	p, _, _ := newTestPlayer(t, Config{})
	enqueue(t, p, "a")

	_, err := p.AddSoundsToQueue([]SoundAttributes{attrs("x", Callbacks{}), attrs("a", Callbacks{})}, PlacementAppend)
	assert.ErrorIs(t, err, ErrDuplicateID)
	_, err = p.AddSoundsToQueue([]SoundAttributes{attrs("y", Callbacks{}), attrs("y", Callbacks{})}, PlacementAppend)
	assert.ErrorIs(t, err, ErrDuplicateID)

	assert.Equal(t, []string{"a"}, queueIDs(p))
}

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		name        string
		cursor      int
		selector    Selector
		updateIndex bool
		wantID      string // empty means nil
		wantCursor  int
	}{
		{name: "current", cursor: 1, selector: Current(), wantID: "b", wantCursor: 1},
		{name: "first", cursor: 2, selector: First(), updateIndex: true, wantID: "a", wantCursor: 0},
		{name: "last", cursor: 0, selector: Last(), updateIndex: true, wantID: "c", wantCursor: 2},
		{name: "next", cursor: 0, selector: Next(), updateIndex: true, wantID: "b", wantCursor: 1},
		{name: "next at end", cursor: 2, selector: Next(), updateIndex: true, wantID: "", wantCursor: 2},
		{name: "previous", cursor: 2, selector: Previous(), updateIndex: true, wantID: "b", wantCursor: 1},
		{name: "previous at start", cursor: 0, selector: Previous(), updateIndex: true, wantID: "", wantCursor: 0},
		{name: "id with update", cursor: 0, selector: ByID(sound.StringID("c")), updateIndex: true, wantID: "c", wantCursor: 2},
		{name: "id without update", cursor: 0, selector: ByID(sound.StringID("c")), updateIndex: false, wantID: "c", wantCursor: 0},
		{name: "missing id", cursor: 1, selector: ByID(sound.StringID("z")), updateIndex: true, wantID: "", wantCursor: 1},
		{name: "last without update", cursor: 0, selector: Last(), updateIndex: false, wantID: "c", wantCursor: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newTestPlayer(t, Config{})
			enqueue(t, p, "a", "b", "c")

			p.mu.Lock()
			p.currentIndex = tt.cursor
			got, idx := p.resolveTargetLocked(tt.selector, tt.updateIndex)
			cursor := p.currentIndex
			p.mu.Unlock()

			if tt.wantID == "" {
				assert.Nil(t, got)
				assert.Equal(t, -1, idx)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, tt.wantID, got.ID().String())
			}
			assert.Equal(t, tt.wantCursor, cursor)
		})
	}
}

func TestResolveTarget_EmptyQueue(t *testing.T) {
	p, _, _ := newTestPlayer(t, Config{})

	for _, sel := range []Selector{Current(), Next(), Previous(), First(), Last(), ByID(sound.IntID(1))} {
		assert.Nil(t, p.Lookup(sel), sel.String())
	}
	assert.Nil(t, p.Current())
}

func TestPlayer_Snapshot(t *testing.T) {
	p, _, _ := newTestPlayer(t, Config{})
	enqueue(t, p, "a", "b")

	infos, cursor := p.Snapshot()
	require.Len(t, infos, 2)
	assert.Equal(t, 0, cursor)
	assert.Equal(t, "b", infos[1].ID.String())
	assert.Equal(t, StateStopped, infos[1].State)
	assert.Equal(t, PipelineEmpty, infos[1].Pipeline)
}

func TestParseSelector(t *testing.T) {
	tests := []struct {
		input   string
		want    Selector
		wantErr bool
	}{
		{input: "", want: Current()},
		{input: "current", want: Current()},
		{input: "Next", want: Next()},
		{input: "prev", want: Previous()},
		{input: "first", want: First()},
		{input: "last", want: Last()},
		{input: "sideways", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSelector(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePlacement(t *testing.T) {
	tests := []struct {
		input   string
		want    Placement
		wantErr bool
	}{
		{input: "", want: PlacementAppend},
		{input: "prepend", want: PlacementPrepend},
		{input: "afterCurrent", want: PlacementAfterCurrent},
		{input: "after-current", want: PlacementAfterCurrent},
		{input: "middle", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePlacement(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, lo.Must(ParsePlacement(got.String())))
		})
	}
}
