package playback

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/osa030/soundqueue/internal/domain/sound"
)

type selectorKind int

const (
	selectCurrent selectorKind = iota
	selectID
	selectNext
	selectPrevious
	selectFirst
	selectLast
)

// Selector names a queue item relative to the cursor or by id.
// The zero value selects the current item.
type Selector struct {
	kind selectorKind
	id   sound.ID
}

// Current selects the item at the cursor.
func Current() Selector { return Selector{kind: selectCurrent} }

// ByID selects the first item with the given id.
func ByID(id sound.ID) Selector { return Selector{kind: selectID, id: id} }

// Next selects the item after the cursor.
func Next() Selector { return Selector{kind: selectNext} }

// Previous selects the item before the cursor.
func Previous() Selector { return Selector{kind: selectPrevious} }

// First selects the first item.
func First() Selector { return Selector{kind: selectFirst} }

// Last selects the last item.
func Last() Selector { return Selector{kind: selectLast} }

// String returns the string representation of the selector.
func (s Selector) String() string {
	switch s.kind {
	case selectCurrent:
		return "current"
	case selectID:
		return "id:" + s.id.String()
	case selectNext:
		return "next"
	case selectPrevious:
		return "previous"
	case selectFirst:
		return "first"
	case selectLast:
		return "last"
	default:
		return "unknown"
	}
}

// ParseSelector parses a direction keyword. Ids are passed with ByID.
func ParseSelector(s string) (Selector, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "current":
		return Current(), nil
	case "next":
		return Next(), nil
	case "previous", "prev":
		return Previous(), nil
	case "first":
		return First(), nil
	case "last":
		return Last(), nil
	default:
		return Selector{}, errors.Newf("unknown selector %q", s)
	}
}

// Placement controls where AddSoundToQueue inserts a sound.
type Placement int

const (
	PlacementAppend       Placement = iota // End of the queue
	PlacementPrepend                       // Start of the queue
	PlacementAfterCurrent                  // Right after the cursor
)

// String returns the string representation of the placement.
func (p Placement) String() string {
	switch p {
	case PlacementAppend:
		return "append"
	case PlacementPrepend:
		return "prepend"
	case PlacementAfterCurrent:
		return "afterCurrent"
	default:
		return "unknown"
	}
}

// ParsePlacement parses a placement name. Empty means append.
func ParsePlacement(s string) (Placement, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "append":
		return PlacementAppend, nil
	case "prepend":
		return PlacementPrepend, nil
	case "aftercurrent", "after_current", "after-current":
		return PlacementAfterCurrent, nil
	default:
		return PlacementAppend, errors.Newf("unknown placement %q", s)
	}
}
