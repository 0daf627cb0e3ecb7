package connect

import (
	"context"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	"github.com/osa030/soundqueue/internal/app/playback"
	"github.com/osa030/soundqueue/internal/domain/sound"
	"github.com/osa030/soundqueue/internal/infra/spotify"
)

type playRequest struct {
	Selector  string   `mapstructure:"selector"`
	ID        any      `mapstructure:"id"`
	OffsetSec *float64 `mapstructure:"offset_sec"`
}

type selectorRequest struct {
	Selector string `mapstructure:"selector"`
	ID       any    `mapstructure:"id"`
}

type volumeRequest struct {
	Volume *int `mapstructure:"volume"`
}

type positionRequest struct {
	Percent *float64 `mapstructure:"percent"`
}

type positionSecondsRequest struct {
	Seconds *float64 `mapstructure:"seconds"`
	ID      any      `mapstructure:"id"`
}

type toggleRequest struct {
	Enabled *bool `mapstructure:"enabled"`
}

type visibilityRequest struct {
	Visible *bool `mapstructure:"visible"`
}

// decode decodes a request body into out, rejecting unknown fields.
func decode(msg map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: true,
	})
	if err != nil {
		return connect.NewError(connect.CodeInternal, err)
	}
	if err := dec.Decode(msg); err != nil {
		return invalidArgument(err)
	}
	return nil
}

// parseSelector prefers an explicit id over the direction keyword.
func parseSelector(selector string, rawID any) (playback.Selector, error) {
	id, err := sound.ParseID(rawID)
	if err != nil {
		return playback.Selector{}, invalidArgument(err)
	}
	if !id.IsZero() {
		return playback.ByID(id), nil
	}
	sel, err := playback.ParseSelector(selector)
	if err != nil {
		return playback.Selector{}, invalidArgument(err)
	}
	return sel, nil
}

func stringField(msg map[string]any, key string) string {
	s, _ := msg[key].(string)
	return s
}

func invalidArgument(err error) error {
	return connect.NewError(connect.CodeInvalidArgument, err)
}

func invalidArgumentf(format string, args ...any) error {
	return invalidArgument(errors.Newf(format, args...))
}

// toConnectError maps player errors to connect codes.
func toConnectError(err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	var networkErr *playback.NetworkError
	code := connect.CodeInternal
	switch {
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	case errors.Is(err, playback.ErrInvalidPercent):
		code = connect.CodeInvalidArgument
	case errors.Is(err, playback.ErrNoURL), errors.Is(err, spotify.ErrNoPreview):
		code = connect.CodeNotFound
	case errors.Is(err, playback.ErrDuplicateID):
		code = connect.CodeAlreadyExists
	case errors.Is(err, playback.ErrSuperseded):
		code = connect.CodeAborted
	case errors.Is(err, playback.ErrClosed), errors.As(err, &networkErr):
		code = connect.CodeUnavailable
	}
	return connect.NewError(code, err)
}
