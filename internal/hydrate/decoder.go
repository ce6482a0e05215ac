// Package hydrate turns JSON request bodies sent by editor front-ends into
// typed values, with hooks to normalise the raw payload before decoding and to
// validate the result afterwards.
package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyPayload is returned when the body is empty or JSON null.
var ErrEmptyPayload = errors.New("hydrate: payload is empty")

// Context identifies what is being decoded, for hooks and error messages.
type Context struct {
	Route   string
	LayerID string
}

// PreHook lets callers mutate or normalise the payload before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate the decoded value.
type PostHook[T any] func(Context, *T) error

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts JSON object payloads into T.
type Decoder[T any] struct {
	preHooks     []PreHook
	postHooks    []PostHook[T]
	configureDec []func(*json.Decoder)
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithDisallowUnknownFields invokes json.Decoder.DisallowUnknownFields.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.DisallowUnknownFields()
		})
	}
}

// WithKeyAliases installs a pre-hook renaming top-level keys, so clients can
// send "zIndex" where the type expects "z_index". Existing target keys win.
func WithKeyAliases[T any](aliases map[string]string) DecoderOption[T] {
	return WithPreHook[T](func(_ Context, payload map[string]any) (map[string]any, error) {
		for from, to := range aliases {
			value, ok := payload[from]
			if !ok {
				continue
			}
			delete(payload, from)
			if _, exists := payload[to]; !exists {
				payload[to] = value
			}
		}
		return payload, nil
	})
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode parses body as a JSON object and converts it into T applying the
// configured hooks.
func (d *Decoder[T]) Decode(ctx Context, body []byte) (T, error) {
	var zero T

	var current map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(body), &current); err != nil {
		if len(bytes.TrimSpace(body)) == 0 {
			return zero, fmt.Errorf("%w for %s", ErrEmptyPayload, ctx.Route)
		}
		return zero, fmt.Errorf("hydrate: parse %s payload: %w", ctx.Route, err)
	}
	if current == nil {
		return zero, fmt.Errorf("%w for %s", ErrEmptyPayload, ctx.Route)
	}

	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook for %s failed: %w", ctx.Route, err)
		}
		if next != nil {
			current = next
		}
	}

	buffer, err := json.Marshal(current)
	if err != nil {
		return zero, fmt.Errorf("hydrate: marshal %s payload: %w", ctx.Route, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	for _, configure := range d.configureDec {
		configure(decoder)
	}
	var result T
	if err := decoder.Decode(&result); err != nil {
		return zero, fmt.Errorf("hydrate: decode %s: %w", ctx.Route, err)
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for %s failed: %w", ctx.Route, err)
		}
	}

	return result, nil
}
