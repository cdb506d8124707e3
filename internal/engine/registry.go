package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// EventDecoder turns the JSON body of an ingress request into an Event.
type EventDecoder func(raw json.RawMessage) (Event, error)

var ErrUnknownEvent = errors.New("unknown event type")

/*
* The registry of event types the CRUD backend may post. Each type name maps
* to a decoder that validates the type's required fields.
 */
type Registry struct {
	logger   *slog.Logger
	decoders map[string]EventDecoder
	mu       sync.RWMutex
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		decoders: make(map[string]EventDecoder),
		logger:   logger.With(slog.String("component", "event_registry")),
	}
}

func (r *Registry) RegisterCore() {
	r.RegisterEvent("series_created", decodeInto(func(e *SeriesCreated) error {
		return required("title", e.Title)
	}))
	r.RegisterEvent("community_created", decodeInto(func(e *CommunityCreated) error {
		return errors.Join(required("series_title", e.SeriesTitle), required("language", e.Language))
	}))
	r.RegisterEvent("member_joined", decodeInto(func(e *MemberJoined) error {
		return errors.Join(required("username", e.Username), required("series_title", e.SeriesTitle))
	}))
	r.RegisterEvent("member_left", decodeInto(func(e *MemberLeft) error {
		return errors.Join(required("username", e.Username), required("series_title", e.SeriesTitle))
	}))
	r.RegisterEvent("community_deleted", decodeInto(func(e *CommunityDeleted) error {
		return required("series_title", e.SeriesTitle)
	}))
	r.RegisterEvent("broadcast", decodeInto(func(e *Broadcast) error {
		return required("message", e.Text)
	}))
	r.RegisterEvent("user_notification", decodeInto(func(e *UserNotification) error {
		if e.UserID <= 0 {
			return errors.New("field 'user_id' must be a positive integer")
		}
		return required("message", e.Text)
	}))
	r.logger.Info("Registered core events", slog.Int("count", len(r.decoders)))
}

func (r *Registry) RegisterEvent(name string, decoder EventDecoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.decoders[name]; exists {
		panic("event type already registered: " + name)
	}
	r.decoders[name] = decoder
}

// Decode resolves the decoder for name and applies it to raw.
func (r *Registry) Decode(name string, raw json.RawMessage) (Event, error) {
	r.mu.RLock()
	decoder, ok := r.decoders[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownEvent, name)
	}
	return decoder(raw)
}

// Names returns the registered event types, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.decoders))
	for k := range r.decoders {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func decodeInto[T any, PT interface {
	*T
	Event
}](validate func(PT) error) EventDecoder {
	return func(raw json.RawMessage) (Event, error) {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		if err := validate(&v); err != nil {
			return nil, err
		}
		return PT(&v), nil
	}
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("field '%s' is required", field)
	}
	return nil
}
