// Package activitymap converts audit trail entries into a transport-agnostic
// activity shape for downstream systems (activity feeds, SIEM forwarders,
// webhooks). The audit trail stays the source of truth; this package only
// reshapes.
package activitymap

import (
	"context"
	"strings"
	"time"

	sentinel "github.com/goliatone/go-sentinel"
)

const (
	// MetadataKeyLevel stores the audit severity level.
	MetadataKeyLevel = "level"
	// MetadataKeyIPAddress stores the request IP recorded on the entry.
	MetadataKeyIPAddress = "ip_address"
	// MetadataKeySuccess stores the entry outcome flag.
	MetadataKeySuccess = "success"
)

const (
	defaultChannel    = "security"
	defaultObjectType = "user"
	defaultActorID    = "system"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(*sentinel.AuditEntry) string
}

// Normalize converts an audit entry into a generic normalized shape.
func Normalize(entry *sentinel.AuditEntry, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	if entry == nil {
		return Normalized{
			ActorID:    options.actorFallback,
			ObjectType: options.objectType,
			Channel:    options.channel,
			OccurredAt: time.Now().UTC(),
		}
	}

	actorID := firstNonEmpty(
		strings.TrimSpace(entry.UserID),
		strings.TrimSpace(options.actorFallback),
	)

	objectID := resolveObjectID(entry, options.objectIDResolver)
	occurredAt := entry.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(entry.EventType),
		ObjectType: strings.TrimSpace(options.objectType),
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(options.channel),
		Metadata:   normalizeMetadata(entry),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the default object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction from the entry.
func WithObjectIDResolver(resolver func(*sentinel.AuditEntry) string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the final actor-id fallback when the entry carries
// no user id.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// Sink adapts a Normalized consumer to the audit trail's sink interface so
// entries stream to downstream systems as they are logged.
type Sink struct {
	emit func(ctx context.Context, record Normalized)
	opts []Option
}

// NewSink builds an audit sink that normalizes every entry and hands it to
// emit. A nil emit yields a no-op sink.
func NewSink(emit func(ctx context.Context, record Normalized), opts ...Option) *Sink {
	return &Sink{emit: emit, opts: opts}
}

// Emit implements sentinel.AuditSink.
func (s *Sink) Emit(ctx context.Context, entry *sentinel.AuditEntry) {
	if s == nil || s.emit == nil {
		return
	}
	s.emit(ctx, Normalize(entry, s.opts...))
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
}

func resolveObjectID(entry *sentinel.AuditEntry, resolver func(*sentinel.AuditEntry) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(entry))
	}
	if entry.SessionID != "" {
		return strings.TrimSpace(entry.SessionID)
	}
	return strings.TrimSpace(entry.UserID)
}

func normalizeMetadata(entry *sentinel.AuditEntry) map[string]any {
	metadata := cloneMap(entry.Details)

	if entry.Level != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[MetadataKeyLevel]; !exists {
			metadata[MetadataKeyLevel] = string(entry.Level)
		}
	}

	if entry.IPAddress != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[MetadataKeyIPAddress] = entry.IPAddress
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata[MetadataKeySuccess] = entry.Success

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
