package activitymap_test

import (
	"context"
	"testing"
	"time"

	sentinel "github.com/goliatone/go-sentinel"
	"github.com/goliatone/go-sentinel/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	entry := &sentinel.AuditEntry{
		Timestamp: ts,
		UserID:    "user-100",
		EventType: sentinel.EventAccountLocked,
		Level:     sentinel.LevelWarning,
		Message:   "account locked",
		Details: map[string]any{
			"ticket": "SEC-204",
		},
		IPAddress: "203.0.113.7",
	}

	out := activitymap.Normalize(entry)

	if out.ActorID != "user-100" {
		t.Fatalf("expected actor_id user-100, got %q", out.ActorID)
	}
	if out.Verb != string(sentinel.EventAccountLocked) {
		t.Fatalf("expected verb %q, got %q", sentinel.EventAccountLocked, out.Verb)
	}
	if out.ObjectType != "user" {
		t.Fatalf("expected object_type user, got %q", out.ObjectType)
	}
	if out.ObjectID != "user-100" {
		t.Fatalf("expected object_id user-100, got %q", out.ObjectID)
	}
	if out.Channel != "security" {
		t.Fatalf("expected channel security, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}
	if out.Metadata["ticket"] != "SEC-204" {
		t.Fatalf("expected metadata ticket SEC-204, got %#v", out.Metadata["ticket"])
	}
	if out.Metadata[activitymap.MetadataKeyLevel] != "warning" {
		t.Fatalf("expected metadata level warning, got %#v", out.Metadata[activitymap.MetadataKeyLevel])
	}
	if out.Metadata[activitymap.MetadataKeyIPAddress] != "203.0.113.7" {
		t.Fatalf("expected metadata ip, got %#v", out.Metadata[activitymap.MetadataKeyIPAddress])
	}
}

func TestNormalizePrefersSessionObjectID(t *testing.T) {
	t.Parallel()

	entry := &sentinel.AuditEntry{
		UserID:    "user-100",
		SessionID: "sess-9",
		EventType: sentinel.EventSessionRevoked,
		Level:     sentinel.LevelInfo,
	}

	out := activitymap.Normalize(entry)
	if out.ObjectID != "sess-9" {
		t.Fatalf("expected object_id sess-9, got %q", out.ObjectID)
	}
}

func TestNormalizeOptions(t *testing.T) {
	t.Parallel()

	entry := &sentinel.AuditEntry{
		EventType: sentinel.EventAuditPurge,
		Level:     sentinel.LevelInfo,
	}

	out := activitymap.Normalize(entry,
		activitymap.WithDefaultChannel("compliance"),
		activitymap.WithDefaultObjectType("trail"),
		activitymap.WithActorFallback("retention-job"),
		activitymap.WithObjectIDResolver(func(*sentinel.AuditEntry) string { return "trail-1" }),
	)

	if out.Channel != "compliance" {
		t.Fatalf("expected channel compliance, got %q", out.Channel)
	}
	if out.ObjectType != "trail" {
		t.Fatalf("expected object_type trail, got %q", out.ObjectType)
	}
	if out.ActorID != "retention-job" {
		t.Fatalf("expected actor retention-job, got %q", out.ActorID)
	}
	if out.ObjectID != "trail-1" {
		t.Fatalf("expected object_id trail-1, got %q", out.ObjectID)
	}
}

func TestSinkEmitsNormalizedRecords(t *testing.T) {
	t.Parallel()

	var got []activitymap.Normalized
	sink := activitymap.NewSink(func(_ context.Context, record activitymap.Normalized) {
		got = append(got, record)
	})

	trail := sentinel.NewTrail(sentinel.NewMemoryAuditStore(), sentinel.WithTrailSink(sink))

	_, err := trail.Log(context.Background(), sentinel.EventLoginSuccess, sentinel.LevelInfo, "signed in", sentinel.Fields{
		UserID:  "user-100",
		Success: true,
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].Verb != string(sentinel.EventLoginSuccess) {
		t.Fatalf("expected login verb, got %q", got[0].Verb)
	}
	if got[0].Metadata[activitymap.MetadataKeySuccess] != true {
		t.Fatalf("expected success metadata true")
	}
}
