// Package integration provides end-to-end tests for the Growlog event store.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/growlog/growlog/internal/config"
	"github.com/growlog/growlog/internal/metrics"
	"github.com/growlog/growlog/internal/store"
	"github.com/growlog/growlog/internal/writer"
	"github.com/growlog/growlog/pkg/types"
)

// TestEventLogFlow exercises the full path: config → store → batch writer →
// range queries, the way an embedding controller process wires the store.
func TestEventLogFlow(t *testing.T) {
	ctx := context.Background()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Writer.FlushInterval = 20 * time.Millisecond
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config validation failed: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("failed to create directories: %v", err)
	}

	m := metrics.New(prometheus.NewRegistry())

	s, err := store.OpenWithOptions(cfg.EventsDBPath(), store.Options{
		BusyTimeoutMS: cfg.Events.BusyTimeoutMS,
		ReadPoolSize:  cfg.Events.ReadPoolSize,
		Metrics:       m,
	})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	w := writer.New(s, writer.Config{
		QueueSize:     cfg.Writer.QueueSize,
		BatchSize:     cfg.Writer.BatchSize,
		FlushInterval: cfg.Writer.FlushInterval,
		FallbackPath:  cfg.Writer.FallbackPath,
		Metrics:       m,
	})
	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start writer: %v", err)
	}

	cycleID := types.NewCycleID()
	w.Log(&types.Event{
		TSUTC:      "2026-03-01T10:00:00.000000Z",
		EventType:  "irrigation_cycle",
		ReasonCode: types.String("schedule"),
		ProfileID:  types.String("veg-week3"),
		CycleID:    types.String(cycleID),
		Actor:      types.String("system"),
	})
	w.Log(&types.Event{
		TSUTC:       "2026-03-01T10:00:45.000000Z",
		EventType:   "actuator_change",
		CycleID:     types.String(cycleID),
		Actor:       types.String("system"),
		PayloadJSON: types.String(`{"pump":"off"}`),
	})
	w.Log(&types.Event{
		TSUTC:     "2026-03-01T10:05:00.000000Z",
		EventType: "alert",
		Msg:       types.String("EC out of band"),
		ProfileID: types.String("veg-week3"),
	})

	if err := w.Stop(); err != nil {
		t.Fatalf("failed to stop writer: %v", err)
	}

	// Full window, chronological.
	all, err := s.QueryByTimeRange(ctx, "2026-03-01T10:00:00.000000Z", "2026-03-01T10:05:00.000000Z")
	if err != nil {
		t.Fatalf("time range query failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d events, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].TSUTC < all[i-1].TSUTC {
			t.Errorf("events out of order at %d", i)
		}
	}

	// Type-filtered window.
	alerts, err := s.QueryByTypeAndTimeRange(ctx, "alert",
		"2026-03-01T00:00:00.000000Z", "2026-03-02T00:00:00.000000Z")
	if err != nil {
		t.Fatalf("type query failed: %v", err)
	}
	if len(alerts) != 1 || *alerts[0].Msg != "EC out of band" {
		t.Errorf("alert query returned %d events", len(alerts))
	}

	// Profile-filtered window.
	forProfile, err := s.QueryByProfileAndTimeRange(ctx, "veg-week3",
		"2026-03-01T00:00:00.000000Z", "2026-03-02T00:00:00.000000Z")
	if err != nil {
		t.Fatalf("profile query failed: %v", err)
	}
	if len(forProfile) != 2 {
		t.Errorf("profile query returned %d events, want 2", len(forProfile))
	}

	latest, err := s.LatestProfileID(ctx)
	if err != nil {
		t.Fatalf("latest profile query failed: %v", err)
	}
	if latest != "veg-week3" {
		t.Errorf("latest profile = %q, want veg-week3", latest)
	}

	// Nothing should have been diverted to the fallback dump.
	if _, err := os.Stat(cfg.Writer.FallbackPath); !os.IsNotExist(err) {
		t.Errorf("unexpected fallback dump at %s", cfg.Writer.FallbackPath)
	}
}

// TestEventLogFlow_SurvivesRestart checks that a second process start against
// the same database file finds the prior run's events intact.
func TestEventLogFlow_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "logs", "events.db")

	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if _, err := s.Append(ctx, &types.Event{
		TSUTC:     "2026-03-01T10:00:00.000000Z",
		EventType: "profile_lifecycle",
		ProfileID: types.String("bloom-week1"),
	}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	s2, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("re-open failed: %v", err)
	}
	defer s2.Close()

	latest, err := s2.LatestProfileID(ctx)
	if err != nil {
		t.Fatalf("latest profile after restart failed: %v", err)
	}
	if latest != "bloom-week1" {
		t.Errorf("latest profile after restart = %q, want bloom-week1", latest)
	}

	id, err := s2.Append(ctx, &types.Event{
		TSUTC:     "2026-03-01T10:01:00.000000Z",
		EventType: "profile_lifecycle",
	})
	if err != nil {
		t.Fatalf("append after restart failed: %v", err)
	}
	if id != 2 {
		t.Errorf("id after restart = %d, want 2", id)
	}
}
