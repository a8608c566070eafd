package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/haulctl/truckctl/internal/hub"
	"github.com/haulctl/truckctl/internal/safety"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "truckctl.db")
	db, err := Open(path, 30)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAppendAndReadLedger(t *testing.T) {
	db := openTestDB(t)

	d1 := safety.Decision{Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), DecisionHash: "h1"}
	d2 := safety.Decision{Timestamp: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), DecisionHash: "h2", ParentHash: "h1"}

	if err := db.AppendLedger(d1); err != nil {
		t.Fatalf("AppendLedger: %v", err)
	}
	if err := db.AppendLedger(d2); err != nil {
		t.Fatalf("AppendLedger: %v", err)
	}

	got, err := db.ReadLedger()
	if err != nil {
		t.Fatalf("ReadLedger: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(ReadLedger()) = %d, want 2", len(got))
	}
	if got[0].DecisionHash != "h1" || got[1].DecisionHash != "h2" {
		t.Fatalf("ledger not in chronological order: %+v", got)
	}
}

func TestPruneOldLedgerEntries(t *testing.T) {
	db := openTestDB(t)

	old := safety.Decision{Timestamp: time.Now().UTC().AddDate(0, 0, -60), DecisionHash: "old"}
	recent := safety.Decision{Timestamp: time.Now().UTC(), DecisionHash: "recent"}

	db.AppendLedger(old)
	db.AppendLedger(recent)

	deleted, err := db.PruneOldLedgerEntries()
	if err != nil {
		t.Fatalf("PruneOldLedgerEntries: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}

	got, err := db.ReadLedger()
	if err != nil {
		t.Fatalf("ReadLedger: %v", err)
	}
	if len(got) != 1 || got[0].DecisionHash != "recent" {
		t.Fatalf("ReadLedger() = %+v, want only the recent entry", got)
	}
}

func TestCurrentRouteRoundTrip(t *testing.T) {
	db := openTestDB(t)

	if _, found, err := db.GetCurrentRoute(); err != nil || found {
		t.Fatalf("GetCurrentRoute() on empty db = (_, %v, %v), want (_, false, nil)", found, err)
	}

	route := hub.RouteMessage{Route: []hub.Waypoint{{X: 1, Y: 2, ReferenceSpeed: 3}}}
	if err := db.PutCurrentRoute(route); err != nil {
		t.Fatalf("PutCurrentRoute: %v", err)
	}

	got, found, err := db.GetCurrentRoute()
	if err != nil || !found {
		t.Fatalf("GetCurrentRoute() = (_, %v, %v), want (_, true, nil)", found, err)
	}
	if len(got.Route) != 1 || got.Route[0].X != 1 {
		t.Fatalf("GetCurrentRoute() = %+v, want the persisted route", got)
	}
}
