package repository

import (
	"strings"
	"testing"

	"clinic_engage_backend/migrations"
)

// The unique index on (provider_message_id, direction) is partial, and
// Postgres infers a partial unique index as an ON CONFLICT arbiter only when
// the conflict target repeats the index predicate. A mismatch rejects every
// inbound insert, duplicate or not, so redelivered provider ids would never
// collapse into a single row.
func TestInsertInbound_ConflictTargetMatchesPartialIndex(t *testing.T) {
	const predicate = "WHERE provider_message_id IS NOT NULL"

	if !strings.Contains(insertInboundQuery,
		"ON CONFLICT (provider_message_id, direction) "+predicate+" DO NOTHING") {
		t.Fatalf("inbound insert must repeat the partial index predicate in its conflict target, got:\n%s", insertInboundQuery)
	}

	migration, err := migrations.FS.ReadFile("00002_create_messages.sql")
	if err != nil {
		t.Fatalf("read messages migration: %v", err)
	}
	if !strings.Contains(string(migration), predicate) {
		t.Fatalf("messages migration no longer carries the index predicate %q the insert arbiter relies on", predicate)
	}
}
