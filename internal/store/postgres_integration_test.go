//go:build postgres_integration

package store

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	if err := p.Ping(t.Context()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := p.MigrateDir("../../db/migrations"); err != nil {
		t.Fatalf("MigrateDir: %v", err)
	}
	rec := CycleRecord{ID: uuid.NewString(), Seq: uint64(time.Now().UnixNano()), StartedAt: time.Now().UTC(), Payload: []byte(`{}`)}
	if err := p.SaveCycle(t.Context(), rec); err != nil {
		t.Fatalf("SaveCycle: %v", err)
	}
	if _, err := p.GetCycle(t.Context(), rec.ID); err != nil {
		t.Fatalf("GetCycle: %v", err)
	}
}
