package db

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

func TestMigrationFiles_SortedSQLOnly(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0002_b.sql":   {Data: []byte("SELECT 2;")},
		"migrations/0001_a.sql":   {Data: []byte("SELECT 1;")},
		"migrations/README.md":    {Data: []byte("notes")},
		"migrations/old/0000.sql": {Data: []byte("SELECT 0;")},
	}
	got, err := migrationFiles(fsys)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Join(got, ",") != "0001_a.sql,0002_b.sql" {
		t.Fatalf("unexpected files: %v", got)
	}
}

func TestEmbeddedSchema_DeclaresTables(t *testing.T) {
	b, err := fs.ReadFile(migrationFS, "migrations/0001_init.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	sql := string(b)
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS call_records",
		"conversation_id TEXT NOT NULL UNIQUE",
		"CREATE TABLE IF NOT EXISTS report_configs",
		"CREATE TABLE IF NOT EXISTS email_logs",
		"BEFORE UPDATE OR DELETE ON email_logs",
		"CREATE TABLE IF NOT EXISTS notification_outbox",
		"recipient_email TEXT NOT NULL",
		"CREATE TABLE IF NOT EXISTS users",
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("schema missing %q", want)
		}
	}
}
