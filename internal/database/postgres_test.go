package database

import (
	"io/fs"
	"testing"
	"testing/fstest"
)

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"010_attempt_index.sql":   {Data: []byte("SELECT 1;")},
		"001_initial_schema.sql":  {Data: []byte("SELECT 1;")},
		"002_quiz_status.sql":     {Data: []byte("SELECT 1;")},
		"README.md":               {Data: []byte("docs")},
		"abc_not_a_migration.sql": {Data: []byte("SELECT 1;")},
	}

	got, err := listMigrations(fsys)
	if err != nil {
		t.Fatalf("listMigrations: %v", err)
	}
	want := []int{1, 2, 10}
	if len(got) != len(want) {
		t.Fatalf("Expected %d migrations, got %d: %+v", len(want), len(got), got)
	}
	for i, v := range want {
		if got[i].Version != v {
			t.Errorf("Expected version %d at %d, got %d", v, i, got[i].Version)
		}
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	dir, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		t.Fatalf("fs.Sub: %v", err)
	}
	got, err := listMigrations(dir)
	if err != nil {
		t.Fatalf("listMigrations: %v", err)
	}
	if len(got) == 0 || got[0].Version != 1 {
		t.Fatalf("Expected embedded initial schema, got %+v", got)
	}
}
