package migrations

import (
	"testing"
	"testing/fstest"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		version int
		ok      bool
	}{
		{"V1__init.sql", 1, true},
		{"V12__add_index.sql", 12, true},
		{"init.sql", 0, false},
		{"V1_init.sql", 0, false},
		{"Vx__init.sql", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, ok := parseVersion(tt.name)
			if ok != tt.ok || version != tt.version {
				t.Fatalf("parseVersion(%q) = %d, %v; want %d, %v", tt.name, version, ok, tt.version, tt.ok)
			}
		})
	}
}

func TestListMigrationsOrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/V10__later.sql": {Data: []byte("SELECT 1")},
		"sql/V2__second.sql": {Data: []byte("SELECT 1")},
		"sql/V1__first.sql":  {Data: []byte("SELECT 1")},
		"sql/README.md":      {Data: []byte("notes")},
	}
	migs, err := listMigrations(fsys, "sql")
	if err != nil {
		t.Fatalf("listMigrations: %v", err)
	}
	want := []int{1, 2, 10}
	if len(migs) != len(want) {
		t.Fatalf("got %d migrations, want %d", len(migs), len(want))
	}
	for i, mig := range migs {
		if mig.Version != want[i] {
			t.Fatalf("migration %d has version %d, want %d", i, mig.Version, want[i])
		}
	}
}

func TestListMigrationsRejectsDuplicates(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/V1__a.sql": {Data: []byte("SELECT 1")},
		"sql/V1__b.sql": {Data: []byte("SELECT 1")},
	}
	if _, err := listMigrations(fsys, "sql"); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestEmbeddedMigrationsParse(t *testing.T) {
	migs, err := listMigrations(files, "sql")
	if err != nil {
		t.Fatalf("listMigrations: %v", err)
	}
	if len(migs) == 0 || migs[0].Version != 1 {
		t.Fatalf("expected embedded V1 migration, got %+v", migs)
	}
}
