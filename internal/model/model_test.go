package model

import (
	"errors"
	"testing"
)

type mapFields map[string]string

func (m mapFields) Get(name string) string { return m[name] }

func TestLookupCEPR(t *testing.T) {
	m, err := Lookup("cepr")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if m.Table != "cepr_files" {
		t.Errorf("expected table cepr_files, got %s", m.Table)
	}
	if m.HeaderRows != 1 {
		t.Errorf("expected 1 header row, got %d", m.HeaderRows)
	}
	want := []string{"cepr", "dob", "dtr"}
	for i, c := range want {
		if m.Columns[i] != c {
			t.Errorf("column %d = %s, want %s", i, m.Columns[i], c)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("nope")
	if !errors.Is(err, ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Model)
		wantErr bool
	}{
		{name: "cepr", mutate: func(*Model) {}},
		{name: "missing name", mutate: func(m *Model) { m.Name = "" }, wantErr: true},
		{name: "injected table", mutate: func(m *Model) { m.Table = "files; DROP TABLE x" }, wantErr: true},
		{name: "quoted column", mutate: func(m *Model) { m.URLColumn = `"url"` }, wantErr: true},
		{name: "no columns", mutate: func(m *Model) { m.Columns = nil }, wantErr: true},
		{name: "duplicate column", mutate: func(m *Model) { m.Columns = []string{"a", "a"} }, wantErr: true},
		{name: "negative header rows", mutate: func(m *Model) { m.HeaderRows = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := CEPR
			m.Columns = append([]string(nil), CEPR.Columns...)
			tt.mutate(&m)
			if err := m.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	m := CEPR
	m.Name = "cepr_archive"
	m.Table = "cepr_archive_files"
	if err := Register(m); err != nil {
		t.Fatalf("Register: %v", err)
	}
	t.Cleanup(func() { delete(registry, m.Name) })

	got, err := Lookup("cepr_archive")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Table != "cepr_archive_files" {
		t.Errorf("expected registered table, got %s", got.Table)
	}

	names := Names()
	if len(names) != 2 || names[0] != "cepr" || names[1] != "cepr_archive" {
		t.Errorf("unexpected names %v", names)
	}
}

func TestDecode(t *testing.T) {
	r := Decode(mapFields{"cepr": "1", "dob": "2000-01-01", "dtr": "2020-01-01"})
	want := Record{CEPR: "1", DOB: "2000-01-01", DTR: "2020-01-01"}
	if r != want {
		t.Errorf("Decode = %+v, want %+v", r, want)
	}

	if r := Decode(mapFields{}); r != (Record{}) {
		t.Errorf("expected empty record, got %+v", r)
	}
}
