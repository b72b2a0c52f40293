package fstore

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
)

func TestJoin(t *testing.T) {
	cases := []struct {
		dir, name, want string
		ok              bool
	}{
		{"", "foo", "foo", true},
		{"bar", "foo", "bar/foo", true},
		{"bar/", "foo", "bar/foo", true},
		{"bar", "", "", false},
	}
	for _, c := range cases {
		got, ok := Join(c.dir, c.name)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("Join(%q,%q) = %q,%v want %q,%v", c.dir, c.name, got, ok, c.want, c.ok)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, zerolog.Nop())

	magic := [4]byte{'P', 'N', 'E', 'T'}
	data := []byte("station-name-cache")

	if err := s.Save("station_name", magic, 1, data); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("station_name", magic, 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Load = %q want %q", got, data)
	}

	if _, err := s.Load("station_name", [4]byte{'X', 'X', 'X', 'X'}, 1); err != ErrMagicMismatch {
		t.Errorf("wrong magic: got %v want ErrMagicMismatch", err)
	}
	if _, err := s.Load("station_name", magic, 2); err != ErrVersionMismatch {
		t.Errorf("wrong version: got %v want ErrVersionMismatch", err)
	}
}

func TestSaveLoadRoundTripLargeBlob(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, zerolog.Nop())
	magic := [4]byte{'D', 'I', 'A', 'G'}

	data := bytes.Repeat([]byte{0xAB}, gzipThreshold*4)
	if err := s.Save("diag_history", magic, 3, data); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load("diag_history", magic, 3)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("large blob did not round-trip")
	}
}

func TestSaveIfModified(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, zerolog.Nop())
	magic := [4]byte{'I', 'P', 'S', 'U'}
	tmp := make([]byte, 256)

	r := s.SaveIfModified("ip_suite", magic, 1, []byte("a"), tmp)
	if r != ModifyNew {
		t.Fatalf("first save = %v want ModifyNew", r)
	}

	r = s.SaveIfModified("ip_suite", magic, 1, []byte("a"), tmp)
	if r != ModifyUnchanged {
		t.Fatalf("unchanged save = %v want ModifyUnchanged", r)
	}

	r = s.SaveIfModified("ip_suite", magic, 1, []byte("b"), tmp)
	if r != ModifyUpdated {
		t.Fatalf("changed save = %v want ModifyUpdated", r)
	}
}

func TestSaveIfModifiedLargeBlobStable(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, zerolog.Nop())
	magic := [4]byte{'D', 'I', 'A', 'G'}
	tmp := make([]byte, 0, 64*1024)
	data := bytes.Repeat([]byte{0x42}, gzipThreshold*2)

	if r := s.SaveIfModified("hist", magic, 1, data, tmp); r != ModifyNew {
		t.Fatalf("first save = %v want ModifyNew", r)
	}
	if r := s.SaveIfModified("hist", magic, 1, data, tmp); r != ModifyUnchanged {
		t.Fatalf("repeat save of identical large blob = %v want ModifyUnchanged", r)
	}
}
