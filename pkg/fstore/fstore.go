// Package fstore implements the persistent blob store used to save and load
// typed device state (station name cache, IP suite, I&M data, diagnosis
// history): every blob is framed with a 4-byte magic and a 4-byte version
// so a load can reject content written by an incompatible build.
package fstore

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// ErrMagicMismatch is returned by Load when the blob's magic doesn't match.
var ErrMagicMismatch = errors.New("fstore: magic mismatch")

// ErrVersionMismatch is returned by Load when the blob's version is unknown.
var ErrVersionMismatch = errors.New("fstore: unsupported version")

const headerLen = 8

// gzipFlag is OR-ed into the on-disk version word's top bit to mark a
// gzip-compressed payload; the caller-visible version never sees this bit.
const gzipFlag = uint32(1) << 31

// gzipThreshold is the payload size above which Save transparently
// compresses the blob before framing it.
const gzipThreshold = 4096

// Store reads and writes magic+version framed blobs under a directory.
type Store struct {
	dir    string
	log    zerolog.Logger
}

// New creates a Store rooted at dir. An empty dir means the current
// directory, matching the C API's NULL/"" contract.
func New(dir string, log zerolog.Logger) *Store {
	return &Store{dir: dir, log: log}
}

// Join joins dir and name with exactly one '/' between them. It reports
// failure (ok=false) if name is empty, mirroring pf_file_join's -1 return
// for an empty name or an undersized buffer.
func Join(dir, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if dir == "" {
		return name, true
	}
	if dir[len(dir)-1] == '/' {
		return dir + name, true
	}
	return dir + "/" + name, true
}

func (s *Store) path(name string) (string, bool) {
	return Join(s.dir, name)
}

// encode produces the exact on-disk bytes Save would write: magic, then the
// version word (gzip-flagged if the payload ends up compressed), then the
// (possibly compressed) payload. Shared by Save and SaveIfModified so the
// latter compares against what would actually land on disk.
func encode(magic [4]byte, version uint32, data []byte) ([]byte, error) {
	payload := data
	v := version &^ gzipFlag
	if len(data) >= gzipThreshold {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(data); err != nil {
			return nil, fmt.Errorf("fstore: gzip payload: %w", err)
		}
		if err := gw.Close(); err != nil {
			return nil, fmt.Errorf("fstore: gzip payload: %w", err)
		}
		payload = buf.Bytes()
		v |= gzipFlag
	}

	out := make([]byte, 0, headerLen+len(payload))
	out = append(out, magic[:]...)
	var vbuf [4]byte
	binary.BigEndian.PutUint32(vbuf[:], v)
	out = append(out, vbuf[:]...)
	out = append(out, payload...)
	return out, nil
}

// Save writes data under name, framed with magic and version. version's top
// bit is reserved (see gzipFlag) and is masked off of the value the caller
// provided before being compared on Load.
func (s *Store) Save(name string, magic [4]byte, version uint32, data []byte) error {
	p, ok := s.path(name)
	if !ok {
		return fmt.Errorf("fstore: join %q/%q: empty name", s.dir, name)
	}

	encoded, err := encode(magic, version, data)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("fstore: mkdir: %w", err)
	}

	tmp := p + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("fstore: create: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(encoded); err != nil {
		return fmt.Errorf("fstore: write: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("fstore: close: %w", err)
	}
	return os.Rename(tmp, p)
}

// Load reads and validates a blob previously written by Save.
func (s *Store) Load(name string, magic [4]byte, version uint32) ([]byte, error) {
	p, ok := s.path(name)
	if !ok {
		return nil, fmt.Errorf("fstore: join %q/%q: empty name", s.dir, name)
	}

	raw, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	if len(raw) < headerLen {
		return nil, fmt.Errorf("fstore: %s: truncated header", name)
	}
	if !bytes.Equal(raw[0:4], magic[:]) {
		return nil, ErrMagicMismatch
	}

	v := binary.BigEndian.Uint32(raw[4:8])
	gzipped := v&gzipFlag != 0
	v &^= gzipFlag
	if v != version {
		return nil, ErrVersionMismatch
	}

	payload := raw[headerLen:]
	if !gzipped {
		return payload, nil
	}

	gr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("fstore: %s: corrupt gzip payload: %w", name, err)
	}
	defer gr.Close()
	out, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("fstore: %s: corrupt gzip payload: %w", name, err)
	}
	return out, nil
}

// ModifyResult is the outcome of SaveIfModified.
type ModifyResult int

const (
	ModifyError ModifyResult = iota - 1
	ModifyUnchanged
	ModifyUpdated
	ModifyNew
)

// SaveIfModified reads the existing content of name into tempbuf (reused
// across calls by the driver loop to avoid allocating on the device's init
// path), compares it against data framed the same way Save would write it,
// and only writes when they differ.
func (s *Store) SaveIfModified(name string, magic [4]byte, version uint32, data []byte, tempbuf []byte) ModifyResult {
	p, ok := s.path(name)
	if !ok {
		return ModifyError
	}

	existing, err := readInto(p, tempbuf)
	isNew := errors.Is(err, os.ErrNotExist)
	if err != nil && !isNew {
		s.log.Warn().Err(err).Str("file", name).Msg("fstore: read existing blob failed")
		return ModifyError
	}

	want, err := encode(magic, version, data)
	if err != nil {
		s.log.Warn().Err(err).Str("file", name).Msg("fstore: encode failed")
		return ModifyError
	}

	if !isNew && bytes.Equal(existing, want) {
		return ModifyUnchanged
	}

	if err := s.Save(name, magic, version, data); err != nil {
		s.log.Warn().Err(err).Str("file", name).Msg("fstore: save failed")
		return ModifyError
	}
	if isNew {
		return ModifyNew
	}
	return ModifyUpdated
}

// readInto reads the whole file at p, preferring tempbuf's backing array
// when it's large enough.
func readInto(p string, tempbuf []byte) ([]byte, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := bytes.NewBuffer(tempbuf[:0])
	if _, err := io.Copy(buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
