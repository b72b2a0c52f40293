// Package sqlitestore is an additive, non-authoritative audit log for
// pkg/diag: every add/update/remove is appended as a row so an operator
// can inspect diagnosis history offline with an ordinary sqlite3 client.
// It never participates in pkg/diag's validation path, so it cannot change
// that package's success/failure semantics. Grounded on db/atlasdb.DB's
// sqlx.Connect + NamedExec idiom, including its WAL/cache-size pragmas for
// a write-heavy workload.
package sqlitestore

import (
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pnio-go/pnetd/pkg/diag"
)

// Store appends diagnosis operations to a sqlite3 table.
type Store struct {
	x *sqlx.DB
}

// Open opens (creating if necessary) a sqlite3-backed audit log at name.
func Open(name string) (*Store, error) {
	x, err := sqlx.Connect("sqlite3", (&url.URL{
		Path: name,
		RawQuery: (url.Values{
			"_journal":      {"WAL"},
			"_cache_size":   {"-16000"},
			"_busy_timeout": {"6000"},
		}).Encode(),
	}).String())
	if err != nil {
		return nil, err
	}
	if _, err := x.Exec(`
		CREATE TABLE IF NOT EXISTS diag_log (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			ts          INTEGER NOT NULL,
			op          TEXT NOT NULL,
			api         INTEGER NOT NULL,
			slot        INTEGER NOT NULL,
			subslot     INTEGER NOT NULL,
			channel     INTEGER NOT NULL,
			usi         INTEGER NOT NULL,
			man_usi     INTEGER NOT NULL,
			ch_err_type INTEGER NOT NULL,
			ext_err_type INTEGER NOT NULL,
			add_value   INTEGER NOT NULL,
			qualifier   INTEGER NOT NULL
		) STRICT;
	`); err != nil {
		x.Close()
		return nil, err
	}
	return &Store{x: x}, nil
}

func (s *Store) Close() error { return s.x.Close() }

// Op is the kind of operation being logged.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
)

// Log appends one row describing a pkg/diag operation. Errors are returned
// to the caller but, by design, never roll back the in-memory arena
// operation that produced them: this store is strictly additive.
func (s *Store) Log(op Op, src diag.Source, e diag.Entry) error {
	_, err := s.x.NamedExec(`
		INSERT INTO diag_log
			( ts,  op,  api,  slot,  subslot,  channel,  usi,  man_usi,  ch_err_type,  ext_err_type,  add_value,  qualifier)
		VALUES
			(:ts, :op, :api, :slot, :subslot, :channel, :usi, :man_usi, :ch_err_type, :ext_err_type, :add_value, :qualifier)
	`, map[string]any{
		"ts":           time.Now().UnixNano(),
		"op":           string(op),
		"api":          src.API,
		"slot":         src.Slot,
		"subslot":      src.Subslot,
		"channel":      src.Channel,
		"usi":          e.USI,
		"man_usi":      e.ManUSI,
		"ch_err_type":  e.ChErrType,
		"ext_err_type": e.ExtErrType,
		"add_value":    e.AddValue,
		"qualifier":    e.Qualifier,
	})
	return err
}

// Row is one historical diag_log entry, as returned by Recent.
type Row struct {
	ID         int64  `db:"id"`
	TS         int64  `db:"ts"`
	Op         string `db:"op"`
	API        uint32 `db:"api"`
	Slot       uint16 `db:"slot"`
	Subslot    uint16 `db:"subslot"`
	Channel    uint16 `db:"channel"`
	USI        uint16 `db:"usi"`
	ManUSI     uint16 `db:"man_usi"`
	ChErrType  uint16 `db:"ch_err_type"`
	ExtErrType uint16 `db:"ext_err_type"`
	AddValue   uint32 `db:"add_value"`
	Qualifier  uint32 `db:"qualifier"`
}

// Recent returns the most recent n rows logged for the given slot/subslot,
// newest first.
func (s *Store) Recent(slot, subslot uint16, n int) ([]Row, error) {
	var rows []Row
	err := s.x.Select(&rows, `
		SELECT * FROM diag_log WHERE slot = ? AND subslot = ? ORDER BY id DESC LIMIT ?
	`, slot, subslot, n)
	return rows, err
}
