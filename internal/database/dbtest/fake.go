// Package dbtest provides a scripted in-memory database.DB for tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"jobpilot/internal/database"

	"github.com/jackc/pgx/v5"
)

// Call is one statement the fake received.
type Call struct {
	Query string
	Args  []any
	InTx  bool
}

// Normalized returns the lower-cased query with collapsed whitespace.
func (c Call) Normalized() string { return Normalize(c.Query) }

func Normalize(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

// Result is what a Handler returns for a statement. Rows feed Query and
// QueryRow; an empty Rows on QueryRow yields pgx.ErrNoRows.
type Result struct {
	RowsAffected int64
	Rows         [][]any
	Err          error
}

type Handler func(c Call) Result

type DB struct {
	mu      sync.Mutex
	handler Handler

	Calls     []Call
	Begins    int
	Commits   int
	Rollbacks int
	BeginErr  error
}

func New(h Handler) *DB {
	if h == nil {
		h = func(Call) Result { return Result{} }
	}
	return &DB{handler: h}
}

func (db *DB) do(inTx bool, query string, args []any) Result {
	db.mu.Lock()
	c := Call{Query: query, Args: args, InTx: inTx}
	db.Calls = append(db.Calls, c)
	h := db.handler
	db.mu.Unlock()
	return h(c)
}

// Statements returns the normalized text of every recorded call.
func (db *DB) Statements() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]string, 0, len(db.Calls))
	for _, c := range db.Calls {
		out = append(out, c.Normalized())
	}
	return out
}

func (db *DB) Ping(context.Context) error { return nil }
func (db *DB) Close() error                { return nil }
func (db *DB) SQLDB() *sql.DB              { return nil }

func (db *DB) Exec(_ context.Context, query string, args ...any) (int64, error) {
	r := db.do(false, query, args)
	return r.RowsAffected, r.Err
}

func (db *DB) Query(_ context.Context, query string, args ...any) (database.Rows, error) {
	r := db.do(false, query, args)
	if r.Err != nil {
		return nil, r.Err
	}
	return &Rows{rows: r.Rows, i: -1}, nil
}

func (db *DB) QueryRow(_ context.Context, query string, args ...any) database.Row {
	return row(db.do(false, query, args))
}

func (db *DB) Begin(context.Context) (database.Tx, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.BeginErr != nil {
		return nil, db.BeginErr
	}
	db.Begins++
	return &Tx{db: db}, nil
}

type Tx struct {
	db   *DB
	done bool
}

func (t *Tx) Exec(_ context.Context, query string, args ...any) (int64, error) {
	r := t.db.do(true, query, args)
	return r.RowsAffected, r.Err
}

func (t *Tx) Query(_ context.Context, query string, args ...any) (database.Rows, error) {
	r := t.db.do(true, query, args)
	if r.Err != nil {
		return nil, r.Err
	}
	return &Rows{rows: r.Rows, i: -1}, nil
}

func (t *Tx) QueryRow(_ context.Context, query string, args ...any) database.Row {
	return row(t.db.do(true, query, args))
}

func (t *Tx) Commit(context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.Commits++
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.Rollbacks++
	return nil
}

type Rows struct {
	rows [][]any
	i    int
}

func (r *Rows) Close()     {}
func (r *Rows) Err() error { return nil }

func (r *Rows) Next() bool {
	r.i++
	return r.i < len(r.rows)
}

func (r *Rows) Scan(dest ...any) error {
	if r.i < 0 || r.i >= len(r.rows) {
		return fmt.Errorf("scan outside of rows")
	}
	return Assign(r.rows[r.i], dest)
}

type rowResult struct {
	vals []any
	err  error
}

func row(r Result) rowResult {
	if r.Err != nil {
		return rowResult{err: r.Err}
	}
	if len(r.Rows) == 0 {
		return rowResult{err: pgx.ErrNoRows}
	}
	return rowResult{vals: r.Rows[0]}
}

func (r rowResult) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return Assign(r.vals, dest)
}

// Assign copies vals into scan destinations. A nil value zeroes the target;
// a value is wrapped in a pointer when the target is a pointer field.
func Assign(vals []any, dest []any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("scan dest mismatch: %d values into %d targets", len(vals), len(dest))
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d)
		if dv.Kind() != reflect.Pointer || dv.IsNil() {
			return fmt.Errorf("scan target %d is not a pointer", i)
		}
		if sc, ok := d.(sql.Scanner); ok {
			if err := sc.Scan(vals[i]); err != nil {
				return fmt.Errorf("scan target %d: %w", i, err)
			}
			continue
		}
		target := dv.Elem()
		if vals[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		v := reflect.ValueOf(vals[i])
		switch {
		case v.Type().AssignableTo(target.Type()):
			target.Set(v)
		case target.Kind() == reflect.Pointer && v.Type().AssignableTo(target.Type().Elem()):
			p := reflect.New(target.Type().Elem())
			p.Elem().Set(v)
			target.Set(p)
		case v.Type().ConvertibleTo(target.Type()) && v.Kind() != reflect.String && target.Kind() != reflect.String:
			target.Set(v.Convert(target.Type()))
		case v.Kind() == reflect.String && target.Type() == reflect.TypeOf([]byte(nil)):
			target.SetBytes([]byte(v.String()))
		default:
			return fmt.Errorf("scan target %d: cannot assign %T to %s", i, vals[i], target.Type())
		}
	}
	return nil
}
