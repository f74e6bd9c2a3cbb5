// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqldao

import (
	"context"
	"database/sql"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/canonical/sqldao/dialect"
)

// DB runs units of work against one or more named database targets. Each
// target owns a connection pool that is opened the first time the target is
// used.
type DB struct {
	config        Config
	logger        *slog.Logger
	defaultTarget string

	mutex   sync.RWMutex
	targets map[string]*target

	timeout   policy[time.Duration]
	isolation policy[sql.IsolationLevel]
}

// target is a named database.
type target struct {
	name    string
	config  TargetConfig
	dialect dialect.Dialect

	mutex sync.Mutex
	pool  *sqlx.DB
}

// Open returns a DB for the targets in cfg. No connection is made until a
// target is used.
func Open(cfg Config) (*DB, error) {
	if _, err := ParseIsolation(cfg.Isolation); err != nil {
		return nil, err
	}
	db := newDB(cfg)
	for name, tc := range cfg.Targets {
		if tc.Driver == "" {
			return nil, errors.Errorf("cannot open target %q: no driver", name)
		}
		var d dialect.Dialect
		var err error
		if tc.Dialect != "" {
			d, err = dialect.ByName(tc.Dialect)
		} else {
			d, err = dialect.ForDriver(tc.Driver)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "cannot open target %q", name)
		}
		db.targets[name] = &target{name: name, config: tc, dialect: d}
	}
	if len(db.targets) == 1 && db.defaultTarget == "" {
		for name := range db.targets {
			db.defaultTarget = name
		}
	}
	if _, ok := db.targets[db.defaultTarget]; !ok {
		return nil, errors.Wrapf(ErrUnknownTarget, "cannot open default target %q", db.defaultTarget)
	}
	return db, nil
}

// NewDB returns a DB whose default target is the given database.
func NewDB(sqldb *sql.DB, d dialect.Dialect) (*DB, error) {
	db := newDB(Config{})
	db.defaultTarget = "default"
	if err := db.AddTarget(db.defaultTarget, sqldb, d); err != nil {
		return nil, err
	}
	return db, nil
}

func newDB(cfg Config) *DB {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	db := &DB{
		config:        cfg,
		logger:        logger,
		defaultTarget: cfg.DefaultTarget,
		targets:       map[string]*target{},
	}
	db.timeout.resolve = func() time.Duration {
		if !cfg.UseCommandTimeout {
			return 0
		}
		if cfg.CommandTimeout > 0 {
			return time.Duration(cfg.CommandTimeout) * time.Second
		}
		return DefaultCommandTimeout
	}
	db.isolation.resolve = func() sql.IsolationLevel {
		// Validated by Open.
		level, _ := ParseIsolation(cfg.Isolation)
		return level
	}
	return db
}

// AddTarget registers an already opened database under name, replacing any
// target of the same name.
func (db *DB) AddTarget(name string, sqldb *sql.DB, d dialect.Dialect) error {
	if sqldb == nil {
		return errors.Errorf("cannot add target %q: no database", name)
	}
	if d == nil {
		return errors.Errorf("cannot add target %q: no dialect", name)
	}
	t := &target{
		name:    name,
		dialect: d,
		pool:    sqlx.NewDb(sqldb, d.Name()),
	}
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.targets[name] = t
	return nil
}

// Targets returns the names of the configured targets.
func (db *DB) Targets() []string {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	names := make([]string, 0, len(db.targets))
	for name := range db.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultTarget returns the name of the target used when none is given.
func (db *DB) DefaultTarget() string {
	return db.defaultTarget
}

// Dialect returns the dialect of the named target.
func (db *DB) Dialect(name string) (dialect.Dialect, error) {
	t, err := db.target(name)
	if err != nil {
		return nil, err
	}
	return t.dialect, nil
}

// CommandTimeout returns the timeout applied to commands that do not set
// their own. Zero means no timeout.
func (db *DB) CommandTimeout() time.Duration {
	return db.timeout.get()
}

// SetCommandTimeout overrides the configured command timeout.
func (db *DB) SetCommandTimeout(d time.Duration) {
	db.timeout.set(d)
}

// Isolation returns the isolation level transactions are started with.
func (db *DB) Isolation() sql.IsolationLevel {
	return db.isolation.get()
}

// SetIsolation overrides the configured isolation level.
func (db *DB) SetIsolation(level sql.IsolationLevel) {
	db.isolation.set(level)
}

// Close closes the connection pools of all targets.
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	var firstErr error
	for _, t := range db.targets {
		t.mutex.Lock()
		if t.pool != nil {
			if err := t.pool.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			t.pool = nil
		}
		t.mutex.Unlock()
	}
	return firstErr
}

func (db *DB) target(name string) (*target, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	t, ok := db.targets[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTarget, "target %q", name)
	}
	return t, nil
}

// open returns the connection pool of the target, opening it on first use.
// A failed attempt is not remembered, so a later call tries again.
func (t *target) open(ctx context.Context, db *DB) (*sqlx.DB, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.pool != nil {
		return t.pool, nil
	}
	if t.config.Driver == "" {
		return nil, errors.Errorf("cannot reopen target %q", t.name)
	}

	dsn, err := normaliseDSN(t.config.Driver, t.config.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open target %q", t.name)
	}
	pool, err := sqlx.Open(t.config.Driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open target %q", t.name)
	}

	attempts := db.config.ConnectAttempts
	if attempts <= 0 {
		attempts = defaultConnectAttempts
	}
	wait := db.config.ConnectBackoff
	if wait <= 0 {
		wait = defaultConnectBackoff
	}
	err = retry.Retry(func(attempt uint) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := pool.PingContext(ctx)
		if err != nil {
			db.logger.Warn("cannot reach database", "target", t.name, "attempt", attempt, "err", err)
		}
		return err
	}, strategy.Limit(uint(attempts)), strategy.Backoff(backoff.Linear(wait)))
	if err != nil {
		pool.Close()
		return nil, errors.Wrapf(err, "cannot connect to target %q", t.name)
	}

	db.logger.Debug("opened database", "target", t.name, "driver", t.config.Driver, "dialect", t.dialect.Name())
	t.pool = pool
	return pool, nil
}

// execer is implemented by *sqlx.Tx and *sqlx.Conn.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
}

// session runs commands on one connection, inside a transaction or not.
type session struct {
	db     *DB
	target *target
	ex     execer
}

// Querier runs commands. It is implemented by *DB, *Tx and *Conn. Commands
// run through a *DB each get their own transaction on the default target.
type Querier interface {
	withSession(ctx context.Context, fn func(*session) error) error
}

// Tx is a transaction supplied to a unit of work. It must not be used once
// the unit of work has returned.
type Tx struct {
	session
	done int32
}

func (tx *Tx) isDone() bool {
	return atomic.LoadInt32(&tx.done) == 1
}

func (tx *Tx) setDone() error {
	if !atomic.CompareAndSwapInt32(&tx.done, 0, 1) {
		return ErrTxDone
	}
	return nil
}

func (tx *Tx) commit(sqltx *sqlx.Tx) error {
	err := tx.setDone()
	if err == nil {
		err = sqltx.Commit()
	}
	return err
}

func (tx *Tx) rollback(sqltx *sqlx.Tx) error {
	err := tx.setDone()
	if err == nil {
		err = sqltx.Rollback()
	}
	return err
}

// Target returns the name of the target the transaction runs on.
func (tx *Tx) Target() string {
	return tx.target.name
}

// Dialect returns the dialect of the target.
func (tx *Tx) Dialect() dialect.Dialect {
	return tx.target.dialect
}

func (tx *Tx) withSession(_ context.Context, fn func(*session) error) error {
	if tx.isDone() {
		return ErrTxDone
	}
	return fn(&tx.session)
}

// Conn is a connection supplied to an operation. Each command on it commits
// on its own. It must not be used once the operation has returned.
type Conn struct {
	session
	done int32
}

// Target returns the name of the target the connection belongs to.
func (c *Conn) Target() string {
	return c.target.name
}

// Dialect returns the dialect of the target.
func (c *Conn) Dialect() dialect.Dialect {
	return c.target.dialect
}

func (c *Conn) withSession(_ context.Context, fn func(*session) error) error {
	if atomic.LoadInt32(&c.done) == 1 {
		return ErrTxDone
	}
	return fn(&c.session)
}

func (db *DB) withSession(ctx context.Context, fn func(*session) error) error {
	return db.Transact(ctx, func(tx *Tx) error {
		return fn(&tx.session)
	})
}

// Transaction runs fn in a transaction on the default target. The
// transaction is committed if fn returns a nil error and rolled back
// otherwise, in which case the error from fn is returned. If fn panics the
// transaction is rolled back and the panic continues.
func Transaction[T any](ctx context.Context, db *DB, fn func(*Tx) (T, error)) (T, error) {
	return TransactionOn(ctx, db, db.defaultTarget, fn)
}

// TransactionOn is like Transaction but runs on the named target.
func TransactionOn[T any](ctx context.Context, db *DB, name string, fn func(*Tx) (T, error)) (result T, err error) {
	var zero T
	t, err := db.target(name)
	if err != nil {
		return zero, err
	}
	pool, err := t.open(ctx, db)
	if err != nil {
		return zero, err
	}
	conn, err := pool.Connx(ctx)
	if err != nil {
		return zero, errors.Wrapf(err, "cannot get connection to target %q", t.name)
	}
	defer conn.Close()

	level := db.Isolation()
	sqltx, err := conn.BeginTxx(ctx, &sql.TxOptions{Isolation: level})
	if err != nil {
		return zero, errors.Wrapf(err, "cannot begin transaction on target %q", t.name)
	}
	db.logger.Debug("transaction started", "target", t.name, "isolation", level.String())

	tx := &Tx{session: session{db: db, target: t, ex: sqltx}}
	defer func() {
		if r := recover(); r != nil {
			if rbErr := tx.rollback(sqltx); rbErr != nil {
				db.logger.Warn("cannot roll back transaction", "target", t.name, "err", rbErr)
			}
			panic(r)
		}
	}()

	result, err = fn(tx)
	if err != nil {
		if rbErr := tx.rollback(sqltx); rbErr != nil {
			db.logger.Warn("cannot roll back transaction", "target", t.name, "err", rbErr)
		}
		return zero, err
	}
	if err := tx.commit(sqltx); err != nil {
		return zero, errors.Wrapf(err, "cannot commit transaction on target %q", t.name)
	}
	return result, nil
}

// Transact is Transaction for units of work without a result.
func (db *DB) Transact(ctx context.Context, fn func(*Tx) error) error {
	return db.TransactOn(ctx, db.defaultTarget, fn)
}

// TransactOn is TransactionOn for units of work without a result.
func (db *DB) TransactOn(ctx context.Context, name string, fn func(*Tx) error) error {
	_, err := TransactionOn(ctx, db, name, func(tx *Tx) (struct{}, error) {
		return struct{}{}, fn(tx)
	})
	return err
}

// Operation runs fn with a connection to the default target, without a
// transaction. A failure is logged and returned.
func Operation[T any](ctx context.Context, db *DB, fn func(*Conn) (T, error)) (T, error) {
	return OperationOn(ctx, db, db.defaultTarget, fn)
}

// OperationOn is like Operation but runs on the named target.
func OperationOn[T any](ctx context.Context, db *DB, name string, fn func(*Conn) (T, error)) (T, error) {
	var zero T
	t, err := db.target(name)
	if err != nil {
		return zero, err
	}
	pool, err := t.open(ctx, db)
	if err != nil {
		return zero, err
	}
	sqlconn, err := pool.Connx(ctx)
	if err != nil {
		return zero, errors.Wrapf(err, "cannot get connection to target %q", t.name)
	}
	defer sqlconn.Close()

	conn := &Conn{session: session{db: db, target: t, ex: sqlconn}}
	defer atomic.StoreInt32(&conn.done, 1)

	result, err := fn(conn)
	if err != nil {
		db.logger.Error("operation failed", "target", t.name, "err", err)
		return zero, err
	}
	return result, nil
}

// Do is Operation for units of work without a result.
func (db *DB) Do(ctx context.Context, fn func(*Conn) error) error {
	return db.DoOn(ctx, db.defaultTarget, fn)
}

// DoOn is OperationOn for units of work without a result.
func (db *DB) DoOn(ctx context.Context, name string, fn func(*Conn) error) error {
	_, err := OperationOn(ctx, db, name, func(c *Conn) (struct{}, error) {
		return struct{}{}, fn(c)
	})
	return err
}

// prepare renders cmd for the session's dialect and applies the command
// timeout to ctx. The returned cancel function must be called.
func (s *session) prepare(ctx context.Context, cmd *Command) (string, []any, context.Context, context.CancelFunc, error) {
	query, args, err := cmd.render(s.target.dialect)
	for _, w := range cmd.Warnings() {
		s.db.logger.Warn(w, "target", s.target.name)
	}
	if err != nil {
		return "", nil, nil, nil, err
	}
	timeout := cmd.timeout
	if timeout == 0 {
		timeout = s.db.CommandTimeout()
	}
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	s.db.logger.Debug("running statement", "target", s.target.name, "sql", query, "args", len(args))
	return query, args, ctx, cancel, nil
}

// query runs cmd and reads all the rows it returns.
func (s *session) query(ctx context.Context, cmd *Command) (*ResultSet, error) {
	query, args, ctx, cancel, err := s.prepare(ctx, cmd)
	if err != nil {
		return nil, err
	}
	defer cancel()

	rows, err := s.ex.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, &ExecutionError{SQL: cmd.SQL(), Params: cmd.Params(), Err: err}
	}
	rs, err := readAll(rows, s.db.logger)
	if err != nil {
		return nil, &ExecutionError{SQL: cmd.SQL(), Params: cmd.Params(), Err: err}
	}
	return rs, nil
}

// exec runs cmd and returns its result.
func (s *session) exec(ctx context.Context, cmd *Command) (sql.Result, error) {
	query, args, ctx, cancel, err := s.prepare(ctx, cmd)
	if err != nil {
		return nil, err
	}
	defer cancel()

	res, err := s.ex.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, &ExecutionError{SQL: cmd.SQL(), Params: cmd.Params(), Err: err}
	}
	return res, nil
}
