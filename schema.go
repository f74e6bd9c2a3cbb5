package sqldao

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/canonical/sqldao/dialect"
)

// IndexType selects between unique and non-unique indexes.
type IndexType int

const (
	IndexKey IndexType = iota
	IndexUnique
)

func (t IndexType) prefix() string {
	if t == IndexUnique {
		return "UNQ"
	}
	return "IDX"
}

// hashSuffixLen is the room kept at the end of a truncated index name for
// "_" and a decimal hash below 100000.
const hashSuffixLen = 6

// IndexName returns the name of the index of the given type on keys. The
// name is the type prefix, the table and the first word of each key with
// backticks removed, joined by "_". A name longer than the dialect allows is
// cut and given a numeric suffix derived from the whole name, so that names
// sharing a long prefix stay distinct. truncated reports whether that
// happened. Lengths count characters, not bytes.
func IndexName(d dialect.Dialect, table string, typ IndexType, keys ...string) (name string, truncated bool) {
	name = fullIndexName(table, typ, keys)
	limit := d.MaxIdentifierLength()
	runes := []rune(name)
	if len(runes) <= limit {
		return name, false
	}
	kept := string(runes[:limit-hashSuffixLen])
	rest := string(runes[limit-hashSuffixLen:])
	h := fnv.New32a()
	h.Write([]byte(name + rest))
	return kept + "_" + strconv.FormatUint(uint64(h.Sum32()%100000), 10), true
}

func fullIndexName(table string, typ IndexType, keys []string) string {
	fields := make([]string, len(keys))
	for i, k := range keys {
		fields[i] = strings.ReplaceAll(strings.SplitN(strings.TrimSpace(k), " ", 2)[0], "`", "")
	}
	return typ.prefix() + "_" + table + "_" + strings.Join(fields, "_")
}

// indexName computes the index name and warns when it had to be truncated.
func (s *session) indexName(table string, typ IndexType, keys []string) string {
	d := s.target.dialect
	name, truncated := IndexName(d, table, typ, keys...)
	if truncated {
		full := fullIndexName(table, typ, keys)
		s.db.logger.Warn("index name too long, using a shortened name",
			"index", full, "length", utf8.RuneCountInString(full), "max", d.MaxIdentifierLength(), "name", name)
	}
	return name
}

func (s *session) indexExists(ctx context.Context, table, name string) (bool, error) {
	rs, err := s.query(ctx, NewCommand(s.target.dialect.IndexExistsQuery(table),
		KV("table", table),
		KV("indexName", name)))
	if err != nil {
		return false, err
	}
	return HasRows(rs), nil
}

func (s *session) ddl(ctx context.Context, stmt string) error {
	s.db.logger.Info("changing schema", "target", s.target.name, "sql", stmt)
	_, err := s.exec(ctx, NewCommand(stmt))
	return err
}

func (s *session) schema(schema string) string {
	if schema == "" {
		return s.db.config.Schema
	}
	return schema
}

// IndexExists reports whether the named index exists on table.
func IndexExists(ctx context.Context, q Querier, table, name string) (exists bool, err error) {
	err = q.withSession(ctx, func(s *session) error {
		exists, err = s.indexExists(ctx, table, name)
		return err
	})
	return exists, err
}

// CreateIndexIfNotExists creates the index of the given type on keys unless
// an index of that name already exists. Keys are column names optionally
// followed by an ordering, such as "`created` DESC". It reports whether the
// index was created.
func CreateIndexIfNotExists(ctx context.Context, q Querier, table string, typ IndexType, keys ...string) (created bool, err error) {
	err = q.withSession(ctx, func(s *session) error {
		name := s.indexName(table, typ, keys)
		exists, err := s.indexExists(ctx, table, name)
		if err != nil {
			return err
		}
		if exists {
			s.db.logger.Info("index already exists", "target", s.target.name, "index", name)
			return nil
		}
		if err := s.ddl(ctx, s.target.dialect.CreateIndex(typ == IndexUnique, name, table, keys)); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

// DeleteIndexIfExists drops the index of the given type on keys if it
// exists. It reports whether the index was dropped.
func DeleteIndexIfExists(ctx context.Context, q Querier, table string, typ IndexType, keys ...string) (deleted bool, err error) {
	err = q.withSession(ctx, func(s *session) error {
		name := s.indexName(table, typ, keys)
		exists, err := s.indexExists(ctx, table, name)
		if err != nil {
			return err
		}
		if !exists {
			s.db.logger.Info("index does not exist, nothing to drop", "target", s.target.name, "index", name)
			return nil
		}
		if err := s.ddl(ctx, s.target.dialect.DropIndex(table, name)); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// ReplaceIndex moves an index from oldName to the name derived from keys. If
// oldName exists it is dropped and the new index added in one statement.
// Otherwise the new index is created unless it already exists. It reports
// whether the schema was changed.
func ReplaceIndex(ctx context.Context, q Querier, oldName, table string, typ IndexType, keys ...string) (changed bool, err error) {
	err = q.withSession(ctx, func(s *session) error {
		d := s.target.dialect
		name := s.indexName(table, typ, keys)
		haveOld, err := s.indexExists(ctx, table, oldName)
		if err != nil {
			return err
		}
		if haveOld {
			if err := s.ddl(ctx, d.ReplaceIndex(table, oldName, typ == IndexUnique, name, keys)); err != nil {
				return err
			}
			changed = true
			return nil
		}

		haveNew, err := s.indexExists(ctx, table, name)
		if err != nil {
			return err
		}
		if haveNew {
			s.db.logger.Info("index already exists", "target", s.target.name, "index", name)
			return nil
		}
		if err := s.ddl(ctx, d.CreateIndex(typ == IndexUnique, name, table, keys)); err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}

// ColumnExists reports whether column exists on table in schema. An empty
// schema selects the configured schema, or the current one.
func ColumnExists(ctx context.Context, q Querier, schema, table, column string) (exists bool, err error) {
	err = q.withSession(ctx, func(s *session) error {
		exists, err = s.columnExists(ctx, schema, table, column)
		return err
	})
	return exists, err
}

func (s *session) columnExists(ctx context.Context, schema, table, column string) (bool, error) {
	rs, err := s.query(ctx, NewCommand(s.target.dialect.ColumnExistsQuery(),
		KV("schema", s.schema(schema)),
		KV("table", table),
		KV("column", column)))
	if err != nil {
		return false, err
	}
	return HasRows(rs), nil
}

// AddOrAlterColumn adds column to table with the given type, or changes the
// type if the column exists. It reports true if the column was added and
// false if it was altered.
func AddOrAlterColumn(ctx context.Context, q Querier, schema, table, column, dataType string) (added bool, err error) {
	err = q.withSession(ctx, func(s *session) error {
		d := s.target.dialect
		exists, err := s.columnExists(ctx, schema, table, column)
		if err != nil {
			return err
		}
		if !exists {
			if err := s.ddl(ctx, d.AddColumn(table, column, dataType)); err != nil {
				return err
			}
			added = true
			return nil
		}
		stmt, err := d.ModifyColumn(table, column, dataType)
		if err != nil {
			return errors.Wrapf(err, "cannot alter column %q of %q", column, table)
		}
		return s.ddl(ctx, stmt)
	})
	return added, err
}

// AddForeignKey adds a foreign key from fromTable.fromKey to toTable.toKey.
// No check is made for an existing key, so calling it twice fails or
// creates a duplicate, depending on the engine.
func AddForeignKey(ctx context.Context, q Querier, fromTable, toTable, fromKey, toKey string) error {
	return q.withSession(ctx, func(s *session) error {
		stmt, err := s.target.dialect.AddForeignKey(fromTable, toTable, fromKey, toKey)
		if err != nil {
			return errors.Wrapf(err, "cannot add foreign key from %q to %q", fromTable, toTable)
		}
		return s.ddl(ctx, stmt)
	})
}

// FunctionExists reports whether the stored routine exists in schema.
func FunctionExists(ctx context.Context, q Querier, schema, function string) (exists bool, err error) {
	err = q.withSession(ctx, func(s *session) error {
		query, err := s.target.dialect.FunctionExistsQuery()
		if err != nil {
			return errors.Wrapf(err, "cannot look up function %q", function)
		}
		rs, err := s.query(ctx, NewCommand(query,
			KV("schema", s.schema(schema)),
			KV("routine", function)))
		if err != nil {
			return err
		}
		exists = HasRows(rs)
		return nil
	})
	return exists, err
}
