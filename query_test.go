package sqldao_test

import (
	"context"
	"errors"
	"time"

	. "gopkg.in/check.v1"

	"github.com/canonical/sqldao"
)

func (s *PackageSuite) TestScalar(c *C) {
	ctx := context.Background()
	n, err := sqldao.Scalar[int](ctx, s.db, sqldao.NewCommand("SELECT count(*) FROM tag WHERE device_id = @device", sqldao.KV("device", 1)))
	c.Assert(err, IsNil)
	c.Assert(n, Equals, 2)

	scale, err := sqldao.Scalar[float64](ctx, s.db, sqldao.NewCommand("SELECT scale FROM device WHERE id = 1"))
	c.Assert(err, IsNil)
	c.Assert(scale, Equals, 1.5)

	name, err := sqldao.Scalar[string](ctx, s.db, sqldao.NewCommand("SELECT name FROM device WHERE id = 99"))
	c.Assert(err, IsNil)
	c.Assert(name, Equals, "")

	rate, err := sqldao.Scalar[*int64](ctx, s.db, sqldao.NewCommand("SELECT scan_rate FROM tag WHERE id = 3"))
	c.Assert(err, IsNil)
	c.Assert(rate, IsNil)
}

func (s *PackageSuite) TestScalarConversionError(c *C) {
	ctx := context.Background()
	_, err := sqldao.Scalar[int](ctx, s.db, sqldao.NewCommand("SELECT name FROM device WHERE id = 1"))
	c.Assert(err, ErrorMatches, `cannot convert pump \(string\) to int: .*`)
	var convErr *sqldao.ConversionError
	c.Assert(errors.As(err, &convErr), Equals, true)
	c.Assert(convErr.Value, Equals, "pump")
	c.Assert(convErr.Target, Equals, "int")
	c.Assert(s.log.String(), Matches, `(?s).*level=ERROR msg="cannot convert scalar" sql="SELECT name FROM device WHERE id = 1" value=pump target=int.*`)

	_, err = sqldao.Scalar[int](ctx, s.db, sqldao.NewCommand("SELECT id FROM device WHERE id = 99"))
	c.Assert(err, ErrorMatches, `cannot convert <nil> \(<nil>\) to int: value is null`)
}

func (s *PackageSuite) TestScalarThen(c *C) {
	ctx := context.Background()
	n, err := sqldao.ScalarThen[int64](ctx, s.db, sqldao.NewCommand("SELECT max(scan_rate) FROM tag"), func(v int64) (int64, error) {
		return v * 2, nil
	})
	c.Assert(err, IsNil)
	c.Assert(n, Equals, int64(500))
}

func (s *PackageSuite) TestInsertIDMatchesStoredID(c *C) {
	ctx := context.Background()
	err := s.db.Transact(ctx, func(tx *sqldao.Tx) error {
		id, err := sqldao.InsertID(ctx, tx, sqldao.NewCommand("INSERT INTO tag (device_id, title) VALUES (@device, @title)",
			sqldao.KV("device", 2), sqldao.KV("title", "x")))
		if err != nil {
			return err
		}
		stored, err := sqldao.Scalar[int64](ctx, tx, sqldao.NewCommand("SELECT id FROM tag WHERE title = 'x'"))
		if err != nil {
			return err
		}
		c.Check(id, Equals, stored)
		c.Check(id, Equals, int64(4))
		return nil
	})
	c.Assert(err, IsNil)

	stmts := sqldao.RecordedStatements(c.TestName())
	c.Assert(stmts[:2], DeepEquals, []string{
		"INSERT INTO tag (device_id, title) VALUES (?, ?)",
		"SELECT last_insert_rowid()",
	})
}

func (s *PackageSuite) TestExists(c *C) {
	ctx := context.Background()
	ok, err := sqldao.Exists(ctx, s.db, sqldao.NewCommand("SELECT 1 FROM device WHERE name = @name", sqldao.KV("name", "valve")))
	c.Assert(err, IsNil)
	c.Assert(ok, Equals, true)

	ok, err = sqldao.Exists(ctx, s.db, sqldao.NewCommand("SELECT 1 FROM device WHERE name = @name", sqldao.KV("name", "boiler")))
	c.Assert(err, IsNil)
	c.Assert(ok, Equals, false)
}

func (s *PackageSuite) TestListExpansion(c *C) {
	ctx := context.Background()
	cmd := sqldao.ExpandList(sqldao.NewCommand("SELECT name FROM device WHERE id IN (@LIST_ids) ORDER BY id"), "ids", []int{3, 1})
	names, err := sqldao.QueryList(ctx, s.db, cmd, sqldao.Value[string]("name"))
	c.Assert(err, IsNil)
	c.Assert(names, DeepEquals, []string{"pump", "meter"})
	c.Assert(sqldao.RecordedStatements(c.TestName()), DeepEquals, []string{
		"SELECT name FROM device WHERE id IN (?,?) ORDER BY id",
	})
}

func (s *PackageSuite) TestMultipleListExpansion(c *C) {
	ctx := context.Background()
	cmd := sqldao.NewCommand(`
SELECT t.title FROM tag t JOIN device d ON d.id = t.device_id
WHERE d.name IN (@LIST_devices) AND t.title NOT IN (@LIST_skip) AND t.scan_rate > @rate
ORDER BY t.id`, sqldao.KV("rate", 10)).Expand(
		sqldao.List("devices", []string{"pump", "meter"}),
		sqldao.List("skip", []string{"flow"}),
	)
	titles, err := sqldao.QueryList(ctx, s.db, cmd, func(row sqldao.Row) (string, error) {
		return row.String("title"), nil
	})
	c.Assert(err, IsNil)
	c.Assert(titles, DeepEquals, []string{"pressure"})
}

func (s *PackageSuite) TestEmptyListMatchesNothing(c *C) {
	ctx := context.Background()
	cmd := sqldao.ExpandList(sqldao.NewCommand("SELECT name FROM device WHERE id IN (@LIST_ids)"), "ids", []int{})
	c.Assert(cmd.SQL(), Equals, "SELECT name FROM device WHERE id IN ()")
	rs, err := sqldao.Query(ctx, s.db, cmd)
	c.Assert(err, IsNil)
	c.Assert(rs.Len(), Equals, 0)
}

func (s *PackageSuite) TestBackslashIsLiteralInSQLiteStrings(c *C) {
	ctx := context.Background()
	cmd := sqldao.NewCommand(`SELECT 'C:\' || @dir`, sqldao.KV("dir", "logs"))
	path, err := sqldao.Scalar[string](ctx, s.db, cmd)
	c.Assert(err, IsNil)
	c.Assert(path, Equals, `C:\logs`)
	c.Assert(cmd.Err(), IsNil)
	c.Assert(sqldao.RecordedStatements(c.TestName()), DeepEquals, []string{`SELECT 'C:\' || ?`})
}

func (s *PackageSuite) TestMissingListMarkerIsLogged(c *C) {
	ctx := context.Background()
	cmd := sqldao.ExpandList(sqldao.NewCommand("SELECT name FROM device WHERE id = @id", sqldao.KV("id", 2)), "ids", []int{1, 2})
	name, err := sqldao.Scalar[string](ctx, s.db, cmd)
	c.Assert(err, IsNil)
	c.Assert(name, Equals, "valve")
	c.Assert(s.log.String(), Matches, `(?s).*level=WARN msg="list placeholder @LIST_ids not found in \\"SELECT name FROM device WHERE id = @id\\"" target=main.*`)
}

func (s *PackageSuite) TestQueryMapDuplicateKey(c *C) {
	ctx := context.Background()
	cmd := sqldao.NewCommand("SELECT device_id, title FROM tag ORDER BY id")
	_, err := sqldao.QueryMap(ctx, s.db, cmd, func(row sqldao.Row) (int64, string, error) {
		id, err := row.Int64("device_id")
		return id, row.String("title"), err
	})
	c.Assert(err, ErrorMatches, "duplicate key 1 in row 1")
	var dupErr *sqldao.DuplicateKeyError
	c.Assert(errors.As(err, &dupErr), Equals, true)
	c.Assert(dupErr.Key, Equals, int64(1))
	c.Assert(dupErr.Row, Equals, 1)

	titles, err := sqldao.QueryMap(ctx, s.db, sqldao.NewCommand("SELECT id, title FROM tag"), func(row sqldao.Row) (int, string, error) {
		id, err := row.Int("id")
		return id, row.String("title"), err
	})
	c.Assert(err, IsNil)
	c.Assert(titles, DeepEquals, map[int]string{1: "pressure", 2: "flow", 3: "volume"})
}

func (s *PackageSuite) TestQueryFirst(c *C) {
	ctx := context.Background()
	empty := sqldao.NewCommand("SELECT name FROM device WHERE id = 99")

	_, err := sqldao.QueryFirstOrFail(ctx, s.db, empty, sqldao.Value[string]("name"))
	c.Assert(err, ErrorMatches, "cannot find row 0: result has 0 rows")
	var nfErr *sqldao.NotFoundError
	c.Assert(errors.As(err, &nfErr), Equals, true)
	c.Assert(*nfErr, Equals, sqldao.NotFoundError{Index: 0, Count: 0})

	name, err := sqldao.QueryFirstOrDefault(ctx, s.db, sqldao.NewCommand("SELECT name FROM device WHERE id = 99"), "none", sqldao.Value[string]("name"))
	c.Assert(err, IsNil)
	c.Assert(name, Equals, "none")

	ptr, err := sqldao.QueryFirstOrNil(ctx, s.db, sqldao.NewCommand("SELECT name FROM device WHERE id = 99"), sqldao.Value[string]("name"))
	c.Assert(err, IsNil)
	c.Assert(ptr, IsNil)

	ptr, err = sqldao.QueryFirstOrNil(ctx, s.db, sqldao.NewCommand("SELECT name FROM device ORDER BY id DESC"), sqldao.Value[string]("name"))
	c.Assert(err, IsNil)
	c.Assert(*ptr, Equals, "meter")

	name, err = sqldao.QueryFirstOrFail(ctx, s.db, sqldao.NewCommand("SELECT name FROM device ORDER BY id"), sqldao.Value[string]("name"))
	c.Assert(err, IsNil)
	c.Assert(name, Equals, "pump")
}

func (s *PackageSuite) TestStructRows(c *C) {
	ctx := context.Background()
	devices, err := sqldao.QueryList(ctx, s.db, sqldao.NewCommand("SELECT * FROM device ORDER BY id"), sqldao.Struct[Device]())
	c.Assert(err, IsNil)
	scale, two := 1.5, 2.0
	c.Assert(devices, DeepEquals, []Device{
		{ID: 1, Name: "pump", Active: true, Scale: &scale},
		{ID: 2, Name: "valve", Active: false},
		{ID: 3, Name: "meter", Active: true, Scale: &two},
	})

	_, err = sqldao.QueryList(ctx, s.db, sqldao.NewCommand("SELECT name FROM device"), sqldao.Struct[Device]())
	c.Assert(err, ErrorMatches, `cannot map row to sqldao_test.Device: missing column "id"`)
}

func (s *PackageSuite) TestTemporalParameters(c *C) {
	ctx := context.Background()
	zone := time.FixedZone("plant", 2*60*60)
	local := time.Date(2024, 3, 4, 12, 0, 0, 0, zone)

	_, err := sqldao.Exec(ctx, s.db, sqldao.NewCommand("UPDATE device SET created = @created WHERE id = 2", sqldao.KV("created", local)))
	c.Assert(err, IsNil)

	created, err := sqldao.Scalar[time.Time](ctx, s.db, sqldao.NewCommand("SELECT created FROM device WHERE id = 2"))
	c.Assert(err, IsNil)
	c.Assert(created.Equal(local), Equals, true)

	rs, err := sqldao.Query(ctx, s.db, sqldao.NewCommand("SELECT created FROM device WHERE id = 1"))
	c.Assert(err, IsNil)
	first, err := rs.Row(0).Time("created")
	c.Assert(err, IsNil)
	c.Assert(first.Equal(time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)), Equals, true)
}
