package sqldao_test

import (
	"time"

	. "gopkg.in/check.v1"

	"github.com/canonical/sqldao"
	"github.com/canonical/sqldao/dialect"
)

type CommandSuite struct{}

var _ = Suite(&CommandSuite{})

type enabled bool

func (s *CommandSuite) TestInferredTypes(c *C) {
	local := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	utc := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	offset := time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("", 3600))
	var nilTime *time.Time

	for _, t := range []struct {
		value    any
		expected sqldao.ParamType
	}{
		{local, sqldao.TypeDateTime},
		{utc, sqldao.TypeDateTime},
		{&utc, sqldao.TypeDateTime},
		{offset, sqldao.TypeDateTimeOffset},
		{&offset, sqldao.TypeDateTimeOffset},
		{nilTime, sqldao.TypeObject},
		{true, sqldao.TypeBoolean},
		{enabled(false), sqldao.TypeBoolean},
		{"text", sqldao.TypeObject},
		{42, sqldao.TypeObject},
		{nil, sqldao.TypeObject},
	} {
		c.Check(sqldao.KV("p", t.value).Type, Equals, t.expected, Commentf("%#v", t.value))
	}
}

func (s *CommandSuite) TestParamTypeString(c *C) {
	c.Assert(sqldao.TypeObject.String(), Equals, "Object")
	c.Assert(sqldao.TypeDateTime.String(), Equals, "DateTime")
	c.Assert(sqldao.TypeDateTimeOffset.String(), Equals, "DateTimeOffset")
	c.Assert(sqldao.TypeBoolean.String(), Equals, "Boolean")
}

func (s *CommandSuite) TestBindOrder(c *C) {
	cmd := sqldao.NewCommand("SELECT @b, @a").Bind(
		sqldao.KV("@b", 2),
		sqldao.When(false, "skipped", 3),
		sqldao.KV("", 4),
		sqldao.When(true, "a", 1),
	)
	c.Assert(cmd.Params(), DeepEquals, []sqldao.Param{
		{Name: "b", Value: 2, Type: sqldao.TypeObject},
		{Name: "a", Value: 1, Type: sqldao.TypeObject},
	})
}

func (s *CommandSuite) TestRender(c *C) {
	cmd := sqldao.NewCommand("SELECT * FROM tag WHERE device_id = @device AND title <> @title AND scan_rate > @@max_rate AND id <> @device",
		sqldao.KV("device", 1), sqldao.KV("title", "flow"))

	query, args, err := cmd.Render(dialect.MySQL)
	c.Assert(err, IsNil)
	c.Assert(query, Equals, "SELECT * FROM tag WHERE device_id = ? AND title <> ? AND scan_rate > @@max_rate AND id <> ?")
	c.Assert(args, DeepEquals, []any{1, "flow", 1})

	query, args, err = cmd.Render(dialect.Postgres)
	c.Assert(err, IsNil)
	c.Assert(query, Equals, "SELECT * FROM tag WHERE device_id = $1 AND title <> $2 AND scan_rate > @@max_rate AND id <> $3")
	c.Assert(args, DeepEquals, []any{1, "flow", 1})
}

func (s *CommandSuite) TestRenderBindError(c *C) {
	cmd := sqldao.NewCommand("SELECT @at", sqldao.TypedKV("at", "soon", sqldao.TypeDateTime))
	_, _, err := cmd.Render(dialect.MySQL)
	c.Assert(err, ErrorMatches, `cannot bind parameter "at" as DateTime: cannot convert soon \(string\) to time.Time: unrecognised timestamp "soon"`)
}

func (s *CommandSuite) TestExpandList(c *C) {
	cmd := sqldao.ExpandList(sqldao.NewCommand("SELECT * FROM tag WHERE id IN (@LIST_ids)"), "ids", []int64{7, 8, 9})
	c.Assert(cmd.SQL(), Equals, "SELECT * FROM tag WHERE id IN (@ids0,@ids1,@ids2)")
	c.Assert(cmd.Params(), DeepEquals, []sqldao.Param{
		sqldao.KV("ids0", int64(7)),
		sqldao.KV("ids1", int64(8)),
		sqldao.KV("ids2", int64(9)),
	})
	c.Assert(cmd.Warnings(), HasLen, 0)

	query, args, err := cmd.Render(dialect.Postgres)
	c.Assert(err, IsNil)
	c.Assert(query, Equals, "SELECT * FROM tag WHERE id IN ($1,$2,$3)")
	c.Assert(args, DeepEquals, []any{int64(7), int64(8), int64(9)})
}

func (s *CommandSuite) TestExpandTemporalList(c *C) {
	offset := time.Date(2024, 1, 1, 12, 0, 0, 0, time.FixedZone("", 3600))
	cmd := sqldao.ExpandList(sqldao.NewCommand("SELECT * FROM t WHERE at IN (@LIST_at)"), "at", []time.Time{offset})
	c.Assert(cmd.Params()[0].Type, Equals, sqldao.TypeDateTimeOffset)
	_, args, err := cmd.Render(dialect.MySQL)
	c.Assert(err, IsNil)
	c.Assert(args, DeepEquals, []any{offset.UTC()})
}

func (s *CommandSuite) TestExpandSeveralLists(c *C) {
	cmd := sqldao.NewCommand("SELECT * FROM tag WHERE id IN (@LIST_ids) AND title IN (@LIST_titles) AND device_id = @device",
		sqldao.KV("device", 3))
	cmd.Expand(sqldao.List("ids", []int{1, 2}), sqldao.List("titles", []string{"flow"}))
	c.Assert(cmd.SQL(), Equals, "SELECT * FROM tag WHERE id IN (@ids0,@ids1) AND title IN (@titles0) AND device_id = @device")

	query, args, err := cmd.Render(dialect.MySQL)
	c.Assert(err, IsNil)
	c.Assert(query, Equals, "SELECT * FROM tag WHERE id IN (?,?) AND title IN (?) AND device_id = ?")
	c.Assert(args, DeepEquals, []any{1, 2, "flow", 3})
}

func (s *CommandSuite) TestExpandEmptyList(c *C) {
	cmd := sqldao.ExpandList(sqldao.NewCommand("SELECT * FROM tag WHERE id IN (@LIST_ids)"), "ids", []int(nil))
	c.Assert(cmd.SQL(), Equals, "SELECT * FROM tag WHERE id IN ()")
	c.Assert(cmd.Params(), HasLen, 0)
	c.Assert(cmd.Warnings(), HasLen, 0)
}

func (s *CommandSuite) TestExpandMissingList(c *C) {
	cmd := sqldao.ExpandList(sqldao.NewCommand("SELECT * FROM tag WHERE id = @id"), "ids", []int{1})
	c.Assert(cmd.SQL(), Equals, "SELECT * FROM tag WHERE id = @id")
	c.Assert(cmd.Params(), HasLen, 0)
	c.Assert(cmd.Warnings(), DeepEquals, []string{
		`list placeholder @LIST_ids not found in "SELECT * FROM tag WHERE id = @id"`,
	})
}

func (s *CommandSuite) TestInvalidStatement(c *C) {
	cmd := sqldao.ExpandList(sqldao.NewCommand("SELECT `id FROM tag WHERE id IN (@LIST_ids)"), "ids", []int{1})
	c.Assert(cmd.Err(), ErrorMatches, "cannot parse statement: column 8: missing closing quote in quoted identifier")
	c.Assert(cmd.Warnings(), HasLen, 0)
	_, _, err := cmd.Render(dialect.MySQL)
	c.Assert(err, Equals, cmd.Err())
}

func (s *CommandSuite) TestTemplatesAreCached(c *C) {
	sql := "SELECT id FROM tag WHERE title = @cached_title"
	sqldao.NewCommand(sql)
	n := sqldao.CachedTemplates()
	sqldao.NewCommand(sql)
	c.Assert(sqldao.CachedTemplates(), Equals, n)
	c.Assert(n <= sqldao.MaxCachedTemplates, Equals, true)
}
