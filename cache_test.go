// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqldao

import (
	"fmt"
	"sync"

	check "gopkg.in/check.v1"

	"github.com/canonical/sqldao/internal/expr"
)

type CacheSuite struct{}

var _ = check.Suite(&CacheSuite{})

func (s *CacheSuite) TestSingleton(c *check.C) {
	c.Assert(newTemplateCache(), check.Equals, templates)
}

func (s *CacheSuite) TestTemplateReuse(c *check.C) {
	tc := &templateCache{templates: map[templateKey]*expr.Template{}}

	t1, err := tc.parse("SELECT * FROM t WHERE id = @id", expr.MySQL)
	c.Assert(err, check.IsNil)
	t2, err := tc.parse("SELECT * FROM t WHERE id = @id", expr.MySQL)
	c.Assert(err, check.IsNil)
	c.Assert(t1, check.Equals, t2)
	c.Assert(tc.len(), check.Equals, 1)

	t3, err := tc.parse("SELECT * FROM t WHERE id = @other", expr.MySQL)
	c.Assert(err, check.IsNil)
	c.Assert(t3, check.Not(check.Equals), t1)
	c.Assert(tc.len(), check.Equals, 2)
}

func (s *CacheSuite) TestParseErrorNotCached(c *check.C) {
	tc := &templateCache{templates: map[templateKey]*expr.Template{}}

	t, err := tc.parse("SELECT 'unfinished", expr.MySQL)
	c.Assert(err, check.ErrorMatches, "cannot parse statement: column 8: missing closing quote in string literal")
	c.Assert(t, check.IsNil)
	c.Assert(tc.len(), check.Equals, 0)
}

func (s *CacheSuite) TestCacheEmptiedWhenFull(c *check.C) {
	tc := &templateCache{templates: map[templateKey]*expr.Template{}}

	for i := 0; i < maxCachedTemplates; i++ {
		_, err := tc.parse(fmt.Sprintf("SELECT %d", i), expr.MySQL)
		c.Assert(err, check.IsNil)
	}
	c.Assert(tc.len(), check.Equals, maxCachedTemplates)

	// A cached statement does not count as a new entry.
	_, err := tc.parse("SELECT 0", expr.MySQL)
	c.Assert(err, check.IsNil)
	c.Assert(tc.len(), check.Equals, maxCachedTemplates)

	_, err = tc.parse("SELECT 'one too many'", expr.MySQL)
	c.Assert(err, check.IsNil)
	c.Assert(tc.len(), check.Equals, 1)
}

func (s *CacheSuite) TestConcurrentParse(c *check.C) {
	tc := &templateCache{templates: map[templateKey]*expr.Template{}}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := tc.parse(fmt.Sprintf("SELECT * FROM t WHERE id = @id%d", i%5), expr.MySQL)
			c.Check(err, check.IsNil)
		}(i)
	}
	wg.Wait()
	c.Assert(tc.len(), check.Equals, 5)
}

func (s *CacheSuite) TestSyntaxIsPartOfKey(c *check.C) {
	tc := &templateCache{templates: map[templateKey]*expr.Template{}}

	sql := `SELECT 'C:\' || @dir`
	_, err := tc.parse(sql, expr.MySQL)
	c.Assert(err, check.NotNil)
	t, err := tc.parse(sql, expr.Standard)
	c.Assert(err, check.IsNil)
	c.Assert(t.Params(), check.DeepEquals, []string{"dir"})
	c.Assert(tc.len(), check.Equals, 1)

	_, err = tc.parse("SELECT @dir", expr.MySQL)
	c.Assert(err, check.IsNil)
	_, err = tc.parse("SELECT @dir", expr.Standard)
	c.Assert(err, check.IsNil)
	c.Assert(tc.len(), check.Equals, 3)
}
