package sqldao

import (
	"sync"

	"github.com/canonical/sqldao/internal/expr"
)

// maxCachedTemplates bounds the template cache. Statements built with list
// expansion or string concatenation can produce unbounded distinct texts, so
// the cache is emptied once it is full.
const maxCachedTemplates = 1024

// templateKey identifies a parse: the same text can split differently under
// another syntax.
type templateKey struct {
	sql    string
	syntax expr.Syntax
}

// templateCache stores parsed templates indexed by their SQL text and
// syntax. Parsed templates are never modified, so a cached template can be
// shared between commands.
//
// The mutex must be locked when accessing templates.
type templateCache struct {
	templates map[templateKey]*expr.Template
	mutex     sync.RWMutex
}

var once sync.Once
var singleTemplateCache *templateCache

// newTemplateCache returns the single instance of the template cache.
func newTemplateCache() *templateCache {
	once.Do(func() {
		singleTemplateCache = &templateCache{
			templates: map[templateKey]*expr.Template{},
		}
	})
	return singleTemplateCache
}

// parse returns the parsed template for sql, parsing it on a cache miss.
// Templates that fail to parse are not cached.
func (tc *templateCache) parse(sql string, syntax expr.Syntax) (*expr.Template, error) {
	key := templateKey{sql: sql, syntax: syntax}
	tc.mutex.RLock()
	t, ok := tc.templates[key]
	tc.mutex.RUnlock()
	if ok {
		return t, nil
	}

	t, err := expr.NewParser(syntax).Parse(sql)
	if err != nil {
		return nil, err
	}

	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	if len(tc.templates) >= maxCachedTemplates {
		tc.templates = map[templateKey]*expr.Template{}
	}
	tc.templates[key] = t
	return t, nil
}

func (tc *templateCache) len() int {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return len(tc.templates)
}
