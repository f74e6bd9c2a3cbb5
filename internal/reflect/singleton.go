package reflect

import (
	"reflect"
	"sync"
)

var (
	sharedCache     *cache
	sharedCacheOnce sync.Once
)

// Cache returns the process wide store of row mapping information. A struct
// type is inspected the first time a row is mapped to it.
func Cache() *cache {
	sharedCacheOnce.Do(func() {
		sharedCache = newCache()
	})
	return sharedCache
}

func newCache() *cache {
	return &cache{cache: map[reflect.Type]Struct{}}
}
