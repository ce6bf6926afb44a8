package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]Dataset)
	registryMu sync.RWMutex
)

// Register adds a dataset to the registry. It panics on a duplicate key or
// on a dataset without a required field, both programming errors.
func Register(ds Dataset) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[ds.Info.Key]; exists {
		panic(fmt.Sprintf("dataset already registered: %s", ds.Info.Key))
	}

	required := 0
	for _, f := range ds.Fields {
		if f.Required {
			if len(f.Candidates) == 0 {
				panic(fmt.Sprintf("dataset %s: required field %s has no candidates", ds.Info.Key, f.Key))
			}
			required++
		}
	}
	if required == 0 {
		panic(fmt.Sprintf("dataset %s has no required fields", ds.Info.Key))
	}

	if ds.Info.Table == "" {
		ds.Info.Table = ds.Info.Key
	}
	if ds.Info.ConflictKey == "" {
		ds.Info.ConflictKey = DefaultConflictKey
	}

	registry[ds.Info.Key] = ds
}

// Get returns a dataset by key.
func Get(key string) (Dataset, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	ds, ok := registry[key]
	return ds, ok
}

// Lookup is Get with an error naming the known datasets.
func Lookup(key string) (Dataset, error) {
	if ds, ok := Get(key); ok {
		return ds, nil
	}
	return Dataset{}, fmt.Errorf("unknown dataset: %s (known: %v)", key, Keys())
}

// All returns every registered dataset sorted by key.
func All() []Dataset {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Dataset, 0, len(registry))
	for _, ds := range registry {
		result = append(result, ds)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// Keys returns the registered dataset keys, sorted.
func Keys() []string {
	all := All()
	keys := make([]string, len(all))
	for i, ds := range all {
		keys[i] = ds.Info.Key
	}
	return keys
}

// Clear removes all registered datasets. Used by tests.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Dataset)
}
