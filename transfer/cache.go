package transfer

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultCache lives for the whole process and backs transfers built without
// an explicit cache.
var DefaultCache = NewOptionCache()

// OptionCache remembers user options per data source so that each source is
// prompted at most once. Safe for concurrent use.
type OptionCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	mu    sync.Mutex
	opts  Options
	ready bool
}

func NewOptionCache() *OptionCache {
	return &OptionCache{entries: make(map[string]*cacheEntry)}
}

// Resolve returns the options cached under key, calling prompt to fill the
// entry on a miss. Concurrent callers for the same key wait for the first
// prompt instead of prompting again. A failed prompt leaves the entry empty.
func (c *OptionCache) Resolve(key string, prompt func() (Options, error)) (Options, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	c.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready {
		logrus.WithFields(logrus.Fields{
			"function":    "Resolve",
			"data_source": key,
		}).Debug("Reusing cached user options")
		return e.opts, nil
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Resolve",
		"data_source": key,
	}).Debug("No cached user options, prompting")
	opts, err := prompt()
	if err != nil {
		return Options{}, err
	}
	e.opts = opts
	e.ready = true
	return opts, nil
}

func (c *OptionCache) Get(key string) (Options, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return Options{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts, e.ready
}

// Len counts populated entries.
func (c *OptionCache) Len() int {
	c.mu.Lock()
	entries := make([]*cacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	n := 0
	for _, e := range entries {
		e.mu.Lock()
		if e.ready {
			n++
		}
		e.mu.Unlock()
	}
	return n
}

func (c *OptionCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}
