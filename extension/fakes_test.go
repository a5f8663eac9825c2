package extension

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/kbukum/extkit/event"
)

// --- metadata reader ---

type fakePoint struct {
	policy   Policy
	notBase  bool
	noPolicy bool
}

type fakeExtension struct {
	capabilities []string
	annotations  []string
	meta         map[string]Metadata
}

type fakeReader struct {
	points       map[string]fakePoint
	capabilities map[string]bool
	extensions   map[string]*fakeExtension
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		points:       make(map[string]fakePoint),
		capabilities: make(map[string]bool),
		extensions:   make(map[string]*fakeExtension),
	}
}

func (f *fakeReader) capability(keys ...string) *fakeReader {
	for _, k := range keys {
		f.capabilities[k] = true
	}
	return f
}

func (f *fakeReader) point(key string, singleton, preload bool, capability string) *fakeReader {
	f.points[key] = fakePoint{policy: Policy{Singleton: singleton, PreloadAllowed: preload, RequiredCapability: capability}}
	return f
}

// extension defines key with the given capabilities and a default metadata
// block for each point, in order.
func (f *fakeReader) extension(key string, capabilities []string, points ...string) *fakeReader {
	ext := &fakeExtension{capabilities: capabilities, meta: make(map[string]Metadata)}
	for _, p := range points {
		ext.annotations = append(ext.annotations, p)
		ext.meta[p] = Metadata{Name: key}
	}
	f.extensions[key] = ext
	return f
}

func (f *fakeReader) meta(key, point string, m Metadata) *fakeReader {
	ext := f.extensions[key]
	if _, ok := ext.meta[point]; !ok {
		ext.annotations = append(ext.annotations, point)
	}
	ext.meta[point] = m
	return f
}

func (f *fakeReader) PointDefined(key string) bool {
	_, ok := f.points[key]
	return ok
}

func (f *fakeReader) ExtendsBase(key string) bool {
	return !f.points[key].notBase
}

func (f *fakeReader) CapabilityDefined(c string) bool {
	return f.capabilities[c]
}

func (f *fakeReader) PointPolicy(key string) (Policy, bool) {
	p, ok := f.points[key]
	if !ok || p.noPolicy {
		return Policy{}, false
	}
	return p.policy, true
}

func (f *fakeReader) ExtensionDefined(key string) bool {
	_, ok := f.extensions[key]
	return ok
}

func (f *fakeReader) Implements(key, capability string) bool {
	ext, ok := f.extensions[key]
	return ok && slices.Contains(ext.capabilities, capability)
}

func (f *fakeReader) Capabilities(key string) []string {
	if ext, ok := f.extensions[key]; ok {
		return ext.capabilities
	}
	return nil
}

func (f *fakeReader) Annotations(key string) []string {
	if ext, ok := f.extensions[key]; ok {
		return ext.annotations
	}
	return nil
}

func (f *fakeReader) ExtensionMetadata(key, point string) (Metadata, bool) {
	ext, ok := f.extensions[key]
	if !ok {
		return Metadata{}, false
	}
	m, ok := ext.meta[point]
	return m, ok
}

// --- instantiator ---

type widget struct {
	key    string
	params map[string]any
	serial int64
}

type closingWidget struct {
	widget
	closed *[]string
	err    error
}

func (c *closingWidget) Close() error {
	*c.closed = append(*c.closed, c.key)
	return c.err
}

type countingInstantiator struct {
	calls  atomic.Int64
	mu     sync.Mutex
	fail   map[string]error
	keys   []string
	create func(key string, params map[string]any, serial int64) any
}

func newCountingInstantiator() *countingInstantiator {
	return &countingInstantiator{fail: make(map[string]error)}
}

func (c *countingInstantiator) Instantiate(_ context.Context, key string, params map[string]any) (any, error) {
	serial := c.calls.Add(1)
	c.mu.Lock()
	c.keys = append(c.keys, key)
	err := c.fail[key]
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if c.create != nil {
		return c.create(key, params, serial), nil
	}
	return &widget{key: key, params: params, serial: serial}, nil
}

// --- logger ---

type logEntry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string, fields []map[string]interface{}) {
	merged := map[string]interface{}{}
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: merged})
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(msg string, fields ...map[string]interface{}) {
	l.add("debug", msg, fields)
}

func (l *recordingLogger) Error(msg string, fields ...map[string]interface{}) {
	l.add("error", msg, fields)
}

func (l *recordingLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

// --- notifier ---

type failingNotifier struct {
	events []event.Event
}

func (n *failingNotifier) Dispatch(_ context.Context, e event.Event) error {
	n.events = append(n.events, e)
	return errors.New("listener exploded")
}

// --- fixtures ---

func newTestStore(reader *fakeReader, inst Instantiator, opts ...Option) (*Store, *recordingLogger) {
	log := &recordingLogger{}
	opts = append([]Option{WithLogger(log)}, opts...)
	return New(reader, inst, opts...), log
}

func mustRegisterPoints(s *Store, points ...string) {
	for _, p := range points {
		if err := s.Types().Register(p); err != nil {
			panic(fmt.Sprintf("register point %s: %v", p, err))
		}
	}
}

func mustRegister(s *Store, point string, extensions ...string) {
	for _, e := range extensions {
		if err := s.Registry().Register(context.Background(), point, e); err != nil {
			panic(fmt.Sprintf("register %s on %s: %v", e, point, err))
		}
	}
}
