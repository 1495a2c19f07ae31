// Package mockagent provides a unified in-memory Agent for testing.
//
// It backs the full Agent surface with a seeded tree of directories and
// files, supports per-operation failure injection, counts calls per
// operation, and serves handle reads in configurable chunk sizes so
// streaming callers can be exercised against chunk boundaries.
//
// Usage:
//
//	a := mockagent.New(
//		mockagent.WithFile("/a/b", []byte("content")),
//		mockagent.WithError("entries", "/a", errors.New("boom")),
//	)
//	tree := nsfs.New(a)
package mockagent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"ninefs/agent"
)

// Agent is an in-memory implementation of agent.Agent.
type Agent struct {
	mu        sync.Mutex
	root      *entry
	errs      map[string]error // "<op> <path>" -> injected error
	calls     map[string]int   // "<op> <path>" -> count
	chunkSize int
	closed    bool
	start     time.Time
}

type entry struct {
	name     string
	dir      bool
	data     []byte
	mode     uint32
	children map[string]*entry
}

// Option configures a mock agent.
type Option func(*Agent)

// WithFile seeds a file at path with the given content, creating parent
// directories as needed.
func WithFile(path string, data []byte) Option {
	return func(a *Agent) {
		e := a.ensure(path, false)
		e.data = append([]byte(nil), data...)
	}
}

// WithDir seeds an empty directory at path, creating parents as needed.
func WithDir(path string) Option {
	return func(a *Agent) {
		a.ensure(path, true)
	}
}

// WithError injects a persistent error for the given operation on the
// given path. Recognized operations: "stat", "entries", "open", "read",
// "write", "create", "remove".
func WithError(op, path string, err error) Option {
	return func(a *Agent) {
		a.errs[key(op, path)] = err
	}
}

// WithChunkSize caps how many bytes a Handle.Read returns per call.
// Zero means unbounded.
func WithChunkSize(n int) Option {
	return func(a *Agent) {
		a.chunkSize = n
	}
}

// New creates a mock agent with an empty root directory.
func New(opts ...Option) *Agent {
	a := &Agent{
		root:  &entry{name: "/", dir: true, children: make(map[string]*entry)},
		errs:  make(map[string]error),
		calls: make(map[string]int),
		start: time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetError injects an error after construction. A nil err clears the
// injection.
func (a *Agent) SetError(op, path string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err == nil {
		delete(a.errs, key(op, path))
		return
	}
	a.errs[key(op, path)] = err
}

// Calls returns how many times op was invoked for path.
func (a *Agent) Calls(op, path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[key(op, path)]
}

func key(op, path string) string {
	return op + " " + canonical(path)
}

func canonical(p string) string {
	segs := split(p)
	return "/" + strings.Join(segs, "/")
}

func split(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// ensure creates the entry at path, making intermediate directories.
func (a *Agent) ensure(p string, dir bool) *entry {
	cur := a.root
	segs := split(p)
	for i, seg := range segs {
		child, ok := cur.children[seg]
		if !ok {
			child = &entry{name: seg, dir: dir && i == len(segs)-1 || i < len(segs)-1}
			if child.dir {
				child.children = make(map[string]*entry)
			}
			cur.children[seg] = child
		}
		cur = child
	}
	if len(segs) == 0 {
		return a.root
	}
	return cur
}

// lookup finds the entry at path without creating anything.
func (a *Agent) lookup(p string) (*entry, error) {
	cur := a.root
	for _, seg := range split(p) {
		if !cur.dir {
			return nil, fmt.Errorf("mockagent: %q is not a directory", cur.name)
		}
		child, ok := cur.children[seg]
		if !ok {
			return nil, fmt.Errorf("mockagent: %q does not exist", canonical(p))
		}
		cur = child
	}
	return cur, nil
}

// begin records the call and returns any injected error.
func (a *Agent) begin(op, path string) error {
	if a.closed {
		return agent.ErrClosed
	}
	a.calls[key(op, path)]++
	return a.errs[key(op, path)]
}

// Stat fetches metadata for the entry at path.
func (a *Agent) Stat(ctx context.Context, path string) (agent.Metadata, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin("stat", path); err != nil {
		return agent.Metadata{}, err
	}
	e, err := a.lookup(path)
	if err != nil {
		return agent.Metadata{}, err
	}
	md := agent.Metadata{
		Name:    e.name,
		Size:    int64(len(e.data)),
		Mode:    e.mode,
		IsDir:   e.dir,
		ModTime: a.start,
	}
	if e.dir {
		md.Mode |= agent.PermDir
	}
	return md, nil
}

// Entries lists the names in the directory at path, sorted.
func (a *Agent) Entries(ctx context.Context, path string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin("entries", path); err != nil {
		return nil, err
	}
	e, err := a.lookup(path)
	if err != nil {
		return nil, err
	}
	if !e.dir {
		return nil, fmt.Errorf("mockagent: %q is not a directory", canonical(path))
	}
	names := make([]string, 0, len(e.children))
	for name := range e.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Open opens the file at path for streaming I/O.
func (a *Agent) Open(ctx context.Context, path string, mode agent.Mode) (agent.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin("open", path); err != nil {
		return nil, err
	}
	e, err := a.lookup(path)
	if err != nil {
		return nil, err
	}
	if e.dir {
		return nil, fmt.Errorf("mockagent: %q is a directory", canonical(path))
	}
	h := &handle{agent: a, entry: e, chunk: a.chunkSize}
	switch mode {
	case agent.ModeRead:
		h.rd = bytes.NewReader(e.data)
	case agent.ModeWrite:
		e.data = nil
	case agent.ModeReadWrite:
		h.rd = bytes.NewReader(e.data)
	}
	return h, nil
}

// Read returns the full content of the file at path.
func (a *Agent) Read(ctx context.Context, path string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin("read", path); err != nil {
		return nil, err
	}
	e, err := a.lookup(path)
	if err != nil {
		return nil, err
	}
	if e.dir {
		return nil, fmt.Errorf("mockagent: %q is a directory", canonical(path))
	}
	return append([]byte(nil), e.data...), nil
}

// Write replaces the content of the file at path.
func (a *Agent) Write(ctx context.Context, path string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin("write", path); err != nil {
		return err
	}
	e, err := a.lookup(path)
	if err != nil {
		return err
	}
	if e.dir {
		return fmt.Errorf("mockagent: %q is a directory", canonical(path))
	}
	e.data = append([]byte(nil), data...)
	return nil
}

// Create makes a new entry at path. perm with agent.PermDir set creates a
// directory.
func (a *Agent) Create(ctx context.Context, path string, perm uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin("create", path); err != nil {
		return err
	}
	segs := split(path)
	if len(segs) == 0 {
		return fmt.Errorf("mockagent: create needs a name")
	}
	parent, err := a.lookup("/" + strings.Join(segs[:len(segs)-1], "/"))
	if err != nil {
		return err
	}
	if !parent.dir {
		return fmt.Errorf("mockagent: parent of %q is not a directory", canonical(path))
	}
	name := segs[len(segs)-1]
	if _, ok := parent.children[name]; ok {
		return fmt.Errorf("mockagent: %q already exists", canonical(path))
	}
	e := &entry{name: name, dir: perm&agent.PermDir != 0, mode: perm &^ agent.PermDir}
	if e.dir {
		e.children = make(map[string]*entry)
	}
	parent.children[name] = e
	return nil
}

// Remove deletes the entry at path.
func (a *Agent) Remove(ctx context.Context, path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin("remove", path); err != nil {
		return err
	}
	segs := split(path)
	if len(segs) == 0 {
		return fmt.Errorf("mockagent: cannot remove the root")
	}
	parent, err := a.lookup("/" + strings.Join(segs[:len(segs)-1], "/"))
	if err != nil {
		return err
	}
	name := segs[len(segs)-1]
	if _, ok := parent.children[name]; !ok {
		return fmt.Errorf("mockagent: %q does not exist", canonical(path))
	}
	delete(parent.children, name)
	return nil
}

// Close marks the agent closed; later operations fail with ErrClosed.
func (a *Agent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// handle is an open mock file. Reads serve a snapshot of the content
// taken at open time; writes accumulate and replace the content as they
// arrive, mirroring a truncating open.
type handle struct {
	agent *Agent
	entry *entry
	rd    *bytes.Reader
	chunk int
	done  bool
}

func (h *handle) Read(p []byte) (int, error) {
	if h.done {
		return 0, agent.ErrClosed
	}
	if h.rd == nil {
		return 0, fmt.Errorf("mockagent: handle not open for reading")
	}
	if h.chunk > 0 && len(p) > h.chunk {
		p = p[:h.chunk]
	}
	n, err := h.rd.Read(p)
	if err == io.EOF {
		return n, io.EOF
	}
	return n, err
}

func (h *handle) Write(p []byte) (int, error) {
	if h.done {
		return 0, agent.ErrClosed
	}
	h.agent.mu.Lock()
	h.entry.data = append(h.entry.data, p...)
	h.agent.mu.Unlock()
	return len(p), nil
}

func (h *handle) Close() error {
	h.done = true
	return nil
}

// Verify that Agent implements agent.Agent at compile time.
var _ agent.Agent = (*Agent)(nil)
