// Package nsfs exposes a remote 9P namespace as path-addressed nodes.
//
// A Tree hands out Node values backed by one shared agent connection and
// guarantees that equal canonical paths always yield the same *Node.
// Namespace operations that are routinely issued against a live, possibly
// transient server (listing, read, write, create, remove) are shielded:
// failures are recorded to a diagnostic channel and replaced by a fallback
// value plus an ok flag, so traversal code needs no per-call error
// handling but can still detect a swallowed failure.
package nsfs

import (
	"strings"
	"sync"

	"ninefs/agent"
	"ninefs/diag"
)

// Tree hands out Nodes and guarantees one Node instance per canonical
// path. The cache is unbounded; namespaces served this way are small and
// nodes are cheap path proxies, not open handles.
type Tree struct {
	agent agent.Agent
	addr  string
	rec   *diag.Recorder

	mu    sync.Mutex
	nodes map[string]*Node
}

// Option configures a Tree.
type Option func(*Tree)

// WithAddress records the resolved connection address for diagnostics.
func WithAddress(addr string) Option {
	return func(t *Tree) {
		t.addr = addr
	}
}

// WithRecorder routes shielded failures to the given recorder instead of
// the package default.
func WithRecorder(r *diag.Recorder) Option {
	return func(t *Tree) {
		t.rec = r
	}
}

// New creates a tree over an established agent connection.
func New(a agent.Agent, opts ...Option) *Tree {
	t := &Tree{
		agent: a,
		rec:   diag.Default,
		nodes: make(map[string]*Node),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Canonicalize collapses runs of path separators and drops any trailing
// separator. No other normalization is applied; "." and ".." segments
// are preserved as-is. Canonicalize is idempotent.
func Canonicalize(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	s := b.String()
	if len(s) > 1 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	if s == "" {
		return "/"
	}
	return s
}

// Node returns the shared node for path, creating it on first lookup.
// This is the single chokepoint through which every node is obtained:
// equal canonical paths always yield the identical pointer, including
// under concurrent lookups.
func (t *Tree) Node(path string) *Node {
	key := Canonicalize(path)
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[key]
	if !ok {
		n = &Node{tree: t, path: key}
		t.nodes[key] = n
	}
	return n
}

// Root returns the node for "/".
func (t *Tree) Root() *Node {
	return t.Node("/")
}

// Addr returns the resolved connection address, if one was recorded.
func (t *Tree) Addr() string {
	return t.addr
}

// Close releases the underlying agent connection. Nodes handed out by
// the tree stay valid as values but their operations will fail once the
// connection is gone.
func (t *Tree) Close() error {
	return t.agent.Close()
}

// record routes a shielded failure to the tree's diagnostic channel.
func (t *Tree) record(action, target string, err error) {
	t.rec.Record(action, target, t.addr, err)
}
