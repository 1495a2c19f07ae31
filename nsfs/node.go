package nsfs

import (
	"context"
	"path"
	"sync"

	"ninefs/agent"
)

// Node is a path-addressed proxy for one entry in the remote namespace.
// Nodes hold no open handles; their only state is the canonical path and
// a per-instance memo of resolved children. Obtain nodes from a Tree (or
// another Node) so the identity guarantee holds.
type Node struct {
	tree *Tree
	path string

	mu       sync.Mutex
	children map[string]*Node
}

// Path returns the node's canonical path.
func (n *Node) Path() string {
	return n.path
}

func (n *Node) String() string {
	return n.path
}

// At returns the child node for the given path segment. The result is
// memoized on this node instance; the lookup itself always goes through
// the tree, so nodes reached via At are identical to nodes reached any
// other way.
func (n *Node) At(name string) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	if c, ok := n.children[name]; ok {
		return c
	}
	c := n.tree.Node(n.path + "/" + name)
	if n.children == nil {
		n.children = make(map[string]*Node)
	}
	n.children[name] = c
	return c
}

// Parent returns the node for the directory containing this node. The
// parent of the root is the root itself.
func (n *Node) Parent() *Node {
	return n.tree.Node(path.Dir(n.path))
}

// Stat fetches the node's metadata. Unlike the shielded operations,
// stat failures propagate to the caller.
func (n *Node) Stat(ctx context.Context) (agent.Metadata, error) {
	return n.tree.agent.Stat(ctx, n.path)
}

// Exists reports whether the path is present on the server. Any protocol
// error is treated as absence, never surfaced.
func (n *Node) Exists(ctx context.Context) bool {
	_, err := n.Stat(ctx)
	return err == nil
}

// IsDir reports whether the path exists and is a directory. The
// existence probe and the classifying stat are separate round trips.
func (n *Node) IsDir(ctx context.Context) bool {
	if !n.Exists(ctx) {
		return false
	}
	md, err := n.Stat(ctx)
	if err != nil {
		return false
	}
	return md.IsDir
}

// shield runs fn and reports whether it succeeded. A failure is recorded
// to the tree's diagnostic channel and otherwise swallowed: the caller
// sees only the ok flag and the operation's fallback value.
func (n *Node) shield(action string, fn func() error) bool {
	if err := fn(); err != nil {
		n.tree.record(action, n.path, err)
		return false
	}
	return true
}

// Entries lists the names contained in this directory. On a remote
// failure the list is empty, ok is false, and a diagnostic is recorded.
func (n *Node) Entries(ctx context.Context) ([]string, bool) {
	var names []string
	ok := n.shield("list", func() error {
		var err error
		names, err = n.tree.agent.Entries(ctx, n.path)
		return err
	})
	if !ok {
		return nil, false
	}
	return names, true
}

// ReadAll returns the node's full content. On a remote failure the
// content is nil, ok is false, and a diagnostic is recorded.
func (n *Node) ReadAll(ctx context.Context) ([]byte, bool) {
	var data []byte
	ok := n.shield("read from", func() error {
		var err error
		data, err = n.tree.agent.Read(ctx, n.path)
		return err
	})
	if !ok {
		return nil, false
	}
	return data, true
}

// Write replaces the node's content. A remote failure is recorded and
// reported only through the ok flag.
func (n *Node) Write(ctx context.Context, data []byte) bool {
	return n.shield("write to", func() error {
		return n.tree.agent.Write(ctx, n.path, data)
	})
}

// Create makes the entry this node addresses. Combine perm with
// agent.PermDir to create a directory. A remote failure is recorded and
// reported only through the ok flag.
func (n *Node) Create(ctx context.Context, perm uint32) bool {
	return n.shield("create", func() error {
		return n.tree.agent.Create(ctx, n.path, perm)
	})
}

// Remove deletes the entry this node addresses. A remote failure is
// recorded and reported only through the ok flag.
func (n *Node) Remove(ctx context.Context) bool {
	return n.shield("remove", func() error {
		return n.tree.agent.Remove(ctx, n.path)
	})
}

// Open opens the node for streaming I/O. Open failures propagate; the
// caller owns the returned handle and must close it.
func (n *Node) Open(ctx context.Context, mode agent.Mode) (agent.Handle, error) {
	return n.tree.agent.Open(ctx, n.path, mode)
}

// Children returns a node for each entry of this directory, all drawn
// from the shared tree. The listing is shielded, so a failed listing
// yields no children.
func (n *Node) Children(ctx context.Context) []*Node {
	names, _ := n.Entries(ctx)
	nodes := make([]*Node, 0, len(names))
	for _, name := range names {
		nodes = append(nodes, n.At(name))
	}
	return nodes
}

// Each calls fn for every child until fn returns false. The listing is
// recomputed on every call: iteration is restartable, not resumable.
func (n *Node) Each(ctx context.Context, fn func(*Node) bool) {
	for _, c := range n.Children(ctx) {
		if !fn(c) {
			return
		}
	}
}

// Clear removes every child of this directory. Each removal is
// best-effort and all children are attempted; ok reports whether every
// removal succeeded.
func (n *Node) Clear(ctx context.Context) bool {
	ok := true
	for _, c := range n.Children(ctx) {
		if !c.Remove(ctx) {
			ok = false
		}
	}
	return ok
}
