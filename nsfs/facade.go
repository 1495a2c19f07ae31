package nsfs

import (
	"context"

	"ninefs/agent"
)

// Path-taking equivalents of the Node operations, for one-shot use
// without holding a Node reference. Each function resolves the shared
// process-wide tree (dialing on first use) and forwards to the node for
// path. The returned error reports only failure to establish the
// connection, plus whatever the underlying operation propagates; the
// shielded operations keep their log-and-fallback policy and report
// remote failures through the ok flag alone.

// At returns the shared node for path from the process-wide tree.
func At(ctx context.Context, path string) (*Node, error) {
	t, err := Connect(ctx)
	if err != nil {
		return nil, err
	}
	return t.Node(path), nil
}

// Stat fetches metadata for path.
func Stat(ctx context.Context, path string) (agent.Metadata, error) {
	n, err := At(ctx, path)
	if err != nil {
		return agent.Metadata{}, err
	}
	return n.Stat(ctx)
}

// Exists reports whether path is present on the server.
func Exists(ctx context.Context, path string) (bool, error) {
	n, err := At(ctx, path)
	if err != nil {
		return false, err
	}
	return n.Exists(ctx), nil
}

// IsDir reports whether path exists and is a directory.
func IsDir(ctx context.Context, path string) (bool, error) {
	n, err := At(ctx, path)
	if err != nil {
		return false, err
	}
	return n.IsDir(ctx), nil
}

// Entries lists the names contained in the directory at path.
func Entries(ctx context.Context, path string) ([]string, bool, error) {
	n, err := At(ctx, path)
	if err != nil {
		return nil, false, err
	}
	names, ok := n.Entries(ctx)
	return names, ok, nil
}

// Read returns the full content of the file at path.
func Read(ctx context.Context, path string) ([]byte, bool, error) {
	n, err := At(ctx, path)
	if err != nil {
		return nil, false, err
	}
	data, ok := n.ReadAll(ctx)
	return data, ok, nil
}

// Write replaces the content of the file at path.
func Write(ctx context.Context, path string, data []byte) (bool, error) {
	n, err := At(ctx, path)
	if err != nil {
		return false, err
	}
	return n.Write(ctx, data), nil
}

// Create makes a new entry at path with the given permission bits.
func Create(ctx context.Context, path string, perm uint32) (bool, error) {
	n, err := At(ctx, path)
	if err != nil {
		return false, err
	}
	return n.Create(ctx, perm), nil
}

// Remove deletes the entry at path.
func Remove(ctx context.Context, path string) (bool, error) {
	n, err := At(ctx, path)
	if err != nil {
		return false, err
	}
	return n.Remove(ctx), nil
}

// Clear removes every child of the directory at path, best-effort.
func Clear(ctx context.Context, path string) (bool, error) {
	n, err := At(ctx, path)
	if err != nil {
		return false, err
	}
	return n.Clear(ctx), nil
}

// Open opens the file at path for streaming I/O.
func Open(ctx context.Context, path string, mode agent.Mode) (agent.Handle, error) {
	n, err := At(ctx, path)
	if err != nil {
		return nil, err
	}
	return n.Open(ctx, mode)
}

// EachLine calls fn once per line of the file at path.
func EachLine(ctx context.Context, path string, fn func(line string)) error {
	n, err := At(ctx, path)
	if err != nil {
		return err
	}
	return n.EachLine(ctx, fn)
}
