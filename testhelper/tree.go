// Package testhelper builds seeded namespace trees for tests across
// packages.
package testhelper

import (
	"testing"

	"ninefs/diag"
	"ninefs/mockagent"
	"ninefs/nsfs"
)

// TestAddr is the connection address recorded on trees built here. Tests
// that assert on diagnostic records match against it.
const TestAddr = "unix!/tmp/ns.test.:0/wmii"

// NewTree builds a tree over a fresh mock agent, with a private recorder
// so diagnostics from one test never leak into another.
func NewTree(t *testing.T, opts ...mockagent.Option) (*nsfs.Tree, *mockagent.Agent, *diag.Recorder) {
	t.Helper()
	a := mockagent.New(opts...)
	rec := diag.NewRecorder(64, nil)
	tree := nsfs.New(a, nsfs.WithAddress(TestAddr), nsfs.WithRecorder(rec))
	t.Cleanup(func() { tree.Close() })
	return tree, a, rec
}

// SeededTree builds a tree over a small conventional namespace:
//
//	/ctl           file "running\n"
//	/event         file (multi-line)
//	/client/       dir
//	/client/1/     dir
//	/client/1/label file "one"
//	/client/2/     dir
//	/client/2/label file "two"
func SeededTree(t *testing.T, extra ...mockagent.Option) (*nsfs.Tree, *mockagent.Agent, *diag.Recorder) {
	t.Helper()
	opts := []mockagent.Option{
		mockagent.WithFile("/ctl", []byte("running\n")),
		mockagent.WithFile("/event", []byte("CreateClient 1\nFocusClient 1\n")),
		mockagent.WithDir("/client"),
		mockagent.WithFile("/client/1/label", []byte("one")),
		mockagent.WithFile("/client/2/label", []byte("two")),
	}
	opts = append(opts, extra...)
	return NewTree(t, opts...)
}
