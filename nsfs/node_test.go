package nsfs_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ninefs/agent"
	"ninefs/mockagent"
	"ninefs/nsfs"
	"ninefs/testhelper"
)

func TestStatPropagates(t *testing.T) {
	tree, _, _ := testhelper.SeededTree(t)
	ctx := context.Background()

	md, err := tree.Node("/ctl").Stat(ctx)
	if err != nil {
		t.Fatalf("Stat(/ctl) failed: %v", err)
	}
	if md.IsDir {
		t.Errorf("expected /ctl to be a file")
	}

	if _, err := tree.Node("/missing").Stat(ctx); err == nil {
		t.Errorf("expected Stat on a missing path to return an error")
	}
}

func TestExists(t *testing.T) {
	tree, a, _ := testhelper.SeededTree(t)
	ctx := context.Background()

	if !tree.Node("/ctl").Exists(ctx) {
		t.Errorf("expected /ctl to exist")
	}
	if tree.Node("/missing").Exists(ctx) {
		t.Errorf("expected /missing not to exist")
	}

	// Any protocol error becomes false, never an error.
	a.SetError("stat", "/ctl", errors.New("connection reset"))
	if tree.Node("/ctl").Exists(ctx) {
		t.Errorf("expected Exists to report false when stat fails")
	}
}

func TestIsDir(t *testing.T) {
	tree, a, _ := testhelper.SeededTree(t)
	ctx := context.Background()

	if !tree.Node("/client").IsDir(ctx) {
		t.Errorf("expected /client to be a directory")
	}
	if tree.Node("/ctl").IsDir(ctx) {
		t.Errorf("expected /ctl not to be a directory")
	}
	if tree.Node("/missing").IsDir(ctx) {
		t.Errorf("expected /missing not to be a directory")
	}

	// The existence probe and the classifying stat are separate calls.
	before := a.Calls("stat", "/client")
	tree.Node("/client").IsDir(ctx)
	if got := a.Calls("stat", "/client") - before; got != 2 {
		t.Errorf("IsDir should stat twice, did %d times", got)
	}
}

func TestEntriesShielded(t *testing.T) {
	tree, a, rec := testhelper.SeededTree(t)
	ctx := context.Background()

	names, ok := tree.Node("/client").Entries(ctx)
	if !ok {
		t.Fatalf("Entries(/client) reported failure")
	}
	if len(names) != 2 || names[0] != "1" || names[1] != "2" {
		t.Errorf("Entries(/client) = %v, want [1 2]", names)
	}

	a.SetError("entries", "/client", errors.New("flush interrupted"))
	names, ok = tree.Node("/client").Entries(ctx)
	if ok {
		t.Errorf("expected shielded failure to report ok=false")
	}
	if len(names) != 0 {
		t.Errorf("expected empty fallback listing, got %v", names)
	}

	recs := rec.Recent()
	if len(recs) != 1 {
		t.Fatalf("expected 1 diagnostic record, got %d", len(recs))
	}
	if recs[0].Action != "list" || recs[0].Target != "/client" {
		t.Errorf("unexpected diagnostic record: %+v", recs[0])
	}
	if recs[0].Addr != testhelper.TestAddr {
		t.Errorf("record should carry the resolved address, got %q", recs[0].Addr)
	}
}

func TestWriteShielded(t *testing.T) {
	tree, a, rec := testhelper.SeededTree(t)
	ctx := context.Background()

	if !tree.Node("/ctl").Write(ctx, []byte("quit\n")) {
		t.Fatalf("Write(/ctl) reported failure")
	}
	got, err := a.Read(ctx, "/ctl")
	if err != nil || string(got) != "quit\n" {
		t.Errorf("content after write = %q, %v", got, err)
	}

	a.SetError("write", "/ctl", errors.New("permission denied"))
	if tree.Node("/ctl").Write(ctx, []byte("x")) {
		t.Errorf("expected shielded write failure to report false, not propagate")
	}

	recs := rec.Recent()
	if len(recs) != 1 {
		t.Fatalf("expected 1 diagnostic record, got %d", len(recs))
	}
	if recs[0].Action != "write to" {
		t.Errorf("expected action %q, got %q", "write to", recs[0].Action)
	}
	if recs[0].Addr != testhelper.TestAddr {
		t.Errorf("record should reference the resolved connection address")
	}
	if !strings.Contains(recs[0].Err, "permission denied") {
		t.Errorf("record should carry the error detail, got %q", recs[0].Err)
	}
}

func TestReadAllShielded(t *testing.T) {
	tree, a, rec := testhelper.SeededTree(t)
	ctx := context.Background()

	data, ok := tree.Node("/client/1/label").ReadAll(ctx)
	if !ok || string(data) != "one" {
		t.Errorf("ReadAll = %q, ok=%v", data, ok)
	}

	a.SetError("read", "/client/1/label", errors.New("fid expired"))
	data, ok = tree.Node("/client/1/label").ReadAll(ctx)
	if ok || data != nil {
		t.Errorf("expected nil fallback on shielded read failure, got %q ok=%v", data, ok)
	}
	if rec.Len() != 1 {
		t.Errorf("expected a diagnostic record for the failed read")
	}
}

func TestCreateAndRemoveShielded(t *testing.T) {
	tree, a, rec := testhelper.SeededTree(t)
	ctx := context.Background()

	n := tree.Node("/client/3")
	if !n.Create(ctx, agent.PermDir|0755) {
		t.Fatalf("Create(/client/3) reported failure")
	}
	if !n.Exists(ctx) {
		t.Errorf("created node should exist")
	}

	if !n.Remove(ctx) {
		t.Fatalf("Remove(/client/3) reported failure")
	}
	if n.Exists(ctx) {
		t.Errorf("removed node should not exist")
	}

	a.SetError("remove", "/ctl", errors.New("not allowed"))
	if tree.Node("/ctl").Remove(ctx) {
		t.Errorf("expected shielded remove failure to report false")
	}
	if rec.Len() != 1 {
		t.Errorf("expected a diagnostic record for the failed remove")
	}
}

func TestOpenPropagates(t *testing.T) {
	tree, a, _ := testhelper.SeededTree(t)
	ctx := context.Background()

	h, err := tree.Node("/ctl").Open(ctx, agent.ModeRead)
	if err != nil {
		t.Fatalf("Open(/ctl) failed: %v", err)
	}
	h.Close()

	a.SetError("open", "/ctl", errors.New("exclusive use"))
	if _, err := tree.Node("/ctl").Open(ctx, agent.ModeRead); err == nil {
		t.Errorf("expected Open failure to propagate, no shield applies")
	}
}

func TestChildren(t *testing.T) {
	tree, _, _ := testhelper.SeededTree(t)
	ctx := context.Background()

	dir := tree.Node("/client")
	children := dir.Children(ctx)
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	if children[0].Path() != "/client/1" || children[1].Path() != "/client/2" {
		t.Errorf("unexpected child paths: %s, %s", children[0], children[1])
	}
	// Children come from the shared identity cache.
	if children[0] != tree.Node("/client/1") {
		t.Errorf("child node is not the cached instance")
	}
}

func TestEachStopsEarly(t *testing.T) {
	tree, _, _ := testhelper.SeededTree(t)
	ctx := context.Background()

	var seen int
	tree.Node("/client").Each(ctx, func(n *nsfs.Node) bool {
		seen++
		return false
	})
	if seen != 1 {
		t.Errorf("Each should stop when the callback returns false, visited %d", seen)
	}
}

func TestEachIsRestartable(t *testing.T) {
	tree, a, _ := testhelper.SeededTree(t)
	ctx := context.Background()

	count := func() int {
		var n int
		tree.Node("/client").Each(ctx, func(*nsfs.Node) bool {
			n++
			return true
		})
		return n
	}

	if got := count(); got != 2 {
		t.Fatalf("first iteration saw %d children, want 2", got)
	}
	if err := a.Create(ctx, "/client/3", agent.PermDir|0755); err != nil {
		t.Fatalf("seed extra child: %v", err)
	}
	// The listing is recomputed per iteration, so the new child shows up.
	if got := count(); got != 3 {
		t.Errorf("second iteration saw %d children, want 3", got)
	}
}

func TestClearBestEffort(t *testing.T) {
	tree, a, rec := testhelper.SeededTree(t,
		mockagent.WithFile("/client/3/label", []byte("three")),
	)
	ctx := context.Background()

	// One of the three children refuses to go away.
	a.SetError("remove", "/client/2", errors.New("busy"))

	ok := tree.Node("/client").Clear(ctx)
	if ok {
		t.Errorf("Clear should report false when any removal failed")
	}

	// All three removals were attempted despite the failure.
	for _, p := range []string{"/client/1", "/client/2", "/client/3"} {
		if a.Calls("remove", p) != 1 {
			t.Errorf("expected one remove attempt for %s, got %d", p, a.Calls("remove", p))
		}
	}

	names, _ := tree.Node("/client").Entries(ctx)
	if len(names) != 1 || names[0] != "2" {
		t.Errorf("expected only the stubborn child to survive, got %v", names)
	}
	if rec.Len() != 1 {
		t.Errorf("expected exactly one diagnostic record, got %d", rec.Len())
	}
}
