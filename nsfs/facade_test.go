package nsfs_test

import (
	"context"
	"errors"
	"testing"

	"ninefs/agent"
	"ninefs/nsfs"
	"ninefs/testhelper"
)

// useDefault installs the given tree as the process-wide tree for the
// duration of the test.
func useDefault(t *testing.T, tree *nsfs.Tree) {
	t.Helper()
	nsfs.SetDefault(tree)
	t.Cleanup(func() { nsfs.SetDefault(nil) })
}

func TestFacadeExists(t *testing.T) {
	tree, _, _ := testhelper.SeededTree(t)
	useDefault(t, tree)
	ctx := context.Background()

	present, err := nsfs.Exists(ctx, "/ctl")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !present {
		t.Errorf("expected /ctl to exist")
	}

	present, err = nsfs.Exists(ctx, "/missing")
	if err != nil || present {
		t.Errorf("Exists(/missing) = %v, %v; want false, nil", present, err)
	}
}

func TestFacadeReadWrite(t *testing.T) {
	tree, _, _ := testhelper.SeededTree(t)
	useDefault(t, tree)
	ctx := context.Background()

	ok, err := nsfs.Write(ctx, "/ctl", []byte("view 2\n"))
	if err != nil || !ok {
		t.Fatalf("Write = %v, %v", ok, err)
	}

	data, ok, err := nsfs.Read(ctx, "/ctl")
	if err != nil || !ok {
		t.Fatalf("Read = %v, %v", ok, err)
	}
	if string(data) != "view 2\n" {
		t.Errorf("Read = %q, want %q", data, "view 2\n")
	}
}

func TestFacadeShieldKeepsPolicy(t *testing.T) {
	tree, a, rec := testhelper.SeededTree(t)
	useDefault(t, tree)
	ctx := context.Background()

	a.SetError("write", "/ctl", errors.New("permission denied"))

	// A shielded remote failure is not an error at the façade either;
	// it is visible only through the ok flag and the diagnostics.
	ok, err := nsfs.Write(ctx, "/ctl", []byte("x"))
	if err != nil {
		t.Fatalf("façade should not surface a shielded failure as error: %v", err)
	}
	if ok {
		t.Errorf("expected ok=false for the shielded failure")
	}
	if rec.Len() != 1 {
		t.Errorf("expected one diagnostic record, got %d", rec.Len())
	}
}

func TestFacadeCreateClearRemove(t *testing.T) {
	tree, _, _ := testhelper.SeededTree(t)
	useDefault(t, tree)
	ctx := context.Background()

	if ok, err := nsfs.Create(ctx, "/scratch", agent.PermDir|0755); err != nil || !ok {
		t.Fatalf("Create = %v, %v", ok, err)
	}
	for _, name := range []string{"a", "b"} {
		if ok, err := nsfs.Create(ctx, "/scratch/"+name, 0644); err != nil || !ok {
			t.Fatalf("Create child = %v, %v", ok, err)
		}
	}

	if ok, err := nsfs.Clear(ctx, "/scratch"); err != nil || !ok {
		t.Fatalf("Clear = %v, %v", ok, err)
	}
	names, ok, err := nsfs.Entries(ctx, "/scratch")
	if err != nil || !ok || len(names) != 0 {
		t.Errorf("expected an empty directory after Clear, got %v ok=%v err=%v", names, ok, err)
	}

	if ok, err := nsfs.Remove(ctx, "/scratch"); err != nil || !ok {
		t.Fatalf("Remove = %v, %v", ok, err)
	}
}

func TestFacadeNodeIdentity(t *testing.T) {
	tree, _, _ := testhelper.SeededTree(t)
	useDefault(t, tree)
	ctx := context.Background()

	n, err := nsfs.At(ctx, "//client//1/")
	if err != nil {
		t.Fatalf("At failed: %v", err)
	}
	if n != tree.Node("/client/1") {
		t.Errorf("façade nodes must come from the shared identity cache")
	}
}

func TestFacadeEachLine(t *testing.T) {
	tree, _, _ := testhelper.SeededTree(t)
	useDefault(t, tree)

	var lines int
	if err := nsfs.EachLine(context.Background(), "/event", func(string) { lines++ }); err != nil {
		t.Fatalf("EachLine failed: %v", err)
	}
	if lines != 2 {
		t.Errorf("expected 2 lines, got %d", lines)
	}
}
