package mockagent

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"

	"ninefs/agent"
)

func TestSeededTree(t *testing.T) {
	a := New(
		WithFile("/a/b", []byte("content")),
		WithDir("/empty"),
	)
	ctx := context.Background()

	md, err := a.Stat(ctx, "/a/b")
	if err != nil {
		t.Fatalf("Stat(/a/b): %v", err)
	}
	if md.IsDir || md.Size != 7 || md.Name != "b" {
		t.Errorf("Stat(/a/b) = %+v", md)
	}

	// Intermediate directories come into being with the file.
	md, err = a.Stat(ctx, "/a")
	if err != nil || !md.IsDir {
		t.Errorf("Stat(/a) = %+v, %v; want a directory", md, err)
	}
	if md.Mode&agent.PermDir == 0 {
		t.Errorf("directory metadata should carry the PermDir bit")
	}

	names, err := a.Entries(ctx, "/")
	if err != nil {
		t.Fatalf("Entries(/): %v", err)
	}
	if !reflect.DeepEqual(names, []string{"a", "empty"}) {
		t.Errorf("Entries(/) = %v, want sorted [a empty]", names)
	}
}

func TestErrorInjection(t *testing.T) {
	boom := errors.New("boom")
	a := New(
		WithFile("/f", []byte("x")),
		WithError("read", "/f", boom),
	)
	ctx := context.Background()

	if _, err := a.Read(ctx, "/f"); !errors.Is(err, boom) {
		t.Errorf("expected the injected error, got %v", err)
	}
	// Other operations on the same path are unaffected.
	if _, err := a.Stat(ctx, "/f"); err != nil {
		t.Errorf("Stat should not be affected: %v", err)
	}

	a.SetError("read", "/f", nil)
	if _, err := a.Read(ctx, "/f"); err != nil {
		t.Errorf("cleared injection still firing: %v", err)
	}
}

func TestCallCounting(t *testing.T) {
	a := New(WithFile("/f", nil))
	ctx := context.Background()

	a.Stat(ctx, "/f")
	a.Stat(ctx, "//f/")
	if got := a.Calls("stat", "/f"); got != 2 {
		t.Errorf("Calls(stat, /f) = %d, want 2 (paths are canonicalized)", got)
	}
	if got := a.Calls("read", "/f"); got != 0 {
		t.Errorf("Calls(read, /f) = %d, want 0", got)
	}

	// Failing calls count too.
	a.SetError("stat", "/f", errors.New("boom"))
	a.Stat(ctx, "/f")
	if got := a.Calls("stat", "/f"); got != 3 {
		t.Errorf("Calls(stat, /f) = %d, want 3", got)
	}
}

func TestCreateRemoveRoundTrip(t *testing.T) {
	a := New(WithDir("/d"))
	ctx := context.Background()

	if err := a.Create(ctx, "/d/sub", agent.PermDir|0755); err != nil {
		t.Fatalf("Create dir: %v", err)
	}
	if err := a.Create(ctx, "/d/sub/f", 0644); err != nil {
		t.Fatalf("Create file: %v", err)
	}
	if err := a.Create(ctx, "/d/sub", agent.PermDir|0755); err == nil {
		t.Errorf("expected duplicate Create to fail")
	}
	if err := a.Create(ctx, "/d/f/x", 0644); err == nil {
		t.Errorf("expected Create under a missing parent to fail")
	}

	if err := a.Remove(ctx, "/d/sub"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := a.Stat(ctx, "/d/sub"); err == nil {
		t.Errorf("removed entry still stats")
	}
	if err := a.Remove(ctx, "/d/sub"); err == nil {
		t.Errorf("expected Remove of a missing entry to fail")
	}
}

func TestWriteReplaces(t *testing.T) {
	a := New(WithFile("/f", []byte("old")))
	ctx := context.Background()

	if err := a.Write(ctx, "/f", []byte("new content")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := a.Read(ctx, "/f")
	if err != nil || string(got) != "new content" {
		t.Errorf("Read after Write = %q, %v", got, err)
	}
}

func TestHandleChunkedReads(t *testing.T) {
	a := New(
		WithFile("/f", []byte("abcdefgh")),
		WithChunkSize(3),
	)
	h, err := a.Open(context.Background(), "/f", agent.ModeRead)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close()

	buf := make([]byte, 64)
	var sizes []int
	var all []byte
	for {
		n, err := h.Read(buf)
		if n > 0 {
			sizes = append(sizes, n)
			all = append(all, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}
	if string(all) != "abcdefgh" {
		t.Errorf("reassembled %q", all)
	}
	for _, n := range sizes {
		if n > 3 {
			t.Errorf("read returned %d bytes, chunk cap is 3", n)
		}
	}
}

func TestHandleTruncatingWrite(t *testing.T) {
	a := New(WithFile("/f", []byte("old")))
	ctx := context.Background()

	h, err := a.Open(ctx, "/f", agent.ModeWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := h.Write([]byte("ab")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := h.Write([]byte("cd")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	h.Close()

	got, err := a.Read(ctx, "/f")
	if err != nil || string(got) != "abcd" {
		t.Errorf("content after handle writes = %q, %v", got, err)
	}

	if _, err := h.Write([]byte("x")); !errors.Is(err, agent.ErrClosed) {
		t.Errorf("write on a closed handle = %v, want ErrClosed", err)
	}
}

func TestClosedAgent(t *testing.T) {
	a := New(WithFile("/f", nil))
	ctx := context.Background()

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := a.Stat(ctx, "/f"); !errors.Is(err, agent.ErrClosed) {
		t.Errorf("Stat after Close = %v, want ErrClosed", err)
	}
	if err := a.Write(ctx, "/f", nil); !errors.Is(err, agent.ErrClosed) {
		t.Errorf("Write after Close = %v, want ErrClosed", err)
	}
}
