// Package fusebridge re-exports a remote 9P namespace as a local FUSE
// mount. Every FUSE node is backed by an nsfs.Node drawn from one shared
// tree, so the kernel's view and the library's view of the namespace
// share identity and the same shielded-failure policy: a swallowed
// remote failure surfaces here as EIO.
package fusebridge

import (
	"context"
	"sync"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"ninefs/agent"
	"ninefs/nsfs"
)

// NSNode is a FUSE node backed by one remote namespace node.
type NSNode struct {
	fs.Inode
	node  *nsfs.Node
	start time.Time
}

// NewRoot returns the FUSE root for the given tree, suitable for
// fs.Mount.
func NewRoot(tree *nsfs.Tree) *NSNode {
	return &NSNode{node: tree.Root(), start: time.Now()}
}

var _ = (fs.NodeLookuper)((*NSNode)(nil))
var _ = (fs.NodeReaddirer)((*NSNode)(nil))
var _ = (fs.NodeGetattrer)((*NSNode)(nil))
var _ = (fs.NodeOpener)((*NSNode)(nil))
var _ = (fs.NodeCreater)((*NSNode)(nil))
var _ = (fs.NodeMkdirer)((*NSNode)(nil))
var _ = (fs.NodeUnlinker)((*NSNode)(nil))
var _ = (fs.NodeRmdirer)((*NSNode)(nil))

func (n *NSNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := n.node.At(name)
	md, err := child.Stat(ctx)
	if err != nil {
		return nil, syscall.ENOENT
	}
	applyMetadata(md, n.start, &out.Attr)

	mode := uint32(fuse.S_IFREG)
	if md.IsDir {
		mode = fuse.S_IFDIR
	}
	return n.NewInode(ctx, &NSNode{node: child, start: n.start}, fs.StableAttr{Mode: mode}), 0
}

func (n *NSNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	names, ok := n.node.Entries(ctx)
	if !ok {
		// The shield already recorded the failure; the kernel still
		// needs an errno rather than a silently empty directory.
		return nil, syscall.EIO
	}
	entries := make([]fuse.DirEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, fuse.DirEntry{Name: name})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *NSNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	md, err := n.node.Stat(ctx)
	if err != nil {
		if n.node.Path() == "/" {
			// Some servers refuse to stat their own root; the mount
			// point still needs sane attributes.
			out.Mode = fuse.S_IFDIR | 0755
			return 0
		}
		return syscall.EIO
	}
	applyMetadata(md, n.start, &out.Attr)
	return 0
}

func (n *NSNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	h := &nsFileHandle{node: n.node}
	switch flags & uint32(syscall.O_ACCMODE) {
	case uint32(syscall.O_WRONLY):
		// No snapshot needed; writes replace the content on flush.
	default:
		data, ok := n.node.ReadAll(ctx)
		if !ok {
			return nil, 0, syscall.EIO
		}
		h.data = data
	}
	return h, fuse.FOPEN_DIRECT_IO, 0
}

func (n *NSNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	child := n.node.At(name)
	if !child.Create(ctx, mode&0777) {
		return nil, nil, 0, syscall.EIO
	}
	inode := n.NewInode(ctx, &NSNode{node: child, start: n.start}, fs.StableAttr{Mode: fuse.S_IFREG})
	return inode, &nsFileHandle{node: child}, fuse.FOPEN_DIRECT_IO, 0
}

func (n *NSNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := n.node.At(name)
	if !child.Create(ctx, agent.PermDir|mode&0777) {
		return nil, syscall.EIO
	}
	return n.NewInode(ctx, &NSNode{node: child, start: n.start}, fs.StableAttr{Mode: fuse.S_IFDIR}), 0
}

func (n *NSNode) Unlink(ctx context.Context, name string) syscall.Errno {
	return n.removeChild(ctx, name)
}

func (n *NSNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	return n.removeChild(ctx, name)
}

func (n *NSNode) removeChild(ctx context.Context, name string) syscall.Errno {
	child := n.node.At(name)
	if !child.Exists(ctx) {
		return syscall.ENOENT
	}
	if !child.Remove(ctx) {
		return syscall.EIO
	}
	return 0
}

// nsFileHandle buffers one open file. Reads serve the snapshot taken at
// open time; writes accumulate locally and are pushed back as a single
// replace on flush, which is how synthetic control files expect to be
// driven.
type nsFileHandle struct {
	node *nsfs.Node

	mu    sync.Mutex
	data  []byte
	dirty bool
}

var _ = (fs.FileReader)((*nsFileHandle)(nil))
var _ = (fs.FileWriter)((*nsFileHandle)(nil))
var _ = (fs.FileFlusher)((*nsFileHandle)(nil))

func (h *nsFileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fuse.ReadResultData(readAt(h.data, dest, off)), 0
}

func (h *nsFileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	end := off + int64(len(data))
	if end > int64(len(h.data)) {
		grown := make([]byte, end)
		copy(grown, h.data)
		h.data = grown
	}
	copy(h.data[off:end], data)
	h.dirty = true
	return uint32(len(data)), 0
}

func (h *nsFileHandle) Flush(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.dirty {
		return 0
	}
	if !h.node.Write(ctx, h.data) {
		return syscall.EIO
	}
	h.dirty = false
	return 0
}
