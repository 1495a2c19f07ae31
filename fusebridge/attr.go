package fusebridge

import (
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"ninefs/agent"
)

// entryMode maps remote metadata to a FUSE mode word. Servers that
// report no permission bits get conventional defaults.
func entryMode(md agent.Metadata) uint32 {
	perm := md.Mode & 0777
	if md.IsDir {
		if perm == 0 {
			perm = 0755
		}
		return fuse.S_IFDIR | perm
	}
	if perm == 0 {
		perm = 0644
	}
	return fuse.S_IFREG | perm
}

// applyMetadata fills a fuse.Attr from remote metadata, falling back to
// start for timestamps the server does not report.
func applyMetadata(md agent.Metadata, start time.Time, out *fuse.Attr) {
	out.Mode = entryMode(md)
	out.Size = uint64(md.Size)

	t := md.ModTime
	if t.IsZero() {
		t = start
	}
	out.Mtime = uint64(t.Unix())
	out.Mtimensec = uint32(t.Nanosecond())
	out.Ctime = out.Mtime
	out.Ctimensec = out.Mtimensec
	out.Atime = out.Mtime
	out.Atimensec = out.Mtimensec
}

// readAt returns the slice of data addressed by a read at off, clipped
// to the destination size.
func readAt(data, dest []byte, off int64) []byte {
	if off < 0 || off >= int64(len(data)) {
		return nil
	}
	end := off + int64(len(dest))
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[off:end]
}
