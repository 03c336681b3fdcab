package ports

import "io"

// ContainerEntry is a named node in a compound file's directory tree:
// either a stream holding bytes or a storage holding ordered children.
// Entries are owned by their Container and must not be retained past its
// Close.
type ContainerEntry interface {
	Name() string
	IsStorage() bool
	// Children returns the entry's direct children in stored order.
	// Streams have none.
	Children() []ContainerEntry
	Size() int64
	// Open returns a fresh reader over the stream's bytes. Storages
	// yield an empty reader.
	Open() io.Reader
}

// Container is an open compound-file (OLE2/CFB) directory handle.
type Container interface {
	// Root returns the root directory's entries in stored order.
	Root() []ContainerEntry
	// Stream resolves a stream by path from the root and opens it.
	Stream(path ...string) (io.Reader, bool)
	// Entry resolves any entry by path from the root.
	Entry(path ...string) (ContainerEntry, bool)
	Close() error
}

// ContainerOpener parses a byte image as a compound file. Invalid images
// fail with domain.ErrBadFormat.
type ContainerOpener interface {
	OpenContainer(ra io.ReaderAt, size int64) (Container, error)
}
