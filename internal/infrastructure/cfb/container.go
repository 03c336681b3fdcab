// Package cfb adapts the mscfb compound-file reader to the container port.
// It materializes the directory tree once at open time; stream bytes are
// read lazily and cached so an entry can be opened more than once.
package cfb

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/richardlehane/mscfb"

	"github.com/kirillkom/textmill/internal/core/domain"
	"github.com/kirillkom/textmill/internal/core/ports"
)

type Entry struct {
	name     string
	size     int64
	storage  bool
	children []*Entry
	file     *mscfb.File
	data     []byte
}

func (e *Entry) Name() string    { return e.name }
func (e *Entry) IsStorage() bool { return e.storage }
func (e *Entry) Size() int64     { return e.size }

func (e *Entry) Children() []ports.ContainerEntry {
	out := make([]ports.ContainerEntry, len(e.children))
	for i, child := range e.children {
		out[i] = child
	}
	return out
}

func (e *Entry) Open() io.Reader {
	if e.file == nil || e.size == 0 {
		return bytes.NewReader(nil)
	}
	if e.data == nil {
		raw, err := io.ReadAll(io.LimitReader(e.file, e.size))
		if err != nil {
			return bytes.NewReader(raw)
		}
		e.data = raw
	}
	return bytes.NewReader(e.data)
}

type Container struct {
	root []*Entry
}

// Opener implements ports.ContainerOpener.
type Opener struct{}

func NewOpener() *Opener { return &Opener{} }

func (o *Opener) OpenContainer(ra io.ReaderAt, size int64) (ports.Container, error) {
	return Open(ra, size)
}

// Open parses the byte image as a compound file and builds the directory
// tree in the reader's traversal order.
func Open(ra io.ReaderAt, _ int64) (*Container, error) {
	rdr, err := mscfb.New(ra)
	if err != nil {
		return nil, domain.WrapError(domain.ErrBadFormat, "parse cfb header", err)
	}

	var nodes []entryNode
	for file, err := rdr.Next(); err == nil; file, err = rdr.Next() {
		nodes = append(nodes, entryNode{
			name: file.Name,
			path: file.Path,
			size: file.Size,
			file: file,
		})
	}

	return &Container{root: buildTree(nodes)}, nil
}

type entryNode struct {
	name string
	path []string
	size int64
	file *mscfb.File
}

// buildTree folds the flat traversal into the directory tree. Parents
// always precede their children in traversal order; storages are the
// entries that end up with children.
func buildTree(nodes []entryNode) []*Entry {
	root := &Entry{storage: true}
	index := map[string]*Entry{"": root}

	for _, n := range nodes {
		parent, ok := index[pathKey(n.path)]
		if !ok {
			continue
		}
		entry := &Entry{name: n.name, size: n.size, file: n.file}
		parent.children = append(parent.children, entry)
		parent.storage = true
		index[pathKey(append(append([]string{}, n.path...), n.name))] = entry
	}
	return root.children
}

func pathKey(path []string) string {
	return strings.Join(path, "\x00")
}

func (c *Container) Root() []ports.ContainerEntry {
	out := make([]ports.ContainerEntry, len(c.root))
	for i, e := range c.root {
		out[i] = e
	}
	return out
}

func (c *Container) Entry(path ...string) (ports.ContainerEntry, bool) {
	entries := c.Root()
	var found ports.ContainerEntry
	for _, name := range path {
		found = nil
		for _, e := range entries {
			if e.Name() == name {
				found = e
				break
			}
		}
		if found == nil {
			return nil, false
		}
		entries = found.Children()
	}
	return found, found != nil
}

func (c *Container) Stream(path ...string) (io.Reader, bool) {
	entry, ok := c.Entry(path...)
	if !ok || entry.IsStorage() {
		return nil, false
	}
	return entry.Open(), true
}

// Close releases the directory tree. The underlying byte source belongs
// to the caller and stays open.
func (c *Container) Close() error {
	if c.root == nil {
		return fmt.Errorf("container already closed")
	}
	c.root = nil
	return nil
}
