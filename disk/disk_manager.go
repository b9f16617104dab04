package disk

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

const PageSize int = 4096

// FlushInstantly should normally be set to true. If it is false then data might be lost even after a successful write
// operation when power loss occurs before os flushes its io buffers. But when it is false, tests run faster thanks to
// io scheduling of os, so for development it could be set to false.
const FlushInstantly bool = false

var ErrShortPage = errors.New("partial page encountered")

type IDiskManager interface {
	ReadPage(pageNo int) ([]byte, error)
	WritePage(data []byte, pageNo int) error
	AppendPage(data []byte) (pageNo int, err error)
	NumPages() (int, error)
	Path() string
	Close() error
}

// Manager addresses a single file as an array of PageSize pages. Page n lives at offset n*PageSize. It keeps no page
// content in memory.
type Manager struct {
	file *os.File
	path string
	// mu serializes appends so that two writers cannot claim the same page number.
	mu sync.Mutex
}

func NewDiskManager(file string) (*Manager, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving path %s", file)
	}

	f, err := os.OpenFile(abs, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", abs)
	}

	return &Manager{file: f, path: filepath.Clean(abs)}, nil
}

// NumPages is computed from the file size on every call, so that it stays correct after appends done by anyone.
func (d *Manager) NumPages() (int, error) {
	stat, err := d.file.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "stat %s", d.path)
	}

	return int(stat.Size()) / PageSize, nil
}

func (d *Manager) ReadPage(pageNo int) ([]byte, error) {
	data := make([]byte, PageSize)
	n, err := d.file.ReadAt(data, int64(PageSize)*int64(pageNo))
	if n == PageSize {
		return data, nil
	}
	if err == nil || err == io.EOF {
		return nil, errors.Wrapf(ErrShortPage, "page %d of %s, read %d bytes", pageNo, d.path, n)
	}

	return nil, errors.Wrapf(err, "reading page %d of %s", pageNo, d.path)
}

func (d *Manager) WritePage(data []byte, pageNo int) error {
	if len(data) != PageSize {
		panic("written bytes are not equal to page size")
	}

	if _, err := d.file.WriteAt(data, int64(PageSize)*int64(pageNo)); err != nil {
		return errors.Wrapf(err, "writing page %d of %s", pageNo, d.path)
	}

	if FlushInstantly {
		if err := d.file.Sync(); err != nil {
			return errors.Wrapf(err, "syncing %s", d.path)
		}
	}

	return nil
}

// AppendPage writes data as a new page at the end of the file and returns its page number.
func (d *Manager) AppendPage(data []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pageNo, err := d.NumPages()
	if err != nil {
		return 0, err
	}

	return pageNo, d.WritePage(data, pageNo)
}

func (d *Manager) Path() string {
	return d.path
}

func (d *Manager) Close() error {
	return d.file.Close()
}
