package store

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// FS is the shared-directory backend used in production: both processes
// point it at the same app-group container and coordinate purely through
// atomic renames.
type FS struct {
	fs   afero.Fs
	root string
}

// NewFS returns a filesystem backend rooted at root. A nil fs means the
// operating system filesystem; tests pass afero.NewMemMapFs().
func NewFS(fs afero.Fs, root string) *FS {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FS{fs: fs, root: root}
}

// Root returns the backend's root directory.
func (f *FS) Root() string { return f.root }

func (f *FS) abs(p string) string {
	return filepath.Join(f.root, filepath.FromSlash(p))
}

// Put writes data to a fresh temp file beside the destination, removes any
// previous record, and renames the temp file into place. The rename is the
// only mutation a concurrent reader can observe.
func (f *FS) Put(path string, data []byte) error {
	dst := f.abs(path)
	dir := filepath.Dir(dst)
	if err := f.fs.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	_ = f.fs.Chmod(dir, 0o700)
	tmp := filepath.Join(dir, ".tmp-"+uuid.NewString())
	if err := afero.WriteFile(f.fs, tmp, data, 0o600); err != nil {
		return err
	}
	// best-effort: the rename below replaces the destination regardless
	_ = f.fs.Remove(dst)
	if err := f.fs.Rename(tmp, dst); err != nil {
		_ = f.fs.Remove(tmp)
		return err
	}
	return nil
}

func (f *FS) Get(path string) ([]byte, error) {
	return afero.ReadFile(f.fs, f.abs(path))
}

func (f *FS) Delete(path string) error {
	if err := f.fs.Remove(f.abs(path)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *FS) Stat(path string) (Entry, error) {
	fi, err := f.fs.Stat(f.abs(path))
	if err != nil {
		return Entry{}, err
	}
	return entryFromInfo(fi), nil
}

func (f *FS) Touch(path string, mtime time.Time) error {
	return f.fs.Chtimes(f.abs(path), mtime, mtime)
}

func (f *FS) List(dir string) ([]Entry, error) {
	fis, err := afero.ReadDir(f.fs, f.abs(dir))
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(fis))
	for _, fi := range fis {
		out = append(out, entryFromInfo(fi))
	}
	return out, nil
}

func (f *FS) RemoveDirIfEmpty(dir string) error {
	fis, err := afero.ReadDir(f.fs, f.abs(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(fis) == 0 {
		return f.fs.Remove(f.abs(dir))
	}
	return nil
}

func (f *FS) RemoveAll(path string) error {
	return f.fs.RemoveAll(f.abs(path))
}

// Protect narrows permissions to owner-only. Re-protecting an already
// protected path is not an error.
func (f *FS) Protect(path string) error {
	fi, err := f.fs.Stat(f.abs(path))
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return f.fs.Chmod(f.abs(path), 0o700)
	}
	return f.fs.Chmod(f.abs(path), 0o600)
}

func (f *FS) Close() error { return nil }

func entryFromInfo(fi os.FileInfo) Entry {
	return Entry{
		Name:    fi.Name(),
		Dir:     fi.IsDir(),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}
}
