package filesvc

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// localStorage stores uploads on the local filesystem under a single root.
// Files get random names; the original name only survives in the metadata.
type localStorage struct {
	root string
}

var _ core.FileStorage = (*localStorage)(nil)

func NewLocalStorage(conf *core.Config) (*localStorage, error) {
	if err := os.MkdirAll(conf.Uploads.Dir, 0755); err != nil {
		return nil, errors.Wrap(err, "creating uploads root")
	}
	return &localStorage{root: conf.Uploads.Dir}, nil
}

func (st *localStorage) Save(src io.Reader, dir, originalName, contentType string, size int64) (core.UploadedFile, error) {
	name := uuid.New().String() + strings.ToLower(filepath.Ext(originalName))

	absDir := filepath.Join(st.root, dir)
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return core.UploadedFile{}, errors.Wrap(err, "creating uploads dir")
	}

	dst, err := os.Create(filepath.Join(absDir, name))
	if err != nil {
		return core.UploadedFile{}, errors.Wrap(err, "creating file")
	}
	defer dst.Close()

	if _, err = io.Copy(dst, src); err != nil {
		_ = os.Remove(dst.Name())
		return core.UploadedFile{}, errors.Wrap(err, "writing file")
	}

	return core.UploadedFile{
		Name:         name,
		OriginalName: originalName,
		ContentType:  contentType,
		Size:         size,
		Path:         filepath.ToSlash(filepath.Join(dir, name)),
	}, nil
}

// Remove deletes the stored file; a file already gone counts as removed.
func (st *localStorage) Remove(f core.UploadedFile) error {
	if f.Path == "" {
		return nil
	}
	if err := os.Remove(st.AbsPath(f)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing file")
	}
	return nil
}

func (st *localStorage) AbsPath(f core.UploadedFile) string {
	return filepath.Join(st.root, filepath.FromSlash(f.Path))
}
