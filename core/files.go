package core

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// UploadedFile describes a stored upload. Path is relative to the uploads
// root and doubles as the file's public media path.
type UploadedFile struct {
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
	Path         string `json:"path"`
}

// FileList is a JSONB-backed list of uploads.
type FileList []UploadedFile

var (
	_ driver.Valuer = (FileList)(nil)
	_ sql.Scanner   = (*FileList)(nil)
)

func (fl FileList) Value() (driver.Value, error) {
	if fl == nil {
		fl = FileList{}
	}
	return json.Marshal(fl)
}

func (fl *FileList) Scan(src interface{}) error {
	if src == nil {
		*fl = FileList{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return errors.Errorf("cannot scan %T into FileList", src)
	}
	return json.Unmarshal(b, fl)
}

// FileStorage saves and removes uploaded files.
type FileStorage interface {
	// Save streams src to a new file under dir (relative to the uploads root)
	// and returns its descriptor.
	Save(src io.Reader, dir, originalName, contentType string, size int64) (UploadedFile, error)
	// Remove deletes the stored file. A file already gone counts as removed.
	Remove(f UploadedFile) error
	// AbsPath returns the absolute filesystem path of a stored file.
	AbsPath(f UploadedFile) string
}

// DetectContentType sniffs the content type from the first 512 bytes of file
// and rewinds it.
func DetectContentType(file multipart.File) (string, error) {
	head := make([]byte, 512)
	n, err := file.Read(head)
	if err != nil && err != io.EOF {
		return "", errors.Wrap(err, "reading file header")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", errors.Wrap(err, "rewinding file")
	}
	return http.DetectContentType(head[:n]), nil
}

// CheckUpload validates an upload against a size ceiling, an extension
// allow-list and a sniffed content-type allow-list, and returns the sniffed
// content type. Violations come back as a *ValidationError.
func CheckUpload(fh *multipart.FileHeader, maxSize int64, allowedExts, allowedTypes map[string]bool) (string, error) {
	if fh.Size > maxSize {
		return "", NewValidationError(errors.Errorf("%s exceeds the %dMB size limit", fh.Filename, maxSize>>20))
	}
	if ext := strings.ToLower(filepath.Ext(fh.Filename)); !allowedExts[ext] {
		return "", NewValidationError(errors.Errorf("%s: file type not allowed", fh.Filename))
	}

	file, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "opening upload")
	}
	defer file.Close()

	ctype, err := DetectContentType(file)
	if err != nil {
		return "", err
	}
	// strip sniffed params, e.g. "text/plain; charset=utf-8"
	if i := strings.IndexByte(ctype, ';'); i >= 0 {
		ctype = strings.TrimSpace(ctype[:i])
	}
	if !allowedTypes[ctype] {
		return "", NewValidationError(errors.Errorf("%s: content does not match an allowed type", fh.Filename))
	}
	return ctype, nil
}
