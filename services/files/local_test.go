package filesvc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/trezcool/darasa/core"
)

func newTestStorage(t *testing.T) *localStorage {
	t.Helper()
	conf := &core.Config{}
	conf.Uploads.Dir = t.TempDir()
	st, err := NewLocalStorage(conf)
	if err != nil {
		t.Fatalf("NewLocalStorage() failed: %v", err)
	}
	return st
}

func TestSave(t *testing.T) {
	st := newTestStorage(t)

	content := "chapter one"
	f, err := st.Save(strings.NewReader(content), "materials", "Notes.PDF", "application/pdf", int64(len(content)))
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	if f.OriginalName != "Notes.PDF" {
		t.Errorf("OriginalName = %q; want %q", f.OriginalName, "Notes.PDF")
	}
	if !strings.HasSuffix(f.Name, ".pdf") {
		t.Errorf("Name = %q; want a lowercased .pdf suffix", f.Name)
	}
	if f.Name == "Notes.PDF" {
		t.Error("stored name must not be the original name")
	}
	if want := "materials/" + f.Name; f.Path != want {
		t.Errorf("Path = %q; want %q", f.Path, want)
	}

	data, err := os.ReadFile(st.AbsPath(f))
	if err != nil {
		t.Fatalf("reading stored file failed: %v", err)
	}
	if string(data) != content {
		t.Errorf("stored content = %q; want %q", data, content)
	}
}

func TestSaveNamesNeverCollide(t *testing.T) {
	st := newTestStorage(t)

	f1, err := st.Save(strings.NewReader("a"), "materials", "notes.pdf", "application/pdf", 1)
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	f2, err := st.Save(strings.NewReader("b"), "materials", "notes.pdf", "application/pdf", 1)
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if f1.Name == f2.Name {
		t.Errorf("same stored name %q for two uploads of %q", f1.Name, "notes.pdf")
	}
}

func TestRemove(t *testing.T) {
	st := newTestStorage(t)

	f, err := st.Save(strings.NewReader("x"), "submissions", "hw.txt", "text/plain", 1)
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	if err = st.Remove(f); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if _, err = os.Stat(st.AbsPath(f)); !os.IsNotExist(err) {
		t.Errorf("file still exists after Remove(): %v", err)
	}

	// a second removal is a no-op
	if err = st.Remove(f); err != nil {
		t.Errorf("Remove() of a missing file failed: %v", err)
	}
	if err = st.Remove(core.UploadedFile{}); err != nil {
		t.Errorf("Remove() of a zero file failed: %v", err)
	}
}

func TestAbsPath(t *testing.T) {
	st := &localStorage{root: filepath.Join("media")}
	f := core.UploadedFile{Path: "assignments/abc.pdf"}
	if got, want := st.AbsPath(f), filepath.Join("media", "assignments", "abc.pdf"); got != want {
		t.Errorf("AbsPath() = %q; want %q", got, want)
	}
}
