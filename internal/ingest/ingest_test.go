package ingest

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func docx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString("<w:p><w:r><w:t>" + p + "</w:t></w:r></w:p>")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	doc := `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "alice.txt", []byte("Alice\nGo developer"))
	writeFile(t, dir, "nested/bob.md", []byte("# Bob\n\nKubernetes"))
	writeFile(t, dir, "carol.docx", docx(t, "Carol", "PostgreSQL"))
	writeFile(t, dir, ".hidden.txt", []byte("ignored"))
	writeFile(t, dir, "photo.png", []byte("\x89PNG\r\n\x1a\n0000"))
	writeFile(t, dir, "broken.pdf", []byte("not a pdf"))

	docs, failures := Load(dir)

	got := make(map[string]string, len(docs))
	for _, d := range docs {
		got[d.SourceID] = d.Text
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 documents, got %v", got)
	}
	if got["alice.txt"] != "Alice\nGo developer" {
		t.Fatalf("unexpected text: %q", got["alice.txt"])
	}
	if !strings.Contains(got["bob.md"], "Kubernetes") {
		t.Fatalf("unexpected text: %q", got["bob.md"])
	}
	if got["carol.docx"] != "Carol\nPostgreSQL" {
		t.Fatalf("unexpected docx text: %q", got["carol.docx"])
	}

	failed := make(map[string]error, len(failures))
	for _, f := range failures {
		failed[f.SourceID] = f.Err
	}
	if len(failed) != 2 {
		t.Fatalf("expected 2 failures, got %+v", failures)
	}
	if !errors.Is(failed["photo.png"], ErrUnsupported) {
		t.Fatalf("unexpected png failure: %v", failed["photo.png"])
	}
	if failed["broken.pdf"] == nil {
		t.Fatalf("expected broken pdf failure")
	}
}

func TestLoadReportsMissingPaths(t *testing.T) {
	docs, failures := Load(filepath.Join(t.TempDir(), "missing.pdf"))
	if len(docs) != 0 {
		t.Fatalf("unexpected documents: %+v", docs)
	}
	if len(failures) != 1 || failures[0].SourceID != "missing.pdf" || !errors.Is(failures[0].Err, os.ErrNotExist) {
		t.Fatalf("unexpected failures: %+v", failures)
	}
}

func TestFromBytes(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		data    []byte
		want    string
		wantErr error
	}{
		{name: "text by content", file: "resume", data: []byte("plain resume"), want: "plain resume"},
		{name: "blank text", file: "resume.txt", data: []byte(" \n\t"), wantErr: ErrEmpty},
		{name: "invalid utf8", file: "resume.txt", data: []byte{0xff, 0xfe, 0xfd}, wantErr: ErrUnsupported},
		{name: "docx", file: "dave.docx", data: docx(t, "Dave"), want: "Dave"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := FromBytes(tt.file, tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if doc.SourceID != tt.file || doc.Text != tt.want {
				t.Fatalf("unexpected document: %+v", doc)
			}
		})
	}
}
