// Package ingest reads resume and job description files into plain text
// documents for the pipeline.
package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/spigell/talentscout/internal/pipeline"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText = "text/plain"
)

// MaxFileSize bounds a single input file.
const MaxFileSize = 20 << 20

var (
	ErrUnsupported = errors.New("unsupported file type")
	ErrEmpty       = errors.New("no text extracted")
	ErrTooLarge    = errors.New("file too large")
)

// Load reads every file named in paths. Directories are walked recursively,
// hidden entries skipped. The source id of a document is its file base name.
// Files that cannot be read or converted are returned as failures.
func Load(paths ...string) ([]pipeline.Document, []pipeline.Failure) {
	var (
		docs     []pipeline.Document
		failures []pipeline.Failure
	)

	add := func(path string) {
		doc, err := ReadFile(path)
		if err != nil {
			failures = append(failures, pipeline.Failure{
				SourceID: filepath.Base(path),
				Reason:   "read failed",
				Err:      err,
			})
			return
		}
		docs = append(docs, doc)
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			failures = append(failures, pipeline.Failure{SourceID: filepath.Base(root), Reason: "read failed", Err: err})
			continue
		}
		if !info.IsDir() {
			add(root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				failures = append(failures, pipeline.Failure{SourceID: filepath.Base(path), Reason: "read failed", Err: err})
				return nil
			}
			if path != root && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() {
				add(path)
			}
			return nil
		})
		if err != nil {
			failures = append(failures, pipeline.Failure{SourceID: filepath.Base(root), Reason: "read failed", Err: err})
		}
	}

	return docs, failures
}

// ReadFile converts one file into a document.
func ReadFile(path string) (pipeline.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return pipeline.Document{}, err
	}
	if info.Size() > MaxFileSize {
		return pipeline.Document{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Document{}, err
	}

	return FromBytes(filepath.Base(path), data)
}

// FromBytes converts an in-memory file, for example an upload.
func FromBytes(name string, data []byte) (pipeline.Document, error) {
	if len(data) > MaxFileSize {
		return pipeline.Document{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	text, err := Text(name, data)
	if err != nil {
		return pipeline.Document{}, err
	}
	if strings.TrimSpace(text) == "" {
		return pipeline.Document{}, ErrEmpty
	}

	return pipeline.Document{SourceID: name, Text: text}, nil
}

// Text extracts plain text from PDF, DOCX, plain text and markdown content.
func Text(name string, data []byte) (string, error) {
	switch kind(name, data) {
	case mimePDF:
		text, err := extractPDF(data)
		if err != nil {
			return "", fmt.Errorf("read pdf: %w", err)
		}
		return text, nil
	case mimeDOCX:
		text, err := extractDOCX(data)
		if err != nil {
			return "", fmt.Errorf("read docx: %w", err)
		}
		return text, nil
	case mimeText:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: text is not valid utf-8", ErrUnsupported)
		}
		return string(data), nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupported, mimetype.Detect(data).String())
}

func kind(name string, data []byte) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return mimePDF
	case ".docx":
		return mimeDOCX
	case ".txt", ".md", ".markdown", ".text":
		return mimeText
	}

	detected := mimetype.Detect(data)
	for _, m := range []string{mimePDF, mimeDOCX, mimeText} {
		if detected.Is(m) {
			return m
		}
	}
	return ""
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var doc *zip.File
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", errors.New("word/document.xml not found")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var sb strings.Builder
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "br") && sb.Len() > 0 {
				sb.WriteByte('\n')
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
