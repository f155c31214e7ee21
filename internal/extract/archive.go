package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
)

// readZipEntry returns the contents of the named entry, or nil if absent.
func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		return buf.Bytes(), nil
	}
	return nil, nil
}

var anyTag = regexp.MustCompile(`<[^>]*>`)

// xmlText strips markup from an XML fragment. Each closing tag listed in
// breaks is replaced by its separator first; entities are decoded last.
// Lines are trimmed and empty lines dropped.
func xmlText(fragment string, breaks map[string]string) string {
	for tag, sep := range breaks {
		fragment = strings.ReplaceAll(fragment, tag, tag+sep)
	}
	text := html.UnescapeString(anyTag.ReplaceAllString(fragment, ""))
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
