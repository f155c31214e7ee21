package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// pptxSlidePathPrefix is the path prefix for slide XML files inside a .pptx zip.
const pptxSlidePathPrefix = "ppt/slides/slide"

// atTag matches <a:t>text</a:t> or <a:t xml:space="preserve">text</a:t> (and any other attributes).
var atTag = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>`)

// extractPPTX returns one text per slide, in slide number order. Text runs
// within a slide are joined with spaces.
func extractPPTX(content []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract PPTX: not a zip: %w", err)
	}
	type slide struct {
		num  int
		text string
	}
	var slides []slide
	for _, f := range zr.File {
		num, ok := slideNumber(f.Name)
		if !ok {
			continue
		}
		data, err := readZipEntry(zr, f.Name)
		if err != nil {
			return nil, fmt.Errorf("extract PPTX: %w", err)
		}
		var parts []string
		for _, p := range atTag.FindAllStringSubmatch(string(data), -1) {
			if s := strings.TrimSpace(html.UnescapeString(p[1])); s != "" {
				parts = append(parts, s)
			}
		}
		slides = append(slides, slide{num: num, text: strings.Join(parts, " ")})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })
	texts := make([]string, len(slides))
	for i, s := range slides {
		texts[i] = s.text
	}
	return texts, nil
}

// slideNumber parses N from "ppt/slides/slideN.xml".
func slideNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, pptxSlidePathPrefix) || !strings.HasSuffix(name, ".xml") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, pptxSlidePathPrefix), ".xml"))
	if err != nil {
		return 0, false
	}
	return n, true
}
