package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
)

// odfContentPath is the path to the main content inside OpenDocument zips.
const odfContentPath = "content.xml"

// drawPage matches one slide of an OpenDocument presentation.
var drawPage = regexp.MustCompile(`(?s)<draw:page(?:\s[^>]*)?>.*?</draw:page>`)

var odfParagraphBreaks = map[string]string{
	"</text:p>": "\n",
	"</text:h>": "\n",
}

// readODFContent returns content.xml from an OpenDocument package.
func readODFContent(content []byte, kind string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract %s: not a zip: %w", kind, err)
	}
	data, err := readZipEntry(zr, odfContentPath)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", kind, err)
	}
	if data == nil {
		return "", fmt.Errorf("extract %s: %s not found", kind, odfContentPath)
	}
	return string(data), nil
}

// extractODP returns one text per slide. Headings and paragraphs each become
// a line, in document order.
func extractODP(content []byte) ([]string, error) {
	s, err := readODFContent(content, "ODP")
	if err != nil {
		return nil, err
	}
	pages := drawPage.FindAllString(s, -1)
	texts := make([]string, len(pages))
	for i, page := range pages {
		texts[i] = xmlText(page, odfParagraphBreaks)
	}
	return texts, nil
}
