package extract

import "regexp"

// odsTable matches one sheet of an OpenDocument spreadsheet.
var odsTable = regexp.MustCompile(`(?s)<table:table(?:\s[^>]*)?>.*?</table:table>`)

var odsCellBreaks = map[string]string{
	"</table:table-cell>": "\t",
	"</table:table-row>":  "\n",
}

// extractODS returns one text per sheet: rows on separate lines, cells separated by tabs.
func extractODS(content []byte) ([]string, error) {
	s, err := readODFContent(content, "ODS")
	if err != nil {
		return nil, err
	}
	tables := odsTable.FindAllString(s, -1)
	texts := make([]string, len(tables))
	for i, table := range tables {
		texts[i] = xmlText(table, odsCellBreaks)
	}
	return texts, nil
}
