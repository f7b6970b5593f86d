package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return records, nil
}

// readHTMLTable extracts the first table of an HTML document, such as a
// saved "historical prices" page. Header cells come from <thead>, or from
// the first row when the table has none.
func readHTMLTable(r io.Reader) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("no <table> in document")
	}

	var records [][]string
	var header []string
	table.Find("thead th").Each(func(_ int, sel *goquery.Selection) {
		header = append(header, strings.TrimSpace(sel.Text()))
	})
	if len(header) > 0 {
		records = append(records, header)
	}

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if row.ParentsFiltered("thead").Length() > 0 {
			return
		}
		var cells []string
		row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		// Dividend and split rows span several columns; skip them.
		if len(cells) == 0 || (len(records) > 0 && len(cells) < len(records[0])) {
			return
		}
		records = append(records, cells)
	})

	if len(records) == 0 {
		return nil, fmt.Errorf("table has no rows")
	}
	return records, nil
}
