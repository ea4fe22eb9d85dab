package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/siwzmap/siwzmap/internal/document"
)

// CSVLoader handles CSV files, typically exported pricing forms. Rows are
// rendered tab-separated and the blocks flagged tabular, so the segmenter
// keeps the column spacing and splits row by row.
type CSVLoader struct{}

const csvBatchSize = 20

func (l *CSVLoader) Load(r io.Reader, filename string) ([]document.Block, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	var b blockBuilder
	if len(records) == 0 {
		return b.result(), nil
	}

	// First row is headers, repeated at the top of every batch.
	header := strings.Join(records[0], "\t")
	dataRows := records[1:]

	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(dataRows))

		var text strings.Builder
		text.WriteString(header)
		for _, row := range dataRows[i:end] {
			text.WriteString("\n")
			text.WriteString(strings.Join(row, "\t"))
		}
		b.add(text.String(), 1, nil, "")
		b.markTabular()
	}

	return b.result(), nil
}
