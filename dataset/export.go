package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/pkgscan/scandash/model"
)

// Export serializes the normalized dataset back to CSV: header
// included, comma-separated, no index column. The output is an exact
// echo of the in-memory dataset, so exporting and re-normalizing
// round-trips to an identical dataset.
func Export(ds *model.Dataset) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(ds.Columns); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	row := make([]string, len(ds.Columns))
	for _, rec := range ds.Records {
		for i, col := range ds.Columns {
			row[i] = rec.Field(col)
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}
