// Package export formats the roster for offline analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/feedlab/feedlab/internal/core/domain"
)

// WriteCSV renders the roster as CSV. The header comes from the widest row's
// flattened columns so rosters mixing catalog sizes still line up; narrower
// rows pad with empty cells.
func WriteCSV(w io.Writer, rows []domain.ParticipantRow) error {
	widest := domain.ParticipantRow{}
	for _, r := range rows {
		if len(r.Posts) > len(widest.Posts) {
			widest = r
		}
	}

	header := widest.Flatten()
	keys := make([]string, len(header))
	for i, c := range header {
		keys[i] = c.Key
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(keys); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range rows {
		flat := r.FlatMap()
		record := make([]string, len(keys))
		for i, k := range keys {
			record[i] = flat[k]
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON renders the roster as an indented JSON array.
func WriteJSON(w io.Writer, rows []domain.ParticipantRow) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("write json roster: %w", err)
	}
	return nil
}
