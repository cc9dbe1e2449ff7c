package baseline

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/isopsephy/gematria-crossref/pkg/postgres"
)

// CSVSource reads a header-driven baseline CSV. One column must name the
// phrase ("phrase", "word", or "text"); every other column whose header the
// alias table recognises contributes one record per row. Unrecognised columns
// are ignored so datasets can carry extra metadata.
func CSVSource(path, alphabetID string, table *AliasTable) Source {
	return func(ctx context.Context, emit func(Record) error) error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening baseline csv %s: %w", path, err)
		}
		defer f.Close()

		r := csv.NewReader(f)
		r.TrimLeadingSpace = true
		header, err := r.Read()
		if err != nil {
			return fmt.Errorf("reading baseline csv header: %w", err)
		}
		phraseCol := -1
		methodCols := make(map[int]string)
		for i, name := range header {
			switch strings.ToLower(strings.TrimSpace(name)) {
			case "phrase", "word", "text":
				phraseCol = i
			default:
				if table.Known(name) {
					methodCols[i] = name
				}
			}
		}
		if phraseCol < 0 {
			return fmt.Errorf("baseline csv %s has no phrase column", path)
		}
		if len(methodCols) == 0 {
			return fmt.Errorf("baseline csv %s has no recognised method columns", path)
		}

		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			row, err := r.Read()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading baseline csv row: %w", err)
			}
			phrase := strings.TrimSpace(row[phraseCol])
			if phrase == "" {
				continue
			}
			for col, methodName := range methodCols {
				if col >= len(row) {
					continue
				}
				raw := strings.TrimSpace(row[col])
				if raw == "" {
					continue
				}
				expected, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					return fmt.Errorf("baseline csv %s: non-numeric value %q for %q: %w", path, raw, phrase, err)
				}
				if err := emit(Record{
					Phrase:   phrase,
					Alphabet: alphabetID,
					Method:   methodName,
					Expected: expected,
				}); err != nil {
					return err
				}
			}
		}
	}
}

// PostgresSource streams baseline records from a table with (phrase,
// alphabet, method, expected) columns.
func PostgresSource(client *postgres.Client, table string) Source {
	return func(ctx context.Context, emit func(Record) error) error {
		query := fmt.Sprintf(
			`SELECT phrase, alphabet, method, expected FROM %s ORDER BY phrase, method`, table)
		rows, err := client.DB.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("querying baseline table %s: %w", table, err)
		}
		defer rows.Close()
		for rows.Next() {
			var rec Record
			if err := rows.Scan(&rec.Phrase, &rec.Alphabet, &rec.Method, &rec.Expected); err != nil {
				return fmt.Errorf("scanning baseline row: %w", err)
			}
			if err := emit(rec); err != nil {
				return err
			}
		}
		return rows.Err()
	}
}
