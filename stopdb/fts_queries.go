package stopdb

// Hand-written FTS5 query implementation. The MATCH operator and the bm25()
// ranking function are FTS5-specific syntax, so this query is maintained
// manually.
//
// IMPORTANT: If the 'stops' or 'stops_fts' table schemas change, the SQL and
// Go types in this file must be updated to match.

import (
	"context"
	"strings"
)

const searchStopsByFullText = `
SELECT
    s.id,
    s.name,
    s.lat,
    s.lon
FROM
    stops_fts
    JOIN stops s ON s.rowid = stops_fts.rowid
WHERE
    stops_fts MATCH ?
ORDER BY
    bm25(stops_fts),
    s.name
LIMIT
    ?
`

type SearchStopsByFullTextRow struct {
	ID   string
	Name string
	Lat  float64
	Lon  float64
}

// SearchStopsByFullText matches stop names against the query terms, treating
// the last term as a prefix. Rows come back ranked by bm25 relevance. An
// empty or whitespace-only query yields no rows.
func (c *Client) SearchStopsByFullText(ctx context.Context, query string, limit int64) ([]SearchStopsByFullTextRow, error) {
	match := ftsMatchExpression(query)
	if match == "" {
		return nil, nil
	}

	rows, err := c.DB.QueryContext(ctx, searchStopsByFullText, match, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // closing is also checked explicitly below
	var items []SearchStopsByFullTextRow
	for rows.Next() {
		var i SearchStopsByFullTextRow
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Lat,
			&i.Lon,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ftsMatchExpression turns free-form user text into an FTS5 MATCH expression.
// Each term is double-quoted so punctuation in stop names cannot be read as
// query syntax, and the last term matches as a prefix.
func ftsMatchExpression(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}

	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	}
	quoted[len(quoted)-1] += "*"
	return strings.Join(quoted, " ")
}
