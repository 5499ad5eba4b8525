package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// SQLInput is the input schema for the query_support_db tool.
type SQLInput struct {
	Query string `json:"query" jsonschema_description:"The SELECT statement to run"`
}

// Database handles read-only SQL queries for the agent.
type Database struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDatabase creates the SQL query handler.
func NewDatabase(db *sql.DB, logger *slog.Logger) (*Database, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Database{db: db, logger: logger}, nil
}

// Query validates and runs one SELECT statement, returning the rows as a
// JSON array string. Validation failures and database errors are returned
// as result text rather than errors: the model reads them and corrects
// itself on the next turn.
func (d *Database) Query(ctx context.Context, input SQLInput) (string, error) {
	query := strings.TrimSpace(input.Query)
	if !strings.HasPrefix(strings.ToLower(query), "select") {
		return "ERROR: Only SELECT queries are allowed.", nil
	}

	if msg := checkColumns(query); msg != "" {
		return msg, nil
	}

	d.logger.Debug("running support query", "query", query)

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err), nil
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err), nil
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err), nil
	}
	return string(data), nil
}

// checkColumns catches the one column mistake models make constantly:
// asking for 'status' on customers, where the column is 'account_status'.
// Advisory only; anything it misses still fails at execution with a
// readable error.
func checkColumns(query string) string {
	q := strings.ToLower(query)
	if !strings.Contains(q, "customers") {
		return ""
	}
	if strings.Contains(q, "account_status") || strings.Contains(q, "tickets") {
		return ""
	}

	replacer := strings.NewReplacer(",", " ", "(", " ", ")", " ", "=", " ")
	for _, word := range strings.Fields(replacer.Replace(q)) {
		if word == "status" {
			return "Error: 'status' is not a valid column for customers. Did you mean 'account_status'?"
		}
	}
	return ""
}

// scanRows converts a result set into maps keyed by column name.
// []byte values become strings so the JSON stays readable.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	records := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		record := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
			} else {
				record[col] = values[i]
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return records, nil
}
