package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
)

// ProfileInput is the input schema for the customer_profile tool.
type ProfileInput struct {
	Customer string `json:"customer" jsonschema_description:"Customer name or email, full or partial"`
}

// Profile handles customer profile lookups for the agent.
type Profile struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewProfile creates the profile lookup handler.
func NewProfile(db *sql.DB, logger *slog.Logger) (*Profile, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Profile{db: db, logger: logger}, nil
}

// ticketSummary aggregates a customer's ticket history in one pass.
type ticketSummary struct {
	Total        int `json:"total"`
	Open         int `json:"open"`
	Closed       int `json:"closed"`
	HighPriority int `json:"high_priority"`
}

// Lookup resolves a name or email fragment to exactly one customer and
// returns their profile, full ticket history, and summary counts as a JSON
// string. Zero or multiple matches produce an error payload for the model
// rather than an error: the model should ask the user to narrow the query.
func (p *Profile) Lookup(ctx context.Context, input ProfileInput) (string, error) {
	pattern := "%" + input.Customer + "%"

	rows, err := p.db.QueryContext(ctx,
		`SELECT * FROM customers WHERE name LIKE ? OR email LIKE ?`,
		pattern, pattern)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err), nil
	}
	customers, err := scanRows(rows)
	rows.Close()
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err), nil
	}

	switch {
	case len(customers) == 0:
		return marshalResult(map[string]any{
			"error": "No matching customer found in the database.",
		})
	case len(customers) > 1:
		names := make([]any, 0, len(customers))
		for _, c := range customers {
			names = append(names, c["name"])
		}
		return marshalResult(map[string]any{
			"error": fmt.Sprintf("Found %d customers matching %q. Please be more specific.",
				len(customers), input.Customer),
			"matches": names,
		})
	}

	customer := customers[0]
	customerID := customer["id"]

	rows, err = p.db.QueryContext(ctx,
		`SELECT * FROM tickets WHERE customer_id = ? ORDER BY created_at DESC`,
		customerID)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err), nil
	}
	tickets, err := scanRows(rows)
	rows.Close()
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err), nil
	}

	var summary ticketSummary
	summary.Total = len(tickets)
	for _, t := range tickets {
		switch t["status"] {
		case "Open":
			summary.Open++
		case "Closed":
			summary.Closed++
		}
		if t["priority"] == "High" {
			summary.HighPriority++
		}
	}

	p.logger.Debug("resolved customer profile",
		"customer_id", customerID, "tickets", summary.Total)

	return marshalResult(map[string]any{
		"customer": customer,
		"tickets":  tickets,
		"summary":  summary,
	})
}

func marshalResult(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err), nil
	}
	return string(data), nil
}
