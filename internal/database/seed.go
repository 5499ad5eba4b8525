package database

import (
	"database/sql"
	"fmt"
)

// Seed replaces the contents of customers and tickets with the demo dataset.
// Idempotent: existing rows are wiped first.
func Seed(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range []string{"DELETE FROM tickets", "DELETE FROM customers"} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("clearing tables: %w", err)
		}
	}

	customers := []struct {
		id     int
		name   string
		email  string
		phone  string
		status string
	}{
		{1, "Ema Stone", "ema.stone@example.com", "555-0101", "Active"},
		{2, "John Doe", "john.doe@example.com", "555-0102", "Suspended"},
		{3, "Alice Smith", "alice.smith@example.com", "555-0103", "Active"},
	}
	for _, c := range customers {
		if _, err := tx.Exec(
			`INSERT INTO customers (id, name, email, phone, account_status, created_at)
			 VALUES (?, ?, ?, ?, ?, '2023-09-01 09:00:00')`,
			c.id, c.name, c.email, c.phone, c.status,
		); err != nil {
			return fmt.Errorf("inserting customer %s: %w", c.name, err)
		}
	}

	tickets := []struct {
		id         int
		customerID int
		subject    string
		desc       string
		status     string
		priority   string
		createdAt  string
		resolvedAt sql.NullString
	}{
		{1, 1, "Login fails after password reset", "Cannot sign in since resetting password yesterday.", "Open", "High", "2023-10-25 10:00:00", sql.NullString{}},
		{2, 1, "Billing query for October", "Charged twice for the October invoice.", "Closed", "Normal", "2023-10-20 14:30:00", sql.NullString{String: "2023-10-21 11:00:00", Valid: true}},
		{3, 2, "Account suspended without notice", "Account locked out, needs review.", "Open", "High", "2023-10-26 09:15:00", sql.NullString{}},
		{4, 3, "App crashes on startup", "Crash loop on the mobile app after update.", "Closed", "Normal", "2023-10-24 16:45:00", sql.NullString{String: "2023-10-24 18:00:00", Valid: true}},
		{5, 3, "Feature request: dark mode", "Would like a dark theme option.", "Pending", "Low", "2023-10-27 08:30:00", sql.NullString{}},
	}
	for _, t := range tickets {
		if _, err := tx.Exec(
			`INSERT INTO tickets (id, customer_id, subject, description, status, priority, created_at, resolved_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.id, t.customerID, t.subject, t.desc, t.status, t.priority, t.createdAt, t.resolvedAt,
		); err != nil {
			return fmt.Errorf("inserting ticket %d: %w", t.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed transaction: %w", err)
	}
	return nil
}
