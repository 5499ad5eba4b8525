// Package tools provides Genkit tool registration for the support agent.
//
// Three tools are registered:
//
//  1. query_support_db — read-only SQL against the support database
//  2. customer_profile — customer lookup with ticket history and summary
//  3. search_policies  — semantic retrieval over indexed policy documents
//
// Tools capture their dependencies via handler structs; the Genkit closures
// are thin adapters around testable handler methods. Tool failures that the
// model can recover from (bad SQL, unknown customer) are returned as result
// strings, not errors, so the loop keeps running and the model can retry.
package tools

import (
	"context"
	"errors"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Genkit tool names. The agent loop uses these for dispatch and
// loop-prevention, so they are the single source of truth.
const (
	QuerySupportDBName  = "query_support_db"
	CustomerProfileName = "customer_profile"
	SearchPoliciesName  = "search_policies"
)

var toolNames = []string{
	QuerySupportDBName,
	CustomerProfileName,
	SearchPoliciesName,
}

// ToolNames returns the names of every registered tool.
func ToolNames() []string {
	return toolNames
}

// Register defines all support tools with Genkit.
func Register(g *genkit.Genkit, db *Database, profile *Profile, policy *Policy) ([]ai.Tool, error) {
	if g == nil {
		return nil, errors.New("genkit instance is required")
	}
	if db == nil || profile == nil || policy == nil {
		return nil, errors.New("all tool handlers are required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, QuerySupportDBName,
			"Run a READ-ONLY SQL query on the support database. "+
				"SCHEMA: customers(id, name, email, phone, account_status, created_at); "+
				"tickets(id, customer_id, subject, description, status, priority, created_at, resolved_at). "+
				"CRITICAL: use 'account_status' for customers (values: 'Active', 'Suspended'). "+
				"Only SELECT queries are allowed.",
			func(tc *ai.ToolContext, input SQLInput) (string, error) {
				return db.Query(tc, input)
			}),
		genkit.DefineTool(g, CustomerProfileName,
			"Retrieve a full customer profile including contact details, "+
				"ticket history, and summary statistics. "+
				"Use this when asked for a customer overview, profile, or history. "+
				"Accepts a partial name or email.",
			func(tc *ai.ToolContext, input ProfileInput) (string, error) {
				return profile.Lookup(tc, input)
			}),
		genkit.DefineTool(g, SearchPoliciesName,
			"Search company policy documents for information about refunds, "+
				"shipping, warranties, and other policy questions. "+
				"Returns relevant excerpts with their source documents and pages.",
			func(tc *ai.ToolContext, input PolicyInput) (string, error) {
				return policy.Search(tc, input)
			}),
	}, nil
}

// Refs resolves every registered tool to a ToolRef for model calls.
// Fresh lookup each call; missing tools are skipped.
func Refs(ctx context.Context, g *genkit.Genkit) []ai.ToolRef {
	refs := make([]ai.ToolRef, 0, len(toolNames))
	for _, name := range toolNames {
		if tool := genkit.LookupTool(g, name); tool != nil {
			refs = append(refs, tool)
		}
	}
	return refs
}
