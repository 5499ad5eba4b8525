package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mkrause/deskd/internal/index"
	"github.com/mkrause/deskd/internal/log"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage indexed policy documents",
}

var docsIndexCmd = &cobra.Command{
	Use:   "index [filename]",
	Short: "Index or re-index one PDF from the policies directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsIndex,
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runDocsList,
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete [filename]",
	Short: "Remove a document from the index and delete its source file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsDelete,
}

var docsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Rebuild the whole index from the policies directory",
	Args:  cobra.NoArgs,
	RunE:  runDocsReset,
}

func init() {
	docsCmd.AddCommand(docsIndexCmd, docsListCmd, docsDeleteCmd, docsResetCmd)
	rootCmd.AddCommand(docsCmd)
}

func runDocsIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	res, err := a.Indexer.Index(ctx, args[0])
	if err != nil {
		return fmt.Errorf("indexing %s: %w", args[0], err)
	}

	fmt.Printf("Indexed %s: %d pages, %d chunks (doc %s)\n",
		args[0], res.Pages, res.Chunks, res.DocID)
	return nil
}

// runDocsList reads the ledger directly; no model provider or vector store
// is needed to show what is indexed.
func runDocsList(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	records := index.LoadLedger(cfg.LedgerPath, log.NewNop()).All()
	if len(records) == 0 {
		fmt.Println("No documents indexed.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILENAME\tPAGES\tCHUNKS\tINDEXED AT")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n",
			rec.Filename, rec.PageCount, rec.ChunkCount,
			rec.IndexedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runDocsDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.Indexer.Delete(ctx, args[0]); err != nil {
		return fmt.Errorf("deleting %s: %w", args[0], err)
	}

	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

func runDocsReset(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	report, err := a.Indexer.ResetAll(ctx)
	if err != nil {
		return fmt.Errorf("resetting index: %w", err)
	}

	failures := 0
	for _, status := range report {
		if status.Err != nil {
			failures++
			fmt.Printf("FAIL  %s: %v\n", status.Filename, status.Err)
			continue
		}
		fmt.Printf("OK    %s\n", status.Filename)
	}
	fmt.Printf("Re-indexed %d files, %d failed.\n", len(report)-failures, failures)
	return nil
}
