package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkrause/deskd/internal/citation"
)

var askShowDebug bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askShowDebug, "debug-info", false, "print retrieval debug info with the answer")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question is empty")
	}

	res, err := a.Loop.Run(ctx, nil, question)
	if err != nil {
		return fmt.Errorf("generating answer: %w", err)
	}

	printAnswer(res.Text)
	return nil
}

// printAnswer splits the agent output at the citation boundary and renders
// answer and sources separately.
func printAnswer(text string) {
	msg := citation.Split(text)
	fmt.Println(msg.Answer)

	if len(msg.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, src := range msg.Sources {
			fmt.Printf("  - %s\n", src)
		}
	}
	if askShowDebug && msg.Debug != "" {
		fmt.Println()
		fmt.Printf("Debug: %s\n", msg.Debug)
	}
}
