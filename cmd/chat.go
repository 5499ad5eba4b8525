package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/spf13/cobra"

	"github.com/mkrause/deskd/internal/agent"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	fmt.Println("deskd support agent. Ask about policies or customers.")
	fmt.Println("Commands: /reset clears the conversation, /exit quits.")
	fmt.Println()

	var conversation []*ai.Message
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println("\nGoodbye.")
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch input {
		case "/exit", "/quit":
			fmt.Println("Goodbye.")
			return nil
		case "/reset":
			conversation = nil
			fmt.Println("Conversation cleared.")
			continue
		}

		res, err := a.Loop.Run(ctx, conversation, input)
		if err != nil {
			if errors.Is(err, agent.ErrResourceExhausted) {
				fmt.Println("The agent could not settle on an answer. Try rephrasing; /reset clears the conversation.")
				continue
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		conversation = res.Messages

		printAnswer(res.Text)
		fmt.Println()
	}

	return scanner.Err()
}
