package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation with Atlas",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	fmt.Println("Atlas is ready. Type a message, or /quit to exit.")
	fmt.Println()

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
		case "/quit", "/exit":
			fmt.Println("Goodbye.")
			return nil
		case "/agents":
			for _, e := range a.Eves.List(ctx) {
				fmt.Printf("  %s  %s (%s): %s\n", e.ID, e.Name, e.Role, e.Status)
			}
			continue
		case "/tasks":
			fmt.Printf("  pending tasks: %d\n", a.Tasks.Pending(ctx))
			continue
		}

		// Responses are printed from the returned text, not the stream:
		// command tokens are stripped only after the full response arrives.
		response, err := a.Atlas.Chat(ctx, input, nil)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Printf("Atlas: %s\n\n", response)
	}

	return scanner.Err()
}
