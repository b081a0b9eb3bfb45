package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mavrika/mavrika/internal/knowledge"
)

var (
	flagKBType    string
	flagKBCompany string
	flagKBLimit   int
	flagKBStrict  bool
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the knowledge base",
}

var kbAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Store a document",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		metadata := map[string]string{}
		if flagKBType != "" {
			metadata[knowledge.MetaType] = flagKBType
		}
		if flagKBCompany != "" {
			metadata[knowledge.MetaCompanyID] = flagKBCompany
		}

		id, err := a.Knowledge.AddDocument(ctx, strings.Join(args, " "), metadata)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var kbSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search documents by similarity",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		opts := []knowledge.SearchOption{knowledge.WithLimit(flagKBLimit)}
		if flagKBType != "" {
			opts = append(opts, knowledge.WithType(flagKBType))
		}
		if flagKBCompany != "" {
			opts = append(opts, knowledge.WithFilter(knowledge.MetaCompanyID, flagKBCompany))
		}

		query := strings.Join(args, " ")
		var results []knowledge.Result
		if flagKBStrict {
			results, err = a.Knowledge.SearchStrict(ctx, query, opts...)
			if err != nil {
				return err
			}
		} else {
			results = a.Knowledge.Search(ctx, query, opts...)
		}

		if len(results) == 0 {
			fmt.Println("no results")
			return nil
		}
		for _, r := range results {
			fmt.Printf("%.3f  %s  %s\n", r.Similarity, r.ID, firstLine(r.Content))
		}
		return nil
	},
}

var kbUpdateCmd = &cobra.Command{
	Use:   "update <id> <content>",
	Short: "Replace a document's content",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		return a.Knowledge.UpdateDocument(ctx, args[0], strings.Join(args[1:], " "), nil)
	},
}

var kbRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		return a.Knowledge.DeleteDocument(ctx, args[0])
	},
}

func init() {
	kbCmd.PersistentFlags().StringVar(&flagKBType, "type", "", "document type metadata")
	kbCmd.PersistentFlags().StringVar(&flagKBCompany, "company", "", "company id metadata")
	kbSearchCmd.Flags().IntVar(&flagKBLimit, "limit", knowledge.DefaultSearchLimit, "maximum results")
	kbSearchCmd.Flags().BoolVar(&flagKBStrict, "strict", false, "fail on search errors instead of returning empty")

	kbCmd.AddCommand(kbAddCmd, kbSearchCmd, kbUpdateCmd, kbRmCmd)
	rootCmd.AddCommand(kbCmd)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:80] + "..."
	}
	return s
}
