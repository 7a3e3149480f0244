package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/theapemachine/mem0-go/pkg/memory"
	"github.com/theapemachine/mem0-go/pkg/message"
)

var (
	memoryScope scopeFlags
	topKFlag    int
	graphFlag   bool
	limitFlag   int
	roleFlag    string
	allFlag     bool

	memoryCmd = &cobra.Command{
		Use:   "memory",
		Short: "Manage stored memories",
		Long:  longMemory,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	memorySearchCmd = &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories of a scope",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newMemoryClient()
			if err != nil {
				return err
			}

			result, err := client.Search(cmd.Context(), strings.Join(args, " "), memoryScope.scope(), memory.SearchOptions{
				TopK:        topKFlag,
				EnableGraph: graphFlag,
			})
			if err != nil {
				return err
			}

			return printJSON(result)
		},
	}

	memoryAddCmd = &cobra.Command{
		Use:   "add [text]",
		Short: "Store a message in a scope",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newMemoryClient()
			if err != nil {
				return err
			}

			msg := message.Message{
				Role:    message.Role(roleFlag),
				Content: message.Text(strings.Join(args, " ")),
			}

			events, err := client.Add(cmd.Context(), []message.Message{msg}, memoryScope.scope(), memory.AddOptions{})
			if err != nil {
				return err
			}

			return printJSON(events)
		},
	}

	memoryUpdateCmd = &cobra.Command{
		Use:   "update [id] [text]",
		Short: "Replace the text of a memory",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newMemoryClient()
			if err != nil {
				return err
			}

			updated, err := client.Update(cmd.Context(), args[0], strings.Join(args[1:], " "), nil)
			if err != nil {
				return err
			}

			return printJSON(updated)
		},
	}

	memoryGetCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Show one memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newMemoryClient()
			if err != nil {
				return err
			}

			found, err := client.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printJSON(found)
		},
	}

	memoryListCmd = &cobra.Command{
		Use:   "list",
		Short: "List every memory of a scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newMemoryClient()
			if err != nil {
				return err
			}

			memories, err := client.GetAll(cmd.Context(), memoryScope.scope(), limitFlag)
			if err != nil {
				return err
			}

			return printJSON(memories)
		},
	}

	memoryDeleteCmd = &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete one memory, or every memory of a scope with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newMemoryClient()
			if err != nil {
				return err
			}

			if allFlag {
				return client.DeleteAll(cmd.Context(), memoryScope.scope())
			}

			if len(args) == 0 {
				return fmt.Errorf("a memory id or --all is required")
			}

			return client.Delete(cmd.Context(), args[0])
		},
	}

	memoryHistoryCmd = &cobra.Command{
		Use:   "history [id]",
		Short: "Show the revisions of a memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newMemoryClient()
			if err != nil {
				return err
			}

			entries, err := client.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printJSON(entries)
		},
	}
)

func init() {
	rootCmd.AddCommand(memoryCmd)

	for _, sub := range []*cobra.Command{
		memorySearchCmd, memoryAddCmd, memoryUpdateCmd, memoryGetCmd,
		memoryListCmd, memoryDeleteCmd, memoryHistoryCmd,
	} {
		memoryCmd.AddCommand(sub)
	}

	for _, scoped := range []*cobra.Command{memorySearchCmd, memoryAddCmd, memoryListCmd, memoryDeleteCmd} {
		memoryScope.register(scoped)
	}

	memorySearchCmd.Flags().IntVarP(&topKFlag, "top-k", "k", memory.DefaultTopK, "Number of memories to return")
	memorySearchCmd.Flags().BoolVar(&graphFlag, "graph", false, "Include graph relations")
	memoryAddCmd.Flags().StringVar(&roleFlag, "role", string(message.RoleUser), "Role of the stored message")
	memoryListCmd.Flags().IntVar(&limitFlag, "limit", 100, "Maximum number of memories")
	memoryDeleteCmd.Flags().BoolVar(&allFlag, "all", false, "Delete every memory of the scope")
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(out))

	return nil
}

var longMemory = `
Search, add, update and delete memories directly, without generating.

Examples:
  mem0-go memory search --user-id alice "where do I live"
  mem0-go memory add --user-id alice "I moved to Mumbai"
  mem0-go memory delete --all --user-id alice
`
