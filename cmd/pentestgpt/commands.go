// File path: cmd/pentestgpt/commands.go
package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
	"github.com/nicodishanthj/pentestgpt/internal/config"
	"github.com/nicodishanthj/pentestgpt/internal/prompt"
	"github.com/nicodishanthj/pentestgpt/internal/sqlite"
)

func newPromptCommand() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "prompt [name]",
		Short: "Print a rendered system prompt",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list || len(args) == 0 {
				for _, name := range prompt.Names() {
					fmt.Fprintln(out, name)
				}
				return nil
			}
			app, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			text, err := prompt.BuildSystemPrompts(app.Prompts, time.Now()).Lookup(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list prompt names")
	return cmd
}

func newProfileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage API profiles",
	}
	var (
		plan           string
		profileContext string
		sqlitePath     string
	)
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a profile and print its bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if trimmed := strings.TrimSpace(sqlitePath); trimmed != "" {
				app.SQLitePath = trimmed
			}
			store, err := sqlite.Open(app.SQLitePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()
			profile, err := store.CreateProfile(cmd.Context(), chat.Profile{
				Username:       args[0],
				Plan:           plan,
				ProfileContext: profileContext,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]string{
				"user_id":  profile.UserID,
				"username": profile.Username,
				"plan":     profile.Plan,
				"token":    profile.Token,
			})
		},
	}
	add.Flags().StringVar(&plan, "plan", "free", "plan name (free or pro)")
	add.Flags().StringVar(&profileContext, "context", "", "profile context included in system prompts")
	add.Flags().StringVar(&sqlitePath, "sqlite", "", "path to the SQLite database")
	cmd.AddCommand(add)
	return cmd
}
