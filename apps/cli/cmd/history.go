package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/webtask/packages/history"
)

var (
	flagHistoryDB string
	flagHistoryN  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently recorded exchanges",
	Long: `List exchanges recorded to the history database, newest first.
The database path comes from --db or the profile's history_db setting.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := flagHistoryDB
		if path == "" && flagConfig != "" {
			env, err := buildSession()
			if err != nil {
				return err
			}
			path = env.profile.HistoryDB
			env.close()
		}
		if path == "" {
			return fmt.Errorf("no history database configured; pass --db or set history_db in the profile")
		}

		store, err := history.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		recent, err := store.Recent(flagHistoryN)
		if err != nil {
			return err
		}

		for _, e := range recent {
			status := fmt.Sprintf("%d", e.StatusCode)
			if e.Error != "" {
				status = "ERR " + e.Error
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-6s %-40s %s  %s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"), e.Method, e.Path, status, e.Duration)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&flagHistoryDB, "db", "", "path to the history database")
	historyCmd.Flags().IntVarP(&flagHistoryN, "limit", "n", 20, "number of exchanges to list")
}
