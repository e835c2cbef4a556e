package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/esche888/appcollab-sub000/internal/completion"
	"github.com/esche888/appcollab-sub000/internal/models"
	"github.com/esche888/appcollab-sub000/internal/storage"
	"github.com/esche888/appcollab-sub000/internal/utils"
)

var (
	modelUpdatedBy string
	usageSince     time.Duration
	completeVars   []string
	completeCaller string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the active model and usage tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := requireDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(cmd.Context()); err != nil {
			return err
		}
		utils.NewLogger("migrate").Info("Schema is up to date")
		return nil
	},
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured AI providers and which one is active",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cfg, modeCLI)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tAVAILABLE\tACTIVE")
		for _, st := range a.service.ProviderStatuses(cmd.Context()) {
			fmt.Fprintf(tw, "%s\t%s\t%t\t%t\n", st.ID, st.DisplayName, st.Available, st.Active)
		}
		return tw.Flush()
	},
}

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Show or change the active model",
}

var modelGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the model that would serve the next request",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cfg, modeCLI)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		res, err := a.service.GetActiveModel(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

var modelSetCmd = &cobra.Command{
	Use:   "set <claude|openai|gemini>",
	Short: "Persist a new active model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, modeCLI)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		if a.db == nil {
			return &completion.ConfigurationError{Message: "database.url must be set to persist the active model"}
		}

		setting, err := a.service.SetActiveModel(cmd.Context(), args[0], modelUpdatedBy)
		if err != nil {
			return err
		}
		return printJSON(cmd, setting)
	},
}

var modelHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent active model changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := requireDB()
		if err != nil {
			return err
		}
		defer db.Close()

		history, err := db.NewActiveModelRepository().History(cmd.Context(), 20)
		if err != nil {
			return err
		}
		return printJSON(cmd, history)
	},
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Summarize AI usage per model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := requireDB()
		if err != nil {
			return err
		}
		defer db.Close()

		summaries, err := db.NewUsageRepository().SummaryByModel(cmd.Context(), time.Now().Add(-usageSince))
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MODEL\tREQUESTS\tTOKENS\tAVG MS")
		for _, s := range summaries {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%.0f\n", s.ModelIdentifier, s.Requests, s.TotalTokens, s.AvgResponseTimeMS)
		}
		return tw.Flush()
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete <prompt-type>",
	Short: "Run one completion against the active model",
	Long: `Render a prompt template with --var name=value pairs and send it to the
active model. Usage is recorded like any other request.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vars, err := parseVars(completeVars)
		if err != nil {
			return err
		}

		a, err := newApp(cfg, modeCLI)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		result, err := a.service.GenerateCompletion(cmd.Context(), completion.Request{
			PromptType: models.PromptType(args[0]),
			Variables:  vars,
			CallerID:   completeCaller,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	},
}

func init() {
	modelSetCmd.Flags().StringVar(&modelUpdatedBy, "by", os.Getenv("USER"), "Administrator recorded as making the change")
	modelCmd.AddCommand(modelGetCmd, modelSetCmd, modelHistoryCmd)

	usageCmd.Flags().DurationVar(&usageSince, "since", 24*time.Hour, "Reporting window")

	completeCmd.Flags().StringArrayVar(&completeVars, "var", nil, "Template variable as name=value (repeatable)")
	completeCmd.Flags().StringVar(&completeCaller, "caller", "cli", "Caller recorded in the usage log")
}

// requireDB opens the database for commands that cannot run without one
func requireDB() (*storage.DB, error) {
	if cfg.Database.URL == "" {
		return nil, &completion.ConfigurationError{Message: "database.url is not set"}
	}
	dbCfg := storage.DefaultDBConfig()
	dbCfg.URL = cfg.Database.URL
	dbCfg.QueryTimeout = cfg.Database.QueryTimeout
	return storage.NewDB(dbCfg)
}

func parseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q, expected name=value", pair)
		}
		vars[name] = value
	}
	return vars, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
