// Command memctl is a CLI front end over the agentmem Engine, grounded on
// the teacher's cmd/sqvect main.go (package-level flag vars, var xCmd =
// &cobra.Command{...}, an openEngine() helper, init() wiring flags and
// subcommands, main() calling rootCmd.Execute()).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/agentmem"
	"github.com/liliang-cn/agentmem/pkg/embedding"
)

var (
	dataDir    string
	configFile string
	jsonOut    bool
)

var rootCmd = &cobra.Command{
	Use:   "memctl",
	Short: "CLI for the agentmem memory engine",
	Long:  `A command-line interface for adding, searching, and managing agent memories.`,
}

func openEngine() (*agentmem.Engine, error) {
	cfg, err := agentmem.LoadConfig(configFile, dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	embedder := embedding.NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimension)
	eng, err := agentmem.Open(cfg, embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return eng, nil
}

func printResult(v any, human func()) {
	if jsonOut {
		data, _ := json.MarshalIndent(v, "", "  ")
		fmt.Println(string(data))
		return
	}
	human()
}

var addCmd = &cobra.Command{
	Use:   "add <user-id> <utterance>",
	Short: "Ingest one utterance: extract facts and fragments, persist surviving facts",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, utterance := args[0], args[1]

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		ctx := context.Background()
		res, err := eng.Ingest(ctx, userID, utterance, time.Now())
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}

		printResult(res, func() {
			fmt.Printf("Added %d fact(s):\n", len(res.Added))
			for _, a := range res.Added {
				fmt.Printf("  [%s] %s (%s)\n", a.ID, a.Fact, a.Event)
			}
		})
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <user-id> <query>",
	Short: "Hybrid vector+keyword search over a user's memories",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, query := args[0], args[1]
		limit, _ := cmd.Flags().GetInt("limit")
		minScore, _ := cmd.Flags().GetFloat64("min-score")

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		ctx := context.Background()
		results, err := eng.Pool.Search(ctx, userID, query, limit, minScore)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		printResult(results, func() {
			fmt.Printf("Found %d result(s):\n", len(results))
			for i, r := range results {
				fmt.Printf("%d. %s (score: %.4f, vector: %.4f, keyword: %.4f)\n",
					i+1, r.Record.Text, r.Score, r.VectorScore, r.KeywordScore)
			}
		})
		return nil
	},
}

var sweepExpiredCmd = &cobra.Command{
	Use:   "sweep-expired",
	Short: "Remove every memory record past its expiry time",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		n, err := eng.Pool.SweepExpired(context.Background())
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}
		fmt.Printf("Swept %d expired record(s)\n", n)
		return nil
	},
}

var healthCheckCmd = &cobra.Command{
	Use:   "health-check",
	Short: "Report whether the Memory Pool's store is available",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		ok := eng.Pool.HealthCheck(context.Background())
		if jsonOut {
			data, _ := json.MarshalIndent(map[string]bool{"healthy": ok}, "", "  ")
			fmt.Println(string(data))
		} else if ok {
			fmt.Println("healthy")
		} else {
			fmt.Println("unavailable")
		}
		if !ok {
			os.Exit(1)
		}
		return nil
	},
}

var cardCmd = &cobra.Command{
	Use:   "card",
	Short: "Manage explicit memory cards",
}

var cardAddCmd = &cobra.Command{
	Use:   "add <user-id> <content>",
	Short: "Create or fold an explicit memory card",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, content := args[0], args[1]
		category, _ := cmd.Flags().GetString("category")

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		m, err := eng.ManagerFor(userID)
		if err != nil {
			return err
		}
		card, err := m.CreateMemoryCard(context.Background(), content, category, nil)
		if err != nil {
			return fmt.Errorf("create card failed: %w", err)
		}
		printResult(card, func() {
			fmt.Printf("Card [%s]: %s\n", card.ID, card.Content)
		})
		return nil
	},
}

var cardListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List a user's explicit memory cards",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := args[0]
		category, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetInt("limit")
		includeExpired, _ := cmd.Flags().GetBool("include-expired")

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		m, err := eng.ManagerFor(userID)
		if err != nil {
			return err
		}
		cards, err := m.ListMemoryCards(context.Background(), category, limit, includeExpired)
		if err != nil {
			return fmt.Errorf("list cards failed: %w", err)
		}
		printResult(cards, func() {
			fmt.Printf("%d card(s):\n", len(cards))
			for _, c := range cards {
				fmt.Printf("  [%s] (%s) %s\n", c.ID, c.Category, c.Content)
			}
		})
		return nil
	},
}

var cardDeleteCmd = &cobra.Command{
	Use:   "delete <user-id> <card-id>",
	Short: "Delete an explicit memory card",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, cardID := args[0], args[1]

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		m, err := eng.ManagerFor(userID)
		if err != nil {
			return err
		}
		if err := m.DeleteMemoryCard(context.Background(), cardID); err != nil {
			return fmt.Errorf("delete card failed: %w", err)
		}
		fmt.Printf("Card '%s' deleted\n", cardID)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "./agentmem-data", "Data directory for the vector store and per-user state")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a config file (yaml/json/toml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	searchCmd.Flags().Int("limit", 10, "Number of results")
	searchCmd.Flags().Float64("min-score", 0.0, "Minimum hybrid score threshold")

	cardAddCmd.Flags().String("category", "", "Card category")
	cardListCmd.Flags().String("category", "", "Filter by category")
	cardListCmd.Flags().Int("limit", 0, "Limit results (0 for unbounded)")
	cardListCmd.Flags().Bool("include-expired", false, "Include expired cards")

	cardCmd.AddCommand(cardAddCmd, cardListCmd, cardDeleteCmd)

	rootCmd.AddCommand(addCmd, searchCmd, sweepExpiredCmd, healthCheckCmd, cardCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
