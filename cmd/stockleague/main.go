// StockLeague — stock-trading leaderboard and portfolio tracking backend
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stockleague/stockleague/api"
	"github.com/stockleague/stockleague/internal/config"
	"github.com/stockleague/stockleague/internal/market"
	"github.com/stockleague/stockleague/internal/store"
	"github.com/stockleague/stockleague/internal/valuation"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stockleague",
	Short: "StockLeague — stock-trading leaderboard & portfolio tracking",
	Long: `StockLeague
A Go backend for a browser-based trading game: live and historical
prices, portfolio valuation, a tiered leaderboard, stock news, and a
DCF fair-value calculator.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		setupLogging(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(dcfCmd)
}

// setupLogging installs the default slog handler per configuration.
func setupLogging(cfg config.LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("StockLeague %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := market.NewPolygon(cfg.Market)
		prices := market.NewService(provider, cfg.Market)
		news := market.NewNews(cfg.News)

		st, err := buildStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = st.Close(closeCtx)
		}()

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		slog.Info("starting API server",
			slog.String("addr", addr),
			slog.String("provider", provider.Name()))

		return api.NewServer(cfg, prices, news, st).ListenAndServe(addr)
	},
}

// buildStore selects the document store: MongoDB when a URI is
// configured, in-memory otherwise.
func buildStore(ctx context.Context) (store.PortfolioStore, error) {
	if cfg.Mongo.URI == "" {
		slog.Warn("no mongo URI configured, portfolios will not survive restarts")
		return store.NewMemoryStore(), nil
	}

	st, err := store.NewMongoStore(ctx, cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	slog.Info("connected to MongoDB", slog.String("database", cfg.Mongo.Database))
	return st, nil
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  StockLeague — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:      %s (%s)\n", version, commit)
		fmt.Println()

		// Config summary
		fmt.Println("  Configuration:")
		fmt.Printf("    Market Data:  %s\n", cfg.Market.BaseURL)
		fmt.Printf("    Store:        %s\n", storeKind())
		fmt.Printf("    API Server:   %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Printf("    Tiers:        S≥%.0f%%  A≥%.0f%%  B≥%.0f%%\n",
			cfg.Leaderboard.TierS, cfg.Leaderboard.TierA, cfg.Leaderboard.TierB)
		fmt.Println()

		// API keys status
		fmt.Println("  API Keys:")
		keys := config.CheckAPIKeys(cfg)
		for _, k := range keys {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

func storeKind() string {
	if cfg.Mongo.URI == "" {
		return "in-memory"
	}
	return "mongodb (" + cfg.Mongo.Database + ")"
}

// --- DCF Command ---

var dcfCmd = &cobra.Command{
	Use:   "dcf",
	Short: "Run the DCF fair-value model from the command line",
	Long: `Run the five-year two-stream DCF model with explicit parameters.

Monetary flags are in millions of USD, shares in millions, and rates
and margins in percent.

Example:
  stockleague dcf --revenue 920 --margin 80 \
    --commodity-price 35 --commodity-volume 2.2 --second-margin 35 \
    --net-debt 787 --capex 50 --risk-free 4.5 --premium 3.5 \
    --multiple 15 --shares 520 --market-price 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := valuation.Input{}
		in.TargetRevenue, _ = cmd.Flags().GetFloat64("revenue")
		in.OperatingMargin, _ = cmd.Flags().GetFloat64("margin")
		in.CommodityPrice, _ = cmd.Flags().GetFloat64("commodity-price")
		in.CommodityVolume, _ = cmd.Flags().GetFloat64("commodity-volume")
		in.SecondMargin, _ = cmd.Flags().GetFloat64("second-margin")
		in.NetDebt, _ = cmd.Flags().GetFloat64("net-debt")
		in.CapEx, _ = cmd.Flags().GetFloat64("capex")
		in.RiskFreeRate, _ = cmd.Flags().GetFloat64("risk-free")
		in.RiskPremium, _ = cmd.Flags().GetFloat64("premium")
		in.TerminalMultiple, _ = cmd.Flags().GetFloat64("multiple")
		in.SharesOutstanding, _ = cmd.Flags().GetFloat64("shares")
		in.MarketPrice, _ = cmd.Flags().GetFloat64("market-price")

		if in.SharesOutstanding <= 0 {
			return fmt.Errorf("--shares must be positive")
		}
		if cmd.Flags().Changed("tax") {
			in.TaxRate, _ = cmd.Flags().GetFloat64("tax")
		} else {
			in.TaxRate = valuation.DefaultTaxRate
		}

		res := valuation.Compute(in)

		fmt.Println("═══════════════════════════════════════════════════════")
		fmt.Println("  DCF Projection ($M)")
		fmt.Println("═══════════════════════════════════════════════════════")
		fmt.Printf("  %-6s %12s %12s %12s %12s\n", "Year", "Revenue", "Op.Income", "FCF", "Disc.FCF")
		for y := 0; y < valuation.Horizon; y++ {
			fmt.Printf("  %-6d %12.1f %12.1f %12.1f %12.1f\n",
				y+1, res.Revenues[y], res.OperatingIncome[y], res.FCF[y], res.DiscountedFCF[y])
		}
		fmt.Println("  ─────────────────────────────────────────────────────")
		fmt.Printf("  Terminal value (disc.):  %12.1f\n", res.TerminalValue)
		fmt.Printf("  Enterprise value:        %12.1f\n", res.EnterpriseValue)
		fmt.Printf("  Equity value:            %12.1f\n", res.EquityValue)
		fmt.Printf("  Fair price per share:    %12.2f\n", res.FairPrice)
		if in.MarketPrice > 0 {
			fmt.Printf("  vs market %.2f:          %+11.1f%%\n", in.MarketPrice, res.DeltaPercent)
		}
		fmt.Println("═══════════════════════════════════════════════════════")
		return nil
	},
}

func init() {
	dcfCmd.Flags().Float64("revenue", 0, "terminal-year run-rate revenue of the primary stream ($M)")
	dcfCmd.Flags().Float64("margin", 0, "primary stream operating margin (%)")
	dcfCmd.Flags().Float64("commodity-price", 0, "per-unit price of the second stream ($)")
	dcfCmd.Flags().Float64("commodity-volume", 0, "second stream volume at full run-rate (M units)")
	dcfCmd.Flags().Float64("second-margin", 0, "second stream operating margin (%)")
	dcfCmd.Flags().Float64("net-debt", 0, "net debt ($M)")
	dcfCmd.Flags().Float64("capex", 0, "annual capital expenditure ($M)")
	dcfCmd.Flags().Float64("risk-free", 4.5, "risk-free rate (%)")
	dcfCmd.Flags().Float64("premium", 3.5, "equity risk premium (%)")
	dcfCmd.Flags().Float64("multiple", 15, "terminal exit multiple on final-year FCF")
	dcfCmd.Flags().Float64("shares", 0, "shares outstanding (M)")
	dcfCmd.Flags().Float64("tax", valuation.DefaultTaxRate, "flat tax rate on positive operating income (%)")
	dcfCmd.Flags().Float64("market-price", 0, "current market price per share ($)")
}
