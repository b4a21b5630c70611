// Command backtester is the CLI driver for the event-driven equity
// backtester: it loads an INI run configuration, parses the strategy's
// rule text, drives one backtest invocation, and writes the resulting
// report. It also exposes a REST mode for running backtests as a service.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/contactkeval/backtester/internal/backtest"
	"github.com/contactkeval/backtester/internal/backtesterr"
	"github.com/contactkeval/backtester/internal/config"
	"github.com/contactkeval/backtester/internal/data"
	"github.com/contactkeval/backtester/internal/logger"
	"github.com/contactkeval/backtester/internal/report"
	"github.com/contactkeval/backtester/internal/ruleparser"
	"github.com/contactkeval/backtester/internal/rule"
	"github.com/contactkeval/backtester/internal/universe"
)

// configError and dataSourceError tag a failure's origin so the top-level
// exit-code mapping (specification §6) can distinguish a bad config file
// or bad data-source connection from a core error — neither is a
// backtesterr.Kind, since both happen before the core runs.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

type dataSourceError struct{ err error }

func (e *dataSourceError) Error() string { return e.err.Error() }
func (e *dataSourceError) Unwrap() error { return e.err }

// dataSourceFlag is a pflag.Value bound directly onto each command's
// *pflag.FlagSet (via cmd.Flags().Var) so an unknown --data-source name is
// rejected at flag-parse time rather than surfacing later as a
// dataSourceError out of newDataSource.
type dataSourceFlag struct{ value *string }

var _ pflag.Value = dataSourceFlag{}

func (f dataSourceFlag) String() string { return *f.value }

func (f dataSourceFlag) Set(s string) error {
	switch s {
	case "", "synthetic", "csv", "postgres", "http":
		*f.value = s
		return nil
	default:
		return fmt.Errorf("data-source must be one of synthetic|csv|postgres|http, got %q", s)
	}
}

func (f dataSourceFlag) Type() string { return "string" }

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func newRootCmd() *cobra.Command {
	var verbosity int

	root := &cobra.Command{
		Use:          "backtester",
		Short:        "Event-driven backtester for rule-based equity strategies",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetVerbosity(verbosity)
		},
	}
	root.PersistentFlags().IntVarP(&verbosity, "verbosity", "v", int(logger.Info), "log verbosity: 0=error 1=info 2=debug 3=trace")

	root.AddCommand(newRunCmd(), newServeCmd(), newLintCmd())
	return root
}

// --- shared config/provider/strategy assembly -------------------------------

// loadStrategy parses the rule-text fields into a *backtest.Strategy.
// entry_short/exit_short are parsed only when allow_shorting is set; otherwise
// both stay nil and shorting is disabled for the run.
func loadStrategy(cfg *config.RunConfig) (*backtest.Strategy, error) {
	entryLong, err := ruleparser.Parse(cfg.EntryLong)
	if err != nil {
		return nil, backtesterr.Wrap(backtesterr.StrategyInvalid, err, "parsing entry_long")
	}
	exitLong, err := ruleparser.Parse(cfg.ExitLong)
	if err != nil {
		return nil, backtesterr.Wrap(backtesterr.StrategyInvalid, err, "parsing exit_long")
	}

	var entryShort, exitShort *rule.Rule
	allowShort := cfg.AllowShorting
	if allowShort {
		entryShort, err = ruleparser.Parse(cfg.EntryShort)
		if err != nil {
			return nil, backtesterr.Wrap(backtesterr.StrategyInvalid, err, "parsing entry_short")
		}
		exitShort, err = ruleparser.Parse(cfg.ExitShort)
		if err != nil {
			return nil, backtesterr.Wrap(backtesterr.StrategyInvalid, err, "parsing exit_short")
		}
	}

	name := cfg.Exchange + "-strategy"
	strat := backtest.NewStrategy(name, entryLong, exitLong, entryShort, exitShort,
		cfg.PositionSize, cfg.StopLossPct, cfg.TakeProfitPct, cfg.MaxPositions, allowShort)
	if err := strat.Validate(); err != nil {
		return nil, err
	}
	return strat, nil
}

func newDataSource(name, csvDir, postgresDSN, httpBaseURL string, seed int64) (universe.DataPort, error) {
	switch name {
	case "", "synthetic":
		return data.NewSyntheticProvider(seed), nil
	case "csv":
		return data.NewCSVProvider(csvDir), nil
	case "postgres":
		p, err := data.NewPostgresProvider(postgresDSN)
		if err != nil {
			return nil, &dataSourceError{err}
		}
		return p, nil
	case "http":
		return data.NewHTTPProvider(httpBaseURL), nil
	default:
		return nil, &dataSourceError{fmt.Errorf("unknown data source %q", name)}
	}
}

func runBacktest(cfg *config.RunConfig, port universe.DataPort) (*backtest.Result, *backtest.Strategy, error) {
	strat, err := loadStrategy(cfg)
	if err != nil {
		return nil, nil, err
	}
	engCfg := backtest.Config{
		InitialCapital: cfg.InitialCapital,
		CommissionFlat: cfg.CommissionFlat,
		CommissionPct:  cfg.CommissionPct,
		SlippagePct:    cfg.SlippagePct,
		AllowShorting:  cfg.AllowShorting,
		RiskFreeRate:   cfg.RiskFreeRate,
		Start:          cfg.Start,
		End:            cfg.End,
		Exchange:       cfg.Exchange,
		Codes:          cfg.CodeList(),
	}
	eng := backtest.NewEngine(engCfg, port)
	res, err := eng.Run(strat)
	if err != nil {
		return nil, nil, err
	}
	return res, strat, nil
}

// --- run -------------------------------------------------------------------

func newRunCmd() *cobra.Command {
	var (
		configPath  string
		outputPath  string
		dataSource  string
		csvDir      string
		postgresDSN string
		httpBaseURL string
		seed        int64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one backtest from an INI config file and write a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return &configError{err}
			}
			port, err := newDataSource(dataSource, csvDir, postgresDSN, httpBaseURL, seed)
			if err != nil {
				return err
			}
			res, strat, err := runBacktest(cfg, port)
			if err != nil {
				return err
			}
			summary := report.BuildSummary(strat, res, cfg.RiskFreeRate, time.Now())
			if err := report.Write(summary, outputPath); err != nil {
				return backtesterr.Wrap(backtesterr.Internal, err, "writing report to %s", outputPath)
			}
			logger.Infof("wrote report to %s (%d closed trades)", outputPath, len(res.Portfolio.ClosedTrades))
			return nil
		},
	}

	dataSource = "synthetic"
	cmd.Flags().StringVar(&configPath, "config", "", "path to the INI run config (required)")
	cmd.Flags().StringVar(&outputPath, "output", "report.json", "output report path; extension selects format (.json/.csv/.typ)")
	cmd.Flags().Var(dataSourceFlag{&dataSource}, "data-source", "data source: synthetic|csv|postgres|http")
	cmd.Flags().StringVar(&csvDir, "csv-dir", ".", "directory of per-code CSV files (data-source=csv)")
	cmd.Flags().StringVar(&postgresDSN, "postgres-dsn", "", "Postgres connection string (data-source=postgres)")
	cmd.Flags().StringVar(&httpBaseURL, "http-base-url", "", "base URL of the bar-data HTTP service (data-source=http)")
	cmd.Flags().Int64Var(&seed, "seed", 1, "deterministic seed (data-source=synthetic)")
	cmd.MarkFlagRequired("config")

	return cmd
}

// --- lint --------------------------------------------------------------------

func newLintCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Validate an INI run config and its rule text without running a backtest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return &configError{err}
			}
			strat, err := loadStrategy(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "config and strategy are valid")
			keys := universe.CollectIndicatorKeys(strat)
			if len(keys) == 0 {
				fmt.Fprintln(out, "no indicators referenced")
				return nil
			}
			fmt.Fprintln(out, "indicators referenced:")
			for k := range keys {
				fmt.Fprintf(out, "  %s\n", k)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the INI run config (required)")
	cmd.MarkFlagRequired("config")
	return cmd
}

// --- serve -------------------------------------------------------------------

func newServeCmd() *cobra.Command {
	var (
		addr        string
		dataSource  string
		csvDir      string
		postgresDSN string
		httpBaseURL string
		seed        int64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run as a REST server accepting backtest jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := newDataSource(dataSource, csvDir, postgresDSN, httpBaseURL, seed)
			if err != nil {
				return err
			}
			router := newServer(port)
			logger.Infof("listening on %s", addr)
			return http.ListenAndServe(addr, router)
		},
	}
	dataSource = "synthetic"
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().Var(dataSourceFlag{&dataSource}, "data-source", "data source: synthetic|csv|postgres|http")
	cmd.Flags().StringVar(&csvDir, "csv-dir", ".", "directory of per-code CSV files (data-source=csv)")
	cmd.Flags().StringVar(&postgresDSN, "postgres-dsn", "", "Postgres connection string (data-source=postgres)")
	cmd.Flags().StringVar(&httpBaseURL, "http-base-url", "", "base URL of the bar-data HTTP service (data-source=http)")
	cmd.Flags().Int64Var(&seed, "seed", 1, "deterministic seed (data-source=synthetic)")
	return cmd
}

func newServer(port universe.DataPort) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/run", func(w http.ResponseWriter, r *http.Request) {
		var cfg config.RunConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, fmt.Sprintf("decoding request body: %v", err), http.StatusBadRequest)
			return
		}
		start, err := time.Parse("2006-01-02", cfg.StartDate)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid start_date: %v", err), http.StatusBadRequest)
			return
		}
		end, err := time.Parse("2006-01-02", cfg.EndDate)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid end_date: %v", err), http.StatusBadRequest)
			return
		}
		cfg.Start, cfg.End = start.UTC(), end.UTC()

		res, strat, err := runBacktest(&cfg, port)
		if err != nil {
			status := http.StatusInternalServerError
			if be, ok := backtesterr.As(err); ok && be.Kind == backtesterr.StrategyInvalid {
				status = http.StatusUnprocessableEntity
			}
			http.Error(w, err.Error(), status)
			return
		}
		summary := report.BuildSummary(strat, res, cfg.RiskFreeRate, time.Now())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(summary)
	}).Methods(http.MethodPost)

	return r
}

func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var ce *configError
	if errors.As(err, &ce) {
		return 2
	}
	var de *dataSourceError
	if errors.As(err, &de) {
		return 3
	}
	if be, ok := backtesterr.As(err); ok {
		return be.Kind.ExitCode()
	}
	return 1
}
