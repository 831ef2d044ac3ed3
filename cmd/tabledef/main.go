package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/koba/tabledef/internal/api"
	"github.com/koba/tabledef/internal/config"
	"github.com/koba/tabledef/internal/database"
	"github.com/koba/tabledef/internal/diff"
	"github.com/koba/tabledef/internal/generator"
	"github.com/koba/tabledef/internal/metadata"
	"github.com/koba/tabledef/internal/migrate"
	"github.com/koba/tabledef/internal/query"
	"github.com/koba/tabledef/internal/schema"
)

const (
	envPrefix       = "tabledef"
	shutdownTimeout = 10 * time.Second
)

var (
	configFile string
	dryRun     bool
	fromUnix   int64
	toUnix     int64
	fields     []string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "tabledef",
	Short:         "Declarative table definitions",
	Long:          `Render public metadata, migrate stores and query rows from a declarative table document.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the metadata document",
	Long:  `Render the public metadata document and publish it to the configured sinks.`,
	Args:  cobra.NoArgs,
	RunE:  runRender,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the table definitions",
	Long:  `Create every missing table, enum table, enum value and column in the configured store.`,
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what migrate would add",
	Long:  `Compare the table definitions with the configured store and list the missing objects.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Print rows as JSON",
	Long:  `Select rows of the configured view inside a time window and print them as JSON.`,
	Args:  cobra.NoArgs,
	RunE:  runQuery,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long:  `Render metadata, migrate the store and serve the metadata and query API.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "config.yaml", "Path to the yaml configuration file")

	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the SQL instead of executing it")

	queryCmd.Flags().Int64Var(&fromUnix, "from", 0, "Inclusive lower bound as unix seconds")
	queryCmd.Flags().Int64Var(&toUnix, "to", 0, "Exclusive upper bound as unix seconds")
	queryCmd.Flags().StringSliceVar(&fields, "fields", nil, "Comma-separated list of fields to return (default: all)")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(serveCmd)
}

type app struct {
	cfg config.Config
	log zerolog.Logger
	reg *schema.Registry
}

func setup() (*app, error) {
	parts, err := config.ProcessConfigPath(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process config path: %w", err)
	}

	cfg, err := config.NewFileSystemLoader().Load(parts.FileName, parts.Path, envPrefix, config.NewDefaultEnvBinder())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	reg, err := schema.LoadFile(cfg.Schema.Path)
	if err != nil {
		return nil, err
	}

	log.Info().Str("path", cfg.Schema.Path).Int("tables", reg.Len()).Msg("table definitions loaded")

	return &app{cfg: cfg, log: log, reg: reg}, nil
}

func (a *app) connect(ctx context.Context) (database.Database, error) {
	db, err := database.NewDatabase(a.cfg.Store.DatabaseConfig(), a.log)
	if err != nil {
		return nil, err
	}

	if err := db.Connect(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

func (a *app) sinks(ctx context.Context) ([]metadata.Sink, error) {
	var sinks []metadata.Sink

	if a.cfg.Metadata.Output != "" {
		sinks = append(sinks, metadata.NewFileSink(a.cfg.Metadata.Output))
	}

	if gcs := a.cfg.Metadata.GCS; gcs.Bucket != "" {
		sink, err := metadata.NewGCSSink(ctx, gcs.Bucket, gcs.Object, gcs.Endpoint, gcs.DisableAuth)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}

	return sinks, nil
}

func (a *app) render(ctx context.Context) (*metadata.Document, error) {
	doc := metadata.Render(a.reg)

	sinks, err := a.sinks(ctx)
	if err != nil {
		return nil, err
	}

	if err := metadata.Publish(ctx, doc, sinks...); err != nil {
		return nil, err
	}

	for _, sink := range sinks {
		a.log.Info().Str("sink", sink.String()).Int("tags", len(doc.Tags())).Msg("metadata published")
	}

	return doc, nil
}

func runRender(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}

	if _, err := a.render(cmd.Context()); err != nil {
		return fmt.Errorf("failed to render metadata: %w", err)
	}

	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}

	if dryRun {
		db, err := database.NewDatabase(a.cfg.Store.DatabaseConfig(), a.log)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "-- Table definitions from %s\n", a.cfg.Schema.Path)
		fmt.Fprintf(cmd.OutOrStdout(), "-- Generated at: %s\n\n", time.Now().Format(time.RFC3339))
		fmt.Fprint(cmd.OutOrStdout(), generator.GenerateSQL(a.reg, db.Dialect()))

		return nil
	}

	db, err := a.connect(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := migrate.New(db, a.log).Apply(cmd.Context(), a.reg); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}

	db, err := a.connect(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	snap, err := diff.Inspect(cmd.Context(), db, a.reg)
	if err != nil {
		return fmt.Errorf("failed to inspect store: %w", err)
	}

	diff.Display(cmd.OutOrStdout(), diff.Compare(a.reg, snap))

	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}

	db, err := a.connect(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	window := query.Window{Fields: fields}
	if cmd.Flags().Changed("from") {
		from := time.Unix(fromUnix, 0).UTC()
		window.From = &from
	}
	if cmd.Flags().Changed("to") {
		to := time.Unix(toUnix, 0).UTC()
		window.To = &to
	}

	svc := query.New(db, a.cfg.Query.View, a.cfg.Query.TimeColumn, a.log, query.WithFields(metadata.Render(a.reg)))

	result, err := svc.SelectWindow(cmd.Context(), window)
	if err != nil {
		return fmt.Errorf("failed to query: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	return enc.Encode(result)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	doc, err := a.render(ctx)
	if err != nil {
		return fmt.Errorf("failed to render metadata: %w", err)
	}

	db, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	migrateMetrics := migrate.NewMetrics()
	queryDuration := query.NewDurationMetric()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), queryDuration)
	promReg.MustRegister(migrateMetrics.Collectors()...)

	// the schema has to exist before the first query is served
	if _, err := migrate.New(db, a.log, migrate.WithMetrics(migrateMetrics)).Apply(ctx, a.reg); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	svc := query.New(db, a.cfg.Query.View, a.cfg.Query.TimeColumn, a.log,
		query.WithFields(doc),
		query.WithMetrics(queryDuration),
	)

	server := api.NewServer(a.cfg.Server.ListenAddr(), api.New(svc, doc, promReg, a.log))

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", server.Addr).Msg("listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
