// litesql opens a SQLite database through the guarded connection wrapper
// and runs statements against it.
//
// Without -e, -f or -check it starts an interactive shell. Connection
// events and statement metrics are forwarded to MQTT and InfluxDB when
// those sinks are enabled in the configuration.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nerrad567/litesql/internal/infrastructure/config"
	"github.com/nerrad567/litesql/internal/infrastructure/database"
	"github.com/nerrad567/litesql/internal/infrastructure/influxdb"
	"github.com/nerrad567/litesql/internal/infrastructure/logging"
	"github.com/nerrad567/litesql/internal/infrastructure/mqtt"
	"github.com/nerrad567/litesql/internal/monitor"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// configEnvVar names the config file when -config is not given.
const configEnvVar = "LITESQL_CONFIG"

// cliOptions holds parsed command-line flags.
type cliOptions struct {
	configPath  string
	dbName      string
	dbSet       bool
	statements  []string
	scriptPath  string
	check       bool
	showVersion bool
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, "; ")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	if err := run(ctx, opts, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses args into cliOptions. Usage and errors go to errOut.
func parseFlags(args []string, errOut io.Writer) (cliOptions, error) {
	var opts cliOptions
	var statements stringList

	fs := flag.NewFlagSet("litesql", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&opts.configPath, "config", "", "path to YAML config file (default $"+configEnvVar+")")
	fs.StringVar(&opts.dbName, "db", "", "database file; empty or :memory: for in-memory (overrides config)")
	fs.Var(&statements, "e", "execute a statement and exit (repeatable)")
	fs.StringVar(&opts.scriptPath, "f", "", "execute a SQL script file and exit")
	fs.BoolVar(&opts.check, "check", false, "report connectivity and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "db" {
			opts.dbSet = true
		}
	})
	opts.statements = statements

	return opts, nil
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context, opts cliOptions, in io.Reader, out io.Writer) error {
	if opts.showVersion {
		fmt.Fprintf(out, "litesql %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	log := logging.Default()
	log.Debug("starting litesql", "version", version, "commit", commit)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.dbSet {
		cfg.Database.Name = opts.dbName
	}

	log = logging.New(cfg.Logging, version)
	log.Debug("configuration loaded", "database", cfg.Database.Name)

	var publisher monitor.EventPublisher
	var metrics monitor.MetricWriter

	if cfg.MQTT.Enabled {
		pub, err := mqtt.Connect(cfg.MQTT, log)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			if closeErr := pub.Close(); closeErr != nil {
				log.Warn("error closing MQTT", "error", closeErr)
			}
		}()
		publisher = pub
		log.Info("publishing connection events",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"topics", pub.Topics().AllConnectionEvents(),
		)
	}

	if cfg.InfluxDB.Enabled {
		rec, err := influxdb.Connect(cfg.InfluxDB, func(err error) {
			log.Warn("InfluxDB write error", "error", err)
		})
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer rec.Close()
		metrics = rec
		log.Info("recording statement metrics", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	mon := monitor.New(publisher, metrics)
	mon.SetLogger(log)
	tracker := &statementTracker{next: mon}

	conn := database.Open(ctx, cfg.Database.Name,
		database.WithLogger(log),
		database.WithObserver(tracker),
		database.WithOutput(out),
		database.WithBusyTimeout(time.Duration(cfg.Database.BusyTimeout)*time.Second),
		database.WithForeignKeys(cfg.Database.ForeignKeys),
		database.WithJournalMode(cfg.Database.JournalMode),
	)
	defer closeConnection(conn, log)

	if !conn.IsConnected() {
		return fmt.Errorf("opening database: %w", conn.Err())
	}

	switch {
	case opts.check:
		fmt.Fprintf(out, "connected to %s\n", displayName(conn.Name()))
		return nil

	case opts.scriptPath != "":
		script, err := os.ReadFile(opts.scriptPath)
		if err != nil {
			return fmt.Errorf("reading script: %w", err)
		}
		if err := conn.ExecuteScript(ctx, string(script)); err != nil {
			return fmt.Errorf("%s: rc %d: %w", opts.scriptPath, int(database.StatusOf(err)), err)
		}
		return nil

	case len(opts.statements) > 0:
		var failed []error
		for _, stmt := range opts.statements {
			if err := runStatements(ctx, conn, tracker, out, stmt); err != nil {
				failed = append(failed, err)
			}
		}
		return errors.Join(failed...)
	}

	sh := newShell(conn, tracker, in, out)
	return sh.run(ctx)
}

// loadConfig reads path, falling back to $LITESQL_CONFIG and then to the
// built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv(configEnvVar)
	}
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

// closeConnection closes conn on exit. A transaction left open by the
// session makes Close refuse; it is then discarded with Release.
func closeConnection(conn *database.Connection, log *logging.Logger) {
	if !conn.IsConnected() {
		return
	}

	if err := conn.Close(); err != nil {
		log.Error("error closing database", "name", conn.Name(), "error", err)
	}

	if conn.IsConnected() {
		log.Warn("transaction still open on exit, discarding it", "name", conn.Name())
		if err := conn.Release(); err != nil {
			log.Error("error releasing database", "name", conn.Name(), "error", err)
		}
	}
}

func displayName(name string) string {
	if name == "" {
		return ":memory:"
	}
	return name
}
