// Command romctl inspects and maintains the data rom keeps in Redis or Bolt.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/iter"
	"github.com/spf13/pflag"

	"github.com/andreyvit/rom"
	"github.com/andreyvit/rom/redisstore"
)

type command struct {
	name  string
	args  string
	help  string
	nargs int
	run   func(ctx context.Context, db *rom.DB, w io.Writer, args []string) error
}

var commands = []*command{
	{"namespaces", "", "list namespaces with record counts", 0, runNamespaces},
	{"peek", "<ns>", "show key counts and the next id of a namespace", 1, runPeek},
	{"next", "<ns>", "print the id the next insert will get", 1, runNext},
	{"dump", "<ns>", "print raw record hashes and index sets", 1, runDump},
	{"destroy", "<ns>", "delete every key of a namespace", 1, runDestroy},
}

func commandsUsage() string {
	var buf strings.Builder
	for _, c := range commands {
		fmt.Fprintf(&buf, "  %-11s %-5s %s\n", c.name, c.args, c.help)
	}
	return buf.String()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if errors.Is(err, pflag.ErrHelp) {
		return
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "romctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, w io.Writer) error {
	cfg, args, err := loadConfig(args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("missing command\n\nCommands:\n%s", commandsUsage())
	}
	var cmd *command
	for _, c := range commands {
		if c.name == args[0] {
			cmd = c
		}
	}
	if cmd == nil {
		return fmt.Errorf("unknown command %q", args[0])
	}
	if len(args)-1 != cmd.nargs {
		return fmt.Errorf("usage: romctl %s %s", cmd.name, cmd.args)
	}

	logger := newLogger(cfg.LogLevel)
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	db := rom.Open(store, rom.Options{
		Config:  &rom.Config{Prefix: cfg.Prefix},
		Logf:    logf(logger),
		Verbose: cfg.Verbose,
	})
	start := time.Now()
	err = cmd.run(ctx, db, w, args[1:])
	st := db.Stats()
	logger.Debug().Str("cmd", cmd.name).Dur("elapsed", time.Since(start)).
		Uint64("reads", st.Reads).Uint64("writes", st.Writes).Uint64("replaces", st.Replaces).
		Msg("done")
	return err
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).Level(lvl).With().Timestamp().Logger()
}

func logf(logger zerolog.Logger) func(format string, args ...any) {
	return func(format string, args ...any) {
		logger.Debug().Msgf(format, args...)
	}
}

func openStore(cfg *Config) (rom.Store, func(), error) {
	if cfg.Bolt != "" {
		s, err := rom.OpenBoltStore(cfg.Bolt, rom.BoltOptions{})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis})
	return redisstore.New(rdb), func() { rdb.Close() }, nil
}

func runNamespaces(ctx context.Context, db *rom.DB, w io.Writer, args []string) error {
	namespaces, err := db.Namespaces(ctx)
	if err != nil {
		return err
	}
	stats, err := iter.MapErr(namespaces, func(ns *string) (rom.NamespaceStats, error) {
		return db.NamespaceStats(ctx, *ns)
	})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAMESPACE\tRECORDS\tKEYS")
	for _, st := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", st.Namespace, st.Records, st.TotalKeys)
	}
	return tw.Flush()
}

func runPeek(ctx context.Context, db *rom.DB, w io.Writer, args []string) error {
	st, err := db.NamespaceStats(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "namespace:  %s\n", st.Namespace)
	fmt.Fprintf(w, "records:    %d\n", st.Records)
	fmt.Fprintf(w, "index sets: %d\n", st.IndexSets)
	fmt.Fprintf(w, "other keys: %d\n", st.OtherKeys)
	fmt.Fprintf(w, "next id:    %d\n", st.NextID)
	return nil
}

func runNext(ctx context.Context, db *rom.DB, w io.Writer, args []string) error {
	st, err := db.NamespaceStats(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(w, st.NextID)
	return nil
}

func runDump(ctx context.Context, db *rom.DB, w io.Writer, args []string) error {
	s, err := db.DumpNamespace(ctx, args[0], rom.DumpAll)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s)
	return err
}

func runDestroy(ctx context.Context, db *rom.DB, w io.Writer, args []string) error {
	if err := db.DestroyNamespace(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(w, "destroyed %s\n", args[0])
	return nil
}
