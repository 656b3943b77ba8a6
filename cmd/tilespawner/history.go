package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/samdwyer/tilespawner/internal/config"
	"github.com/samdwyer/tilespawner/internal/store"
)

func historyCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dbPath := fs.String("db", "", "history database (defaults to the configured history_db)")
	configPath := fs.String("config", "", "YAML config file (optional)")
	limit := fs.Int("limit", 20, "number of walks to list")
	id := fs.Int64("id", 0, "show a single walk")
	_ = fs.Parse(args)

	path := *dbPath
	if path == "" {
		cfg := config.Default()
		if *configPath != "" {
			var err error
			if cfg, err = config.Load(*configPath); err != nil {
				return err
			}
		}
		if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
			return err
		}
		path = cfg.HistoryDB
	}

	st, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer st.Close()

	var runs []store.Run
	if *id != 0 {
		run, err := st.Get(ctx, *id)
		if err != nil {
			return err
		}
		runs = []store.Run{run}
	} else if runs, err = st.Recent(ctx, *limit); err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no walks recorded")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSOURCE\tSEED\tGRID\tTILES\tEXCURSIONS\tBACKTRACKS\tCOMPLETE\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%dx%d\t%d\t%d\t%d\t%v\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Source, r.Seed, r.Cols, r.Rows,
			r.Tiles, r.Excursions, r.Backtracks, r.Complete, r.Duration.Round(time.Millisecond))
	}
	return tw.Flush()
}
