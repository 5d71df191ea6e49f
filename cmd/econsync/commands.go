package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	log "github.com/sirupsen/logrus"

	"EconSync/internal/migrate"
	"EconSync/internal/notifier"
	"EconSync/internal/recorder"
	"EconSync/internal/syncer"
)

var commands = []subcommands.Command{
	&syncCmd{},
	&cleanCmd{},
	&yoyCmd{},
	&checkCmd{},
	&historyCmd{},
	&rescaleCmd{},
}

type syncCmd struct {
	series string
	force  bool
	quiet  bool
}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "fetch new observations and update all series files" }
func (*syncCmd) Usage() string {
	return `econsync sync [-series a,b] [-force] [-quiet]

  Checks and repairs the data files, cleans every series, fetches the
  observations newer than each file's latest date, derives the YoY files
  and sends a Telegram summary when a bot is configured.
`
}

func (c *syncCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.series, "series", "", "Comma separated series names to sync (default: all)")
	f.BoolVar(&c.force, "force", false, "Fetch even when a series cadence is not due")
	f.BoolVar(&c.quiet, "quiet", false, "Do not send a Telegram summary")
}

func (c *syncCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	rec := recorder.Open(cfg.Database.SQLitePath)
	defer rec.Close()

	s, err := newSyncer(cfg, rec, c.series)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	s.IgnoreCadence = c.force

	sum, err := s.RunAll(ctx)
	printRuns(sum.Runs)

	if cfg.Telegram.BotToken != "" && !c.quiet {
		tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		if nerr := tn.SendWithRetry(ctx, notifier.FormatRunSummary(sum), 2); nerr != nil {
			log.WithError(nerr).Warn("telegram summary not sent")
		}
	}
	if err != nil {
		log.WithError(err).Errorf("%d series failed", sum.Failed())
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printRuns(runs []*recorder.RunRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERIES\tSTATUS\tFETCHED\tADDED\tUPDATED\tOUTLIERS\tTOTAL\tNOTE")
	for _, r := range runs {
		note := r.Reason
		if r.Error != "" {
			note = r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Series, r.Status, r.Fetched, r.Added, r.Updated, len(r.Outliers), r.Kept, note)
	}
	w.Flush()
}

type cleanCmd struct {
	series string
}

func (*cleanCmd) Name() string     { return "clean" }
func (*cleanCmd) Synopsis() string { return "deduplicate, range-filter and sort the series files" }
func (*cleanCmd) Usage() string {
	return `econsync clean [-series a,b]
`
}

func (c *cleanCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.series, "series", "", "Comma separated series names to clean (default: all)")
}

func (c *cleanCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	s, err := newSyncer(cfg, nil, c.series)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	results, err := s.CleanAll(ctx)
	for _, r := range results {
		fmt.Printf("%-20s kept %d, removed %d duplicates and %d outliers\n",
			r.Series, r.Report.Kept, r.Report.Duplicates, len(r.Report.Outliers))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type yoyCmd struct {
	series string
}

func (*yoyCmd) Name() string     { return "yoy" }
func (*yoyCmd) Synopsis() string { return "derive the year-over-year files" }
func (*yoyCmd) Usage() string {
	return `econsync yoy [-series a,b]

  Rewrites the yoy_file of every series that declares one.
`
}

func (c *yoyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.series, "series", "", "Comma separated series names (default: all with a yoy_file)")
}

func (c *yoyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	s, err := newSyncer(cfg, nil, c.series)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	status := subcommands.ExitSuccess
	for _, sc := range s.Series {
		if sc.YoYFile == "" {
			continue
		}
		n, err := s.DeriveYoY(ctx, sc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", sc.Name, err)
			status = subcommands.ExitFailure
			continue
		}
		fmt.Printf("%-20s %d points -> %s\n", sc.Name, n, sc.YoYFile)
	}
	return status
}

type checkCmd struct {
	repair bool
}

func (*checkCmd) Name() string     { return "check" }
func (*checkCmd) Synopsis() string { return "verify that every data file decodes" }
func (*checkCmd) Usage() string {
	return `econsync check [-repair]

  Reports data files that do not decode. With -repair, a truncated file is
  recovered when possible; the original is kept as <file>.bak.
`
}

func (c *checkCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.repair, "repair", false, "Attempt to repair corrupt files")
}

func (c *checkCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	s, err := newSyncer(cfg, nil, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	status := subcommands.ExitSuccess
	for _, r := range s.CheckIntegrity(ctx, c.repair) {
		switch {
		case r.Repaired:
			fmt.Printf("%-28s repaired\n", r.File)
		case r.OK:
			fmt.Printf("%-28s ok\n", r.File)
		default:
			fmt.Printf("%-28s CORRUPT: %v\n", r.File, r.Err)
			status = subcommands.ExitFailure
		}
	}
	return status
}

type historyCmd struct {
	series string
	limit  int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list recent sync runs" }
func (*historyCmd) Usage() string {
	return `econsync history [-series name] [-n 20]
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.series, "series", "", "Only show runs of this series")
	f.IntVar(&c.limit, "n", 20, "Number of runs to show")
}

func (c *historyCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	rec, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer rec.Close()

	runs, err := rec.RecentRuns(c.series, c.limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSERIES\tSTATUS\tFROM\tFETCHED\tADDED\tOUTLIERS\tTOOK\tRUN")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"), r.Series, r.Status, r.From,
			r.Fetched, r.Added, len(r.Outliers), r.Duration().Round(time.Second), r.RunID)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type rescaleCmd struct {
	refs   string
	dryRun bool
}

func (*rescaleCmd) Name() string     { return "rescale" }
func (*rescaleCmd) Synopsis() string { return "convert a series to the unit of a set of reference values" }
func (*rescaleCmd) Usage() string {
	return `econsync rescale -refs <file.json> [-n] <series>

  Multiplies every value of the series by the mean ratio between the
  reference values and the stored ones, then applies the reference points.
  The previous file is copied to <file>.bak_YYYYMMDDHHMMSS first.
`
}

func (c *rescaleCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.refs, "refs", "", "JSON file with reference observations (required)")
	f.BoolVar(&c.dryRun, "n", false, "Print the scale factor without writing")
}

func (c *rescaleCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.refs == "" || f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	sc, ok := cfg.Find(f.Arg(0))
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown series %q\n", f.Arg(0))
		return subcommands.ExitUsageError
	}
	s := syncer.New(cfg, nil)

	refs, err := migrate.LoadReferences(c.refs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	data, err := s.Store.Load(sc.File)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	res, err := migrate.Rescale(data, refs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", sc.Name, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%s: factor %.4f from %d reference points, %d overwritten, %d appended\n",
		sc.Name, res.Factor, res.Matched, res.Overwritten, res.Appended)
	if c.dryRun {
		return subcommands.ExitSuccess
	}

	backup, err := s.Store.Backup(sc.File, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := s.Store.Save(sc.File, res.Data); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	log.WithFields(log.Fields{"series": sc.Name, "backup": backup}).Info("series rescaled")
	return subcommands.ExitSuccess
}
