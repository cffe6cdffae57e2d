package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tomyanzhiyuan/ytmp3-scraper/common"
	"github.com/tomyanzhiyuan/ytmp3-scraper/config"
	"github.com/tomyanzhiyuan/ytmp3-scraper/download"
	"github.com/tomyanzhiyuan/ytmp3-scraper/engine"
	"github.com/tomyanzhiyuan/ytmp3-scraper/model"
	"github.com/tomyanzhiyuan/ytmp3-scraper/state"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ytmp3-scraper",
		Short:         "Discover a channel's videos and download them as audio or video",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")

	root.AddCommand(newDiscoverCmd(), newDownloadCmd(), newFilesCmd())
	return root
}

// setup loads configuration and configures the global logger.
func setup() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	return cfg, nil
}

// parseCriteria validates the --type and --timeframe flags.
func parseCriteria(videoType, timeFrame string) (model.FilterCriteria, error) {
	c := model.FilterCriteria{
		VideoType: model.VideoType(strings.ToLower(videoType)),
		TimeFrame: model.TimeFrame(strings.ToLower(timeFrame)),
	}
	switch c.VideoType {
	case model.VideoTypeAll, model.VideoTypeShortsOnly, model.VideoTypeLongOnly:
	default:
		return c, fmt.Errorf("invalid type '%s', must be one of: all, shorts, videos", videoType)
	}
	switch c.TimeFrame {
	case model.TimeFrameAll, model.TimeFrameLastWeek, model.TimeFrameLastMonth, model.TimeFrameLastYear:
	default:
		return c, fmt.Errorf("invalid timeframe '%s', must be one of: all, week, month, year", timeFrame)
	}
	return c, nil
}

// collectReferences merges positional references with those from a file.
func collectReferences(args []string, file string) ([]string, error) {
	refs := append([]string{}, args...)
	if file != "" {
		fromFile, err := common.ReadReferencesFromFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read references: %w", err)
		}
		refs = append(refs, fromFile...)
	}
	if len(refs) == 0 {
		return nil, errors.New("at least one channel reference is required")
	}
	return refs, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// discover runs one discovery to completion, logging progress every second.
func discover(ctx context.Context, e *engine.Engine, reference string, criteria model.FilterCriteria) (state.DiscoverySnapshot, error) {
	handle, err := e.StartDiscovery(reference, criteria)
	if err != nil {
		return state.DiscoverySnapshot{}, err
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	go func() {
		<-ctx.Done()
		_ = e.Cancel(handle)
	}()

	waitCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() {
		for {
			select {
			case <-waitCtx.Done():
				return
			case <-ticker.C:
				snap, err := e.GetDiscoveryProgress(handle)
				if err != nil {
					return
				}
				log.Info().
					Int("seen", snap.Progress.TotalSeen).
					Int("eligible", snap.Progress.EligibleSoFar).
					Str("current", snap.Progress.CurrentTitle).
					Msg("Discovering")
			}
		}
	}()

	snap, err := e.WaitDiscovery(context.Background(), handle)
	if err != nil {
		return snap, err
	}
	switch snap.Status {
	case state.RunError:
		return snap, fmt.Errorf("discovery of %s failed: %s", reference, snap.Error)
	case state.RunCancelled:
		return snap, context.Canceled
	}
	return snap, nil
}

func newDiscoverCmd() *cobra.Command {
	var (
		videoType string
		timeFrame string
		refFile   string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "discover [reference...]",
		Short: "List a channel's eligible videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria, err := parseCriteria(videoType, timeFrame)
			if err != nil {
				return err
			}
			refs, err := collectReferences(args, refFile)
			if err != nil {
				return err
			}
			cfg, err := setup()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()
			e, err := engine.NewFromConfig(ctx, cfg)
			if err != nil {
				return err
			}

			for _, ref := range refs {
				snap, err := discover(ctx, e, ref, criteria)
				if err != nil {
					log.Error().Err(err).Str("reference", ref).Msg("Discovery failed")
					return err
				}
				if err := printRecords(cmd.OutOrStdout(), snap, asJSON); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&videoType, "type", "all", "Video type: all, shorts, videos")
	cmd.Flags().StringVar(&timeFrame, "timeframe", "all", "Time frame: all, week, month, year")
	cmd.Flags().StringVar(&refFile, "file", "", "File with one channel reference per line")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

func printRecords(w io.Writer, snap state.DiscoverySnapshot, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	if snap.Channel != nil {
		fmt.Fprintf(w, "%s (%s): %d videos\n", snap.Channel.DisplayName, snap.Channel.ID, len(snap.Result))
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDURATION\tSHORT\tPUBLISHED\tTITLE")
	for _, rec := range snap.Result {
		published := "-"
		if rec.PublishedAt != nil {
			published = rec.PublishedAt.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", rec.ID, common.FormatISODuration(rec.DurationSeconds), rec.IsShort, published, rec.Title)
	}
	return tw.Flush()
}

func newDownloadCmd() *cobra.Command {
	var (
		videoType string
		timeFrame string
		only      []string
	)
	cmd := &cobra.Command{
		Use:   "download <reference>",
		Short: "Discover a channel and download its eligible videos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria, err := parseCriteria(videoType, timeFrame)
			if err != nil {
				return err
			}
			cfg, err := setup()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()
			e, err := engine.NewFromConfig(ctx, cfg)
			if err != nil {
				return err
			}

			snap, err := discover(ctx, e, args[0], criteria)
			if err != nil {
				return err
			}
			ids := only
			if len(ids) == 0 {
				for _, rec := range snap.Result {
					ids = append(ids, rec.ID)
				}
			}
			if len(ids) == 0 {
				log.Info().Msg("Nothing to download")
				return nil
			}
			jobs, err := e.JobsForVideos(snap.ID, ids)
			if err != nil {
				return err
			}

			handle, err := e.StartDownload(jobs)
			if err != nil {
				return err
			}
			go func() {
				<-ctx.Done()
				_ = e.Cancel(handle)
			}()

			result, err := e.WaitDownload(context.Background(), handle)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "downloaded %d, skipped %d, failed %d\n",
				len(result.Completed), len(result.Skipped), len(result.Failed))
			for _, o := range result.Outcomes {
				if o.Kind == model.OutcomeFailed {
					fmt.Fprintf(cmd.OutOrStdout(), "  failed: %s: %s\n", o.Title, o.Reason)
				}
			}
			if result.Status == state.RunError {
				return errors.New(result.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&videoType, "type", "all", "Video type: all, shorts, videos")
	cmd.Flags().StringVar(&timeFrame, "timeframe", "all", "Time frame: all, week, month, year")
	cmd.Flags().StringSliceVar(&only, "only", nil, "Download only these video ids")
	return cmd
}

func newFilesCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "files",
		Short: "List downloaded files, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			e := engine.New(cfg, nil, nil)
			files, err := e.ListOutputFiles()
			if err != nil {
				return err
			}
			printFiles(cmd.OutOrStdout(), files)
			if !watch {
				return nil
			}

			ctx, cancel := signalContext()
			defer cancel()
			return download.WatchOutputFiles(ctx, cfg.OutputDir, cfg.Format.Extension(), 500*time.Millisecond, func(files []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "---")
				printFiles(cmd.OutOrStdout(), files)
			})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and reprint the list when files change")
	return cmd
}

func printFiles(w io.Writer, files []string) {
	for _, f := range files {
		fmt.Fprintln(w, f)
	}
}
