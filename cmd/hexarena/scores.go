package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/hexarena/internal/platform/tui"
	"github.com/vovakirdan/hexarena/internal/storage"
)

var (
	flagLimit      int
	flagScoresTUI  bool
	flagClearScore bool
)

var scoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Show the longest survivals",
	Long: `Display the best survival of each player, longest first.

Examples:
  hexarena scores
  hexarena scores --limit 5
  hexarena scores --tui
  hexarena scores --db ./scores.db --clear`,
	Args: cobra.NoArgs,
	RunE: runScores,
}

func init() {
	scoresCmd.Flags().IntVar(&flagLimit, "limit", storage.DefaultLimit, "Number of players to show")
	scoresCmd.Flags().BoolVar(&flagScoresTUI, "tui", false, "Browse the scores interactively")
	scoresCmd.Flags().BoolVar(&flagClearScore, "clear", false, "Delete every recorded run")
}

func runScores(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DBPath, storage.WithTickTime(cfg.TickTime()))
	if err != nil {
		return fmt.Errorf("opening scores database: %w", err)
	}
	defer store.Close()

	if flagClearScore {
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println("All runs deleted.")
		return nil
	}

	if flagScoresTUI {
		width, height := 80, 24
		if w, h, termErr := term.GetSize(int(os.Stdout.Fd())); termErr == nil {
			width, height = w, h
		}
		return tui.RunScoreboard(store, width, height)
	}

	top, err := store.TopSurvivors(flagLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Longest Survivals")
	fmt.Fprintln(out)

	if len(top) == 0 {
		fmt.Fprintln(out, "No survivals recorded yet.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Run 'hexarena play' to set the first one!")
		return nil
	}

	fmt.Fprintf(out, "  %-4s  %-16s  %-10s  %-5s  %s\n", "Rank", "Name", "Survived", "Runs", "Last played")
	fmt.Fprintf(out, "  %-4s  %-16s  %-10s  %-5s  %s\n", "----", "----", "--------", "----", "-----------")
	for i, e := range top {
		date := "-"
		if !e.CreatedAt.IsZero() {
			date = e.CreatedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(out, "  %-4d  %-16s  %-10s  %-5d  %s\n", i+1, e.Name, fmt.Sprintf("%.2fs", e.Seconds), e.Runs, date)
	}

	if stats, err := store.Stats(); err == nil {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%d runs by %d players, average %.2fs\n", stats.Runs, stats.Players, stats.AvgSecs)
	}
	return nil
}
