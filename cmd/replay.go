package main

import (
	"drivescore/internal/export"
	"drivescore/internal/replay"
	"drivescore/internal/score"
	"drivescore/internal/score/verdict"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type replayFlags struct {
	profile  string
	verdicts string
	csv      string
	yes      bool
}

func newReplayCmd() *cobra.Command {
	f := &replayFlags{}

	cmd := &cobra.Command{
		Use:   "replay <script-file>",
		Short: "Re-score a recorded run and print its scores as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, args[0], f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.profile, "profile", "", "Score profile overriding the script's (A or B)")
	flags.StringVar(&f.verdicts, "verdicts", "", "YAML file with verdict rules")
	flags.StringVar(&f.csv, "csv", "", "Write the exported event log to this CSV file")
	flags.BoolVar(&f.yes, "yes", false, "Confirm reset actions contained in the script")

	return cmd
}

func runReplay(cmd *cobra.Command, scriptPath string, f *replayFlags) error {
	script, err := replay.Load(scriptPath)
	if err != nil {
		return exitError(2, "failed to load script: %v", err)
	}

	if script.HasReset() && !f.yes {
		return exitError(2, "script %s resets the tally; rerun with --yes to confirm", scriptPath)
	}

	if len(script.Weights) == 0 {
		return exitError(2, "script %s declares no weights", scriptPath)
	}

	name := script.Profile
	if f.profile != "" {
		name = f.profile
	}
	profile, err := score.LookupProfile(name)
	if err != nil {
		return exitError(2, "%v", err)
	}

	aggregator, err := score.NewAggregator(profile)
	if err != nil {
		return exitError(1, "failed to build aggregator: %v", err)
	}

	snap, err := script.Apply(aggregator)
	if err != nil {
		return exitError(2, "replay failed: %v", err)
	}

	if f.verdicts != "" {
		rules, err := verdict.LoadFromFile(f.verdicts)
		if err != nil {
			return exitError(2, "failed to load verdict rules: %v", err)
		}
		snap.Verdict = rules.Verdict(snap)
	}

	if f.csv != "" {
		if err := writeExport(aggregator, f.csv); errors.Is(err, score.ErrEmptyLog) {
			fmt.Fprintln(cmd.ErrOrStderr(), score.EmptyLogMessage)
		} else if err != nil {
			return exitError(1, "failed to write %s: %v", f.csv, err)
		}
	}

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func writeExport(a *score.Aggregator, path string) error {
	rows, err := a.ExportLog()
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := export.WriteCSV(file, rows); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}
