package cli

import (
	"fmt"

	"github.com/alexjbarnes/puzzle-sync/internal/models"
	"github.com/alexjbarnes/puzzle-sync/internal/reconcile"
	"github.com/spf13/cobra"
)

// playFlags describe one play as entered on the command line.
type playFlags struct {
	mode    string
	puzzle  int64
	result  string
	guesses []string
	date    string
	digits  int
}

func (f *playFlags) bind(cmd *cobra.Command, withDate bool) {
	cmd.Flags().StringVar(&f.mode, "mode", string(models.ModeRegion), "Puzzle mode: region or user")
	cmd.Flags().Int64Var(&f.puzzle, "puzzle", 0, "Puzzle id")
	cmd.Flags().StringVar(&f.result, "result", string(models.ResultInProgress), "Result: won, lost or in_progress")
	cmd.Flags().StringSliceVar(&f.guesses, "guesses", nil, "Guesses in order, comma separated")
	cmd.Flags().IntVar(&f.digits, "digits", 4, "Digit width of the puzzle")
	_ = cmd.MarkFlagRequired("puzzle")

	if withDate {
		cmd.Flags().StringVar(&f.date, "date", "", "Puzzle date (YYYY-MM-DD)")
	}
}

func (f *playFlags) parse() (models.Mode, models.Result, error) {
	mode, err := models.ParseMode(f.mode)
	if err != nil {
		return "", "", err
	}

	if f.puzzle <= 0 {
		return "", "", fmt.Errorf("--puzzle must be positive")
	}

	result := models.Result(f.result)
	if !result.Valid() {
		return "", "", fmt.Errorf("unknown result %q", f.result)
	}

	return mode, result, nil
}

func newRecordCmd(a *app) *cobra.Command {
	var flags playFlags

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a guest play on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, result, err := flags.parse()
			if err != nil {
				return err
			}

			rec := models.GuestGameRecord{
				Mode:       mode,
				PuzzleID:   flags.puzzle,
				Guesses:    flags.guesses,
				Result:     result,
				DigitWidth: flags.digits,
			}

			if rec.Guesses == nil {
				rec.Guesses = []string{}
			}

			if flags.date != "" {
				date, err := models.ParseDate(flags.date)
				if err != nil {
					return err
				}

				rec.PuzzleDate = &date
			}

			local, err := a.openLocal()
			if err != nil {
				return err
			}

			reconcile.NewRecorder(local, a.clock, a.logger).Record(cmd.Context(), rec)

			return a.out(cmd).PrintMessage(fmt.Sprintf("recorded guest game %s/%d", mode, flags.puzzle))
		},
	}

	flags.bind(cmd, true)

	return cmd
}

func newRecordOfflineCmd(a *app) *cobra.Command {
	var flags playFlags

	cmd := &cobra.Command{
		Use:   "record-offline",
		Short: "Record a signed-in play made while the backend was unreachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}

			mode, result, err := flags.parse()
			if err != nil {
				return err
			}

			local, err := a.openLocal()
			if err != nil {
				return err
			}

			reconcile.NewRecorder(local, a.clock, a.logger).RecordPending(cmd.Context(), models.PendingGameState{
				OwnerUserID: sess.UserID,
				Mode:        mode,
				PuzzleID:    flags.puzzle,
				Guesses:     flags.guesses,
				Result:      models.ResultPtr(result),
				DigitWidth:  flags.digits,
			})

			return a.out(cmd).PrintMessage(fmt.Sprintf("recorded offline game %s/%d for %s", mode, flags.puzzle, sess.UserID))
		},
	}

	flags.bind(cmd, false)

	return cmd
}
