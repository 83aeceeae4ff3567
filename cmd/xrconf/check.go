package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nemith/xrcli"
)

const showCandidate = "show configuration"

var checkCmd = &cobra.Command{
	Use:   "check [flags] [line...]",
	Short: "Stage configuration lines, show the candidate and abort",
	Long: `check sends configuration lines like apply but never commits.  The
resulting candidate configuration is printed and then discarded.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&applyOpts.file, "file", "f", "", "YAML file with a list of configuration lines")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	batch, err := loadBatch(args)
	if err != nil {
		return err
	}
	lines, err := xrcli.ParseCommands(batch)
	if err != nil {
		return err
	}

	sess, tr, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer tr.Close()

	ctx := cmd.Context()

	// always leave the device the way it was found
	defer func() {
		if _, err := sess.Abort(ctx); err != nil {
			log.Errorf("failed to abort candidate configuration: %v", err)
		}
	}()

	if _, err := sess.Stage(ctx, lines); err != nil {
		return err
	}

	out, err := sess.SendCommand(ctx, showCandidate)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), xrcli.NormalizeLinefeeds(out))
	return nil
}
