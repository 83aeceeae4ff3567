package main

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nemith/xrcli"
	"github.com/nemith/xrcli/internal/config"
)

type commitFlags struct {
	comment   string
	label     string
	confirmed int
}

func (f *commitFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.comment, "comment", "", "commit comment")
	fs.StringVar(&f.label, "label", "", "commit label")
	fs.IntVar(&f.confirmed, "confirmed", 0, "roll back unless confirmed within this many seconds")
}

func (f *commitFlags) options() []xrcli.CommitOption {
	var copts []xrcli.CommitOption
	if f.comment != "" {
		copts = append(copts, xrcli.WithComment(f.comment))
	}
	if f.label != "" {
		copts = append(copts, xrcli.WithLabel(f.label))
	}
	if f.confirmed > 0 {
		copts = append(copts, xrcli.WithConfirmed(f.confirmed))
	}
	return copts
}

var applyOpts struct {
	file     string
	noCommit bool
	commit   commitFlags
}

var applyCmd = &cobra.Command{
	Use:   "apply [flags] [line...]",
	Short: "Send configuration lines and commit them",
	Long: `apply sends configuration lines, given as arguments or as a YAML list in
--file, in configuration mode and commits them.  If the commit fails the
errors from 'show configuration failed' are printed and the candidate is
aborted.`,
	Example: `  xrconf apply -d edge1 'interface Loopback0' 'description uplink'
  xrconf apply -d edge1 -f changes.yaml --comment CHG-1234`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVarP(&applyOpts.file, "file", "f", "", "YAML file with a list of configuration lines")
	applyCmd.Flags().BoolVar(&applyOpts.noCommit, "no-commit", false, "send the lines but leave without committing")
	applyOpts.commit.register(applyCmd.Flags())
	rootCmd.AddCommand(applyCmd)
}

// loadBatch returns the lines to send from the arguments or --file.
func loadBatch(args []string) (any, error) {
	switch {
	case applyOpts.file != "" && len(args) > 0:
		return nil, errors.New("configuration lines and --file are mutually exclusive")
	case applyOpts.file != "":
		return config.LoadBatch(applyOpts.file)
	case len(args) > 0:
		return args, nil
	}
	return nil, errors.New("no configuration lines given")
}

func runApply(cmd *cobra.Command, args []string) error {
	batch, err := loadBatch(args)
	if err != nil {
		return err
	}

	sess, tr, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer tr.Close()

	ctx := cmd.Context()
	out, err := sess.SendConfig(ctx, batch, !applyOpts.noCommit, applyOpts.commit.options()...)
	fmt.Fprint(cmd.OutOrStdout(), xrcli.NormalizeLinefeeds(out))

	var commitErr *xrcli.CommitError
	if errors.As(err, &commitErr) {
		fmt.Fprintf(os.Stderr, "\ncommit failed:\n%s\n", xrcli.NormalizeLinefeeds(commitErr.Diagnostic))
		if _, abortErr := sess.Abort(ctx); abortErr != nil {
			log.Errorf("failed to abort candidate configuration: %v", abortErr)
		}
		return xrcli.ErrCommitFailed
	}
	return err
}
