package xrcli

import (
	"fmt"
	"strconv"
	"strings"
)

type commitConfig struct {
	label     string
	confirmed int
	comment   string
}

// CommitOption changes the commit command sent by Commit.
type CommitOption interface {
	apply(*commitConfig)
}

type labelOpt string

func (o labelOpt) apply(cfg *commitConfig) { cfg.label = string(o) }

// WithLabel names the commit so it can be referred to in rollback commands.
func WithLabel(label string) CommitOption { return labelOpt(label) }

type confirmedOpt int

func (o confirmedOpt) apply(cfg *commitConfig) { cfg.confirmed = int(o) }

// WithConfirmed makes the commit roll back automatically unless it is
// confirmed by another commit within the given number of seconds.
func WithConfirmed(seconds int) CommitOption { return confirmedOpt(seconds) }

type commentOpt string

func (o commentOpt) apply(cfg *commitConfig) { cfg.comment = string(o) }

// WithComment attaches a comment to the commit.
func WithComment(comment string) CommitOption { return commentOpt(comment) }

func newCommitConfig(opts []CommitOption) (commitConfig, error) {
	var cfg commitConfig
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	// the label is a single token and the comment runs to the end of the line
	if strings.ContainsAny(cfg.label, " \t\r\n") {
		return cfg, fmt.Errorf("%w: commit label %q contains whitespace", ErrInvalidArgument, cfg.label)
	}
	if strings.ContainsAny(cfg.comment, "\r\n") {
		return cfg, fmt.Errorf("%w: commit comment contains a line break", ErrInvalidArgument)
	}
	if cfg.confirmed < 0 {
		return cfg, fmt.Errorf("%w: negative confirm timeout %d", ErrInvalidArgument, cfg.confirmed)
	}
	return cfg, nil
}

// command renders the commit command.  The comment takes the rest of the
// line on the device so it must come last.
func (cfg commitConfig) command(base string) string {
	parts := []string{base}
	if cfg.label != "" {
		parts = append(parts, "label", cfg.label)
	}
	if cfg.confirmed > 0 {
		parts = append(parts, "confirmed", strconv.Itoa(cfg.confirmed))
	}
	if cfg.comment != "" {
		parts = append(parts, "comment", cfg.comment)
	}
	return strings.Join(parts, " ")
}
