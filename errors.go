package xrcli

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidArgument is returned when the commands handed to SendConfig
	// or SendConfigSet cannot be sent.
	ErrInvalidArgument = errors.New("xrcli: invalid argument")

	// ErrCommitFailed matches any *CommitError with errors.Is.
	ErrCommitFailed = errors.New("xrcli: commit failed")
)

// CommitError is returned when the device rejected a commit.
type CommitError struct {
	// Diagnostic is the output of the diagnostic command, normally `show
	// configuration failed`, with echo and prompt left in place.
	Diagnostic string

	// Transcript is everything the operation sent and received up to and
	// including the failed commit.
	Transcript string
}

func (e *CommitError) Error() string {
	var sb strings.Builder
	sb.WriteString(ErrCommitFailed.Error())

	diag := strings.TrimSpace(NormalizeLinefeeds(e.Diagnostic))
	if diag != "" {
		sb.WriteString(":\n")
		sb.WriteString(diag)
	}
	return sb.String()
}

func (e *CommitError) Is(target error) bool {
	return target == ErrCommitFailed
}
