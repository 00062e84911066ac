// Package tui holds the interactive prompts and spinners used by carbonq
// commands when attached to a terminal.
package tui

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"

	"nathanbeddoewebdev/carbonq/internal/domain"
)

// ErrAborted is returned when a user cancels an interactive prompt.
var ErrAborted = errors.New("aborted by user")

// urgencyHints describes each urgency in the picker.
var urgencyHints = map[domain.Urgency]string{
	domain.UrgencyCritical: "run now, as fast as possible",
	domain.UrgencyHigh:     "run now, favour speed",
	domain.UrgencyMedium:   "run now, balance speed and energy",
	domain.UrgencyLow:      "may wait for cleaner power",
	domain.UrgencyBatch:    "wait for the cleanest window",
}

// Accessible reports whether prompts should use huh's accessible mode.
func Accessible() bool {
	return os.Getenv("ACCESSIBLE") != ""
}

// PickUrgency asks the user to choose an urgency, defaulting to medium.
func PickUrgency() (domain.Urgency, error) {
	options := make([]huh.Option[domain.Urgency], 0, len(domain.Urgencies))
	for _, u := range domain.Urgencies {
		options = append(options, huh.NewOption(u.String()+" - "+urgencyHints[u], u))
	}

	choice := domain.UrgencyMedium
	field := huh.NewSelect[domain.Urgency]().
		Title("How urgent is this query?").
		Options(options...).
		Value(&choice)

	if err := huh.NewForm(huh.NewGroup(field)).WithAccessible(Accessible()).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return 0, ErrAborted
		}
		return 0, err
	}
	return choice, nil
}

// Confirm asks a yes/no question.
func Confirm(title string) (bool, error) {
	var ok bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Value(&ok),
	)).WithAccessible(Accessible()).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, ErrAborted
	}
	return ok, err
}

// WithSpinner runs action behind a spinner written to out. The action's
// error is returned; a cancelled spinner returns ErrAborted.
func WithSpinner(ctx context.Context, out io.Writer, title string, action func(context.Context) error) error {
	var actionErr error
	err := spinner.New().
		Title(title).
		Accessible(Accessible()).
		Output(out).
		Context(ctx).
		ActionWithErr(func(ctx context.Context) error {
			actionErr = action(ctx)
			return nil
		}).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) || errors.Is(err, context.Canceled) {
			return ErrAborted
		}
		return err
	}
	return actionErr
}
