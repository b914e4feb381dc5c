// Package pipeline runs the release gates of a deployment in a fixed order.
// The first failing gate sends its own chat message and stops the run; when
// every gate passes a single new version message is sent.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/ciotto/telegram-bot-deploy/errors"
	"github.com/ciotto/telegram-bot-deploy/notify"
)

// Notifier sends the message of one outcome.
type Notifier interface {
	Notify(ctx context.Context, kind notify.Kind, values map[string]any) error
}

// Gate is one step of the release.
type Gate struct {
	// Name identifies the gate in logs and errors.
	Name string

	// Run performs the step. It may record results in the release context.
	Run func(ctx context.Context, rc *ReleaseContext) error

	// Skip, when set and true, makes the gate pass without running.
	Skip func(rc *ReleaseContext) bool

	// Failure is the message sent when Run fails. An error carrying its own
	// kind (see WithKind) overrides it.
	Failure notify.Kind
}

// GateError reports the gate that stopped a release.
type GateError struct {
	Gate string
	Kind notify.Kind
	Err  error
}

func (e *GateError) Error() string {
	return fmt.Sprintf("gate %s failed: %v", e.Gate, e.Err)
}

func (e *GateError) Unwrap() error {
	return e.Err
}

type kindError struct {
	kind notify.Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// WithKind tags err with the message kind to send instead of the gate's
// default failure message.
func WithKind(err error, kind notify.Kind) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// Pipeline is an ordered list of gates.
type Pipeline struct {
	gates    []Gate
	notifier Notifier
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a pipeline running gates in the given order.
func New(gates []Gate, notifier Notifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		gates:    gates,
		notifier: notifier,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes every gate for rc. On the first failure it sends exactly one
// failure message and returns an error coded CodeExecutionFailed wrapping a
// *GateError. A failed delivery of that message is joined to the error.
func (p *Pipeline) Run(ctx context.Context, rc *ReleaseContext) error {
	for _, gate := range p.gates {
		if gate.Skip != nil && gate.Skip(rc) {
			p.logger.InfoContext(ctx, "gate skipped", "gate", gate.Name, "version", rc.Version)
			continue
		}

		p.logger.InfoContext(ctx, "running gate", "gate", gate.Name, "version", rc.Version)
		if err := gate.Run(ctx, rc); err != nil {
			return p.fail(ctx, rc, gate, err)
		}
	}

	if err := p.notifier.Notify(ctx, notify.NewVersion, rc.Values()); err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "release completed", "version", rc.Version, "old_version", rc.OldVersion)
	return nil
}

func (p *Pipeline) fail(ctx context.Context, rc *ReleaseContext, gate Gate, err error) error {
	kind := gate.Failure
	var tagged *kindError
	if stderrors.As(err, &tagged) {
		kind = tagged.kind
	}

	p.logger.WarnContext(ctx, "gate failed", "gate", gate.Name, "version", rc.Version, "error", err)

	gateErr := errors.WrapWithContext(
		&GateError{Gate: gate.Name, Kind: kind, Err: err},
		errors.CodeExecutionFailed,
		"release stopped",
		map[string]any{"version": rc.Version},
	)

	if notifyErr := p.notifier.Notify(ctx, kind, rc.Values()); notifyErr != nil {
		return stderrors.Join(gateErr, notifyErr)
	}
	return gateErr
}
