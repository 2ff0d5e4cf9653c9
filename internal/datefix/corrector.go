package datefix

import (
	"context"
	"errors"
	"fmt"
	"time"

	"datecreated-fixer/internal/catalog"
	"datecreated-fixer/internal/filesystem"
	"datecreated-fixer/internal/metrics"
)

var (
	// ErrUpdateFailed wraps failures returned by the catalog while saving a
	// corrected item.
	ErrUpdateFailed = errors.New("datefix: catalog update failed")

	// ErrUnexpectedFailure wraps any other failure while probing or
	// evaluating an item, including recovered panics.
	ErrUnexpectedFailure = errors.New("datefix: unexpected failure")
)

// Updater is the part of the catalog needed to persist a correction.
type Updater interface {
	GetParent(ctx context.Context, item *catalog.Item) (*catalog.Item, error)
	UpdateItem(ctx context.Context, item, parent *catalog.Item, kind catalog.UpdateKind) error
}

// FileProber reads a file's existence and modification time in one call.
type FileProber interface {
	Stat(path string) (filesystem.FileState, error)
}

// OutcomeKind classifies the result of a single correction.
type OutcomeKind int

const (
	Fixed OutcomeKind = iota
	Skipped
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Fixed:
		return "fixed"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of Correct. Reason is set for Skipped, Err for Failed.
type Outcome struct {
	Kind         OutcomeKind
	Reason       Reason
	Previous     time.Time
	NewTimestamp time.Time
	Err          error
}

// Corrector repairs the creation time of one item at a time. It neither logs
// nor counts; callers decide what to do with the Outcome.
type Corrector struct {
	store Updater
	probe FileProber
	now   func() time.Time
}

// NewCorrector creates a Corrector saving through store and reading files
// through probe.
func NewCorrector(store Updater, probe FileProber) *Corrector {
	return &Corrector{store: store, probe: probe, now: time.Now}
}

// Evaluate decides whether item should be fixed. Items that are not bad or
// not file-backed are rejected without touching the filesystem.
func (c *Corrector) Evaluate(item *catalog.Item) (d Decision, err error) {
	defer recoverInto(&err)

	if item.Path == "" {
		return Decision{Reason: ReasonNotFileBacked}, nil
	}
	if !IsBad(item.DateCreated) {
		return Decision{Reason: ReasonNotBad}, nil
	}

	state, err := c.probe.Stat(item.Path)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrUnexpectedFailure, err)
	}
	return Decide(item.DateCreated, state, c.now()), nil
}

// Persist saves item under its parent as a metadata edit.
func (c *Corrector) Persist(ctx context.Context, item *catalog.Item) (err error) {
	defer recoverInto(&err)

	parent, err := c.store.GetParent(ctx, item)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	if err := c.store.UpdateItem(ctx, item, parent, catalog.UpdateMetadataEdit); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	return nil
}

// Correct evaluates item and, when warranted, sets its DateCreated to the
// file's modification time and saves it. Exactly one catalog update is made
// for a Fixed outcome and none otherwise.
func (c *Corrector) Correct(ctx context.Context, item *catalog.Item) Outcome {
	previous := item.DateCreated

	decision, err := c.Evaluate(item)
	if err != nil {
		return Outcome{Kind: Failed, Previous: previous, Err: err}
	}
	if !decision.ShouldFix {
		return Outcome{Kind: Skipped, Reason: decision.Reason, Previous: previous}
	}

	item.DateCreated = decision.NewTimestamp
	if err := c.Persist(ctx, item); err != nil {
		return Outcome{Kind: Failed, Previous: previous, NewTimestamp: decision.NewTimestamp, Err: err}
	}
	return Outcome{Kind: Fixed, Previous: previous, NewTimestamp: decision.NewTimestamp}
}

// recoverInto converts a panic from a collaborator into ErrUnexpectedFailure.
func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: panic: %v", ErrUnexpectedFailure, r)
	}
}

// recordOutcome updates the correction counters for source.
func recordOutcome(source string, out Outcome) {
	metrics.CorrectionsTotal.WithLabelValues(source, out.Kind.String()).Inc()
	if out.Kind == Skipped {
		metrics.CorrectionSkipsTotal.WithLabelValues(source, string(out.Reason)).Inc()
	}
}
