package datefix

import (
	"time"

	"datecreated-fixer/internal/filesystem"
)

// Threshold is the sentinel creation time written by importers that could
// not determine a real one. Anything on or before it is considered bad.
var Threshold = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// BadYear is the coarse pre-filter used by the batch sweep.
const BadYear = 2000

// Reason explains why an item was not fixed.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonNotBad           Reason = "timestamp_not_bad"
	ReasonNotFileBacked    Reason = "not_file_backed"
	ReasonFileMissing      Reason = "file_missing"
	ReasonTimestampInvalid Reason = "candidate_timestamp_invalid"
)

// Reasons lists every skip reason, for metric label initialization.
var Reasons = []Reason{ReasonNotBad, ReasonNotFileBacked, ReasonFileMissing, ReasonTimestampInvalid}

// Decision is the result of evaluating one item.
type Decision struct {
	ShouldFix    bool
	NewTimestamp time.Time
	Reason       Reason
}

// IsBad reports whether t is at or before Threshold.
func IsBad(t time.Time) bool {
	return !t.After(Threshold)
}

// Acceptable reports whether m can replace a bad creation time: strictly
// after Threshold and not in the future relative to now.
func Acceptable(m, now time.Time) bool {
	return m.After(Threshold) && !m.After(now)
}

// Decide evaluates an item's creation time against the state of its backing
// file. It performs no I/O.
func Decide(created time.Time, file filesystem.FileState, now time.Time) Decision {
	switch {
	case !IsBad(created):
		return Decision{Reason: ReasonNotBad}
	case !file.Exists:
		return Decision{Reason: ReasonFileMissing}
	case !Acceptable(file.ModTime, now):
		return Decision{Reason: ReasonTimestampInvalid}
	}
	return Decision{ShouldFix: true, NewTimestamp: file.ModTime.UTC()}
}

// needsBatchFix is the sweep's local pre-filter: a coarse year check plus a
// backing file. Items passing it are still evaluated with Decide.
func needsBatchFix(created time.Time, path string) bool {
	return created.UTC().Year() <= BadYear && path != ""
}
