// Package indexer mirrors the media directory into the catalog.
//
// A scan walks the directory tree with a pool of workers, classifies each
// path with the mediatypes package and upserts the results in batches:
//   - Directories become folder items
//   - Video files become movies, or episodes when the name carries SxxEyy
//   - Audio files become audio items
//
// Items are keyed by a UUID derived from their path, so rescans update rows
// in place and keep any DateCreated already stored. New items start with an
// unknown creation date, which the date fixer fills in from the file's
// modification time. Items are written parents first so that fix can
// resolve the parent folder.
//
// The indexer runs as a task: once at startup, then on the configured
// interval or on demand. A scan that completes without failed batches
// removes catalog entries whose files are gone. Hidden files and
// directories (prefixed with '.') are excluded.
//
// Watcher adds files to the catalog as soon as they are created or
// written, using fsnotify with per-path debouncing.
package indexer
