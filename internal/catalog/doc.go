// Package catalog provides the SQLite-backed media catalog.
//
// It stores folders and file-backed media items (movies, episodes, audio)
// and notifies subscribers when items are added or updated. Notifications
// are delivered synchronously after the change is committed, so a handler
// that saves the item again will receive a nested ItemUpdated event on the
// same goroutine.
//
// File-backed items use IDs derived from their path (PathID), which lets the
// indexer reference parent folders before they have been written.
//
// The database uses WAL mode for improved concurrent read performance
// and includes automatic schema initialization.
package catalog
