// Package handlers provides the HTTP control API for the date fixer.
//
// It includes handlers for:
//   - Health, liveness and version checks
//   - Listing, running and canceling background tasks
//   - Triggering a library scan
//   - Looking up catalog items and catalog statistics
package handlers
