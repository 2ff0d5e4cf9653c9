// Package logging provides a simple leveled logging interface for the
// date-created fixer.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true. Components that want their lines tagged
// use Named:
//
//	log := logging.Named("DateCreatedFixer")
//	log.Info("Fixing %s", item.Name) // [INFO] DateCreatedFixer: Fixing ...
package logging
