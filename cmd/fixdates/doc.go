// Command fixdates repairs catalog items whose DateCreated was left at or
// before 2000-01-01 by an importer, outside the long-running server.
//
// It supports the following operations:
//   - run: Sweep the catalog once and fix every bad creation date
//   - index: Scan the media directory into the catalog
//   - status: Count items with a bad creation date
//
// Usage:
//
//	fixdates <command>
//
// Commands:
//
//	run     Sweep the catalog and set each bad DateCreated to the backing
//	        file's modification time. Progress is shown as a single
//	        updating line on a terminal and as plain lines otherwise.
//	        Ctrl+C stops submitting new items, waits for the ones in
//	        flight and prints a partial summary.
//
//	index   Walk MEDIA_DIR and record its files and folders in the
//	        catalog. Newly indexed items start with an unknown creation
//	        date, so run usually follows.
//
//	status  Print item counts by kind and the number of bad dates.
//
// Environment:
//
//	DATABASE_DIR         - Path to database directory (default: /database)
//	MEDIA_DIR            - Path to media directory (default: /media)
//	BATCH_CONCURRENCY    - Items corrected at once, 0 sizes from CPUs (default: 16)
//	BATCH_PROGRESS_EVERY - Fixes between progress updates (default: 500)
//	BATCH_KINDS          - Kinds to sweep (default: movie,episode,audio)
//	LOG_LEVEL            - Log level (default: warn for this command)
//
// Exit status is 0 on success, 1 on error and 130 when interrupted.
//
// The server binary runs the same sweep as the DateCreatedFixer task; this
// command is for one-off repairs against a stopped server's database.
package main
