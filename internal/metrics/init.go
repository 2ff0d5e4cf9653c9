package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Corrections per source × outcome ---
	for _, source := range []string{"reactive", "batch"} {
		for _, outcome := range []string{"fixed", "skipped", "failed"} {
			CorrectionsTotal.WithLabelValues(source, outcome)
		}
		for _, reason := range []string{"timestamp_not_bad", "not_file_backed", "file_missing", "candidate_timestamp_invalid"} {
			CorrectionSkipsTotal.WithLabelValues(source, reason)
		}
	}

	for _, event := range []string{"added", "updated"} {
		ReactiveEventsTotal.WithLabelValues(event)
		CatalogEventsEmitted.WithLabelValues(event)
	}

	// --- Tasks ---
	for _, task := range []string{"DateCreatedFixer", "LibraryScan"} {
		for _, result := range []string{"completed", "canceled", "failed"} {
			TaskRunsTotal.WithLabelValues(task, result)
		}
		TaskRunning.WithLabelValues(task)
		TaskProgress.WithLabelValues(task)
	}

	// --- Batch runs ---
	for _, result := range []string{"completed", "canceled", "failed"} {
		BatchRunsTotal.WithLabelValues(result)
	}
	for _, outcome := range []string{"fixed", "skipped", "errored", "unsubmitted"} {
		BatchLastRunItems.WithLabelValues(outcome)
	}

	// --- Catalog ---
	for _, kind := range []string{"movie", "episode", "audio", "folder"} {
		CatalogItemsTotal.WithLabelValues(kind)
		IndexerItemsProcessed.WithLabelValues(kind)
	}

	for _, op := range []string{"initialize_schema", "add_item", "upsert_batch", "get_item",
		"get_item_by_path", "query_items", "update_item", "delete_missing", "stats"} {
		CatalogQueryTotal.WithLabelValues(op, "success")
		CatalogQueryTotal.WithLabelValues(op, "error")
		CatalogQueryDuration.WithLabelValues(op)
	}

	for _, r := range []string{"commit", "rollback"} {
		CatalogTransactionDuration.WithLabelValues(r)
	}

	// --- Filesystem probes (per volume) ---
	for _, vol := range []string{"media", "unknown"} {
		FilesystemProbeDuration.WithLabelValues(vol)
		for _, result := range []string{"found", "missing", "error"} {
			FilesystemProbeResults.WithLabelValues(vol, result)
		}
		FilesystemRetryAttempts.WithLabelValues(vol)
		FilesystemRetrySuccess.WithLabelValues(vol)
		FilesystemRetryFailures.WithLabelValues(vol)
		FilesystemStaleErrors.WithLabelValues(vol)
	}

	for _, ev := range []string{"create", "write", "remove", "rename", "chmod", "unknown"} {
		WatcherEventsTotal.WithLabelValues(ev)
	}
}
