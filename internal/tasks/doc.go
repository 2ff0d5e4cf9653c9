// Package tasks hosts long-running maintenance jobs.
//
// A Task describes itself (name, key, category) and does its work in
// Execute, reporting progress as it goes. The Manager runs each registered
// task at most once at a time, exposes status snapshots for the HTTP API,
// supports cooperative cancellation through the context passed to Execute,
// and installs interval triggers on a gocron scheduler. Tasks without
// default triggers only run when started explicitly.
package tasks
