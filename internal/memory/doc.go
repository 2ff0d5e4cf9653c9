// Package memory keeps the fixer inside a container's memory limit.
//
// [ConfigureFromEnv] sets GOMEMLIMIT from MEMORY_LIMIT (bytes, typically
// injected with the Kubernetes Downward API) scaled by MEMORY_RATIO. An
// explicit GOMEMLIMIT always takes precedence.
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//
// [Monitor] samples heap usage against that limit. A batch sweep over a
// large library calls [Monitor.Wait] before submitting each item, so
// submission pauses when usage crosses the critical water mark and resumes
// once it falls back below the high water mark. Items already in flight are
// not interrupted.
package memory
