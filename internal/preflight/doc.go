// Package preflight checks that resumatch can run before it starts work:
// the configuration is valid, the data directory is writable and has room,
// the catalog opens and the embedding provider answers.
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New(preflight.WithEmbedder(e))
//	results := checker.RunAll(ctx, cfg)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
