// Package health serves liveness and readiness probes for the s3rotate daemon.
//
// Readiness aggregates named checks. The daemon registers one check per
// family backed by a RunTracker, so a family whose last rotation failed
// turns /ready into a 503 until its next successful run.
//
//	checker := health.New(5 * time.Second)
//	tracker := health.NewRunTracker()
//	checker.RegisterCheck("family:db", tracker.Check("db"))
//	health.Register(mux, checker, tracker, version, commit, buildTime)
package health
