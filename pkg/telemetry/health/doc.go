// Package health provides the agent's liveness and readiness checks.
//
// Components register named checks with a Checker. A check is either
// critical, where a failure makes the agent not ready, or advisory, where a
// failure only marks it degraded. The kernel port is advisory: running
// without the driver is a supported state in which policies are simulated.
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("store", health.PingCheck(st), true)
//	checker.RegisterCheck("kernel", health.KernelCheck(eng.KernelConnected), false)
//	r.Get("/healthz", checker.LivenessHandler())
//	r.Get("/readyz", checker.ReadinessHandler())
//
// Readiness responses:
//
//	200 {"status":"ready", ...}     every check passed
//	200 {"status":"degraded", ...}  an advisory check failed
//	503 {"status":"unhealthy", ...} a critical check failed
package health
