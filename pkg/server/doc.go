// Package server assembles the warden agent from configuration and runs it.
//
// # Components
//
// New builds, in order:
//   - the policy store (sqlite or memory) and the persisted policies in it
//   - the volume table: index.volumes when configured, the OS volume
//     manager otherwise
//   - the filesystem index, scanner and device path resolver
//   - the event bus, the metrics collector and the tracer
//   - the policy engine, with a kernel dialer when kernel.enabled is set
//   - the optional event journal and its pruning schedule
//   - health checks: the store is critical, the journal and kernel are
//     advisory
//   - API-key authentication for /v1 and TLS for the listener, when
//     api.auth and api.tls are enabled
//   - the administration API with metrics, health and version endpoints
//
// # Lifecycle
//
// Start initializes the drive level of the index, tries the kernel port once,
// starts the reconnect schedule and the journal, then serves HTTP until the
// context is cancelled or Stop is called:
//
//	srv, err := server.New(ctx, cfg, logger, server.BuildInfo{Version: version})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx)
//
// Shutdown drains HTTP requests first, then stops background workers and
// closes the engine, journal and tracer. Missing drives and an absent driver
// do not stop the agent.
//
// # Reload
//
// ApplyConfig takes the old and reloaded configuration from a
// config.Watcher. The log level changes in place; the watcher logs every
// other change as requiring a restart.
package server
