// Package config loads the warden agent configuration.
//
// Configuration is a YAML file decoded over Defaults, then overridden by
// environment variables named WARDEN_SECTION_FIELD:
//
//   - WARDEN_API_LISTEN_ADDRESS overrides api.listen_address
//   - WARDEN_STORE_SQLITE_PATH overrides store.sqlite.path
//   - WARDEN_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Validate collects every problem into one ValidationError:
//
//	configuration validation failed with 2 errors:
//	  - store.backend: unknown backend "postgres" (want sqlite or memory)
//	  - index.volumes.C.device_path: device path must start with "\Device\"
//
// # Example Configuration
//
//	kernel:
//	  port_name: '\DlpPort'
//	  reconnect_schedule: "@every 1m"
//
//	index:
//	  volumes:
//	    C:
//	      root: /srv/lab/c
//	      device_path: '\Device\HarddiskVolume3'
//
//	store:
//	  backend: sqlite
//	  sqlite:
//	    path: data/policies.db
//
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
//
// # Reloading
//
// Watcher reloads the file on change. Only the logging level is applied to a
// running agent; changes to any other section are logged as requiring a
// restart.
package config
