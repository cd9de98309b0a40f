// Package config provides 12-factor configuration management for the
// collabwsd master and worker processes.
//
// Configuration is loaded from environment variables with sensible
// defaults; a TOML file can optionally be layered on top in
// development (see toml.go).
//
// Configuration Sections:
//   - Server: client-facing HTTP/WebSocket listener (port, host)
//   - Broker: named-pipe paths for the broker IPC (spec §4.E/§6.3)
//   - Collab: document-collaboration policy (idle timeout, jail root,
//     rendezvous retry budget, view-callback routing)
//   - Cache: optional disk-backing for the artifact cache
//   - Logging: log level and output format
//   - RateLimit: per-IP connect rate limiting
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Listening on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - BROKER_S2M_PIPE, BROKER_M2S_PIPE, BROKER_WORKER_PIPE
//   - COLLAB_VIEW_CALLBACKS, COLLAB_IDLE_TIMEOUT, COLLAB_JAIL_ROOT,
//     COLLAB_RENDEZVOUS_ATTEMPTS, COLLAB_RENDEZVOUS_INTERVAL
//   - CACHE_DISK_DIR, CACHE_GZIP_THRESHOLD
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
