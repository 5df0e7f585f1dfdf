// Package key defines the canonical set of configuration identifiers used for centralized settings management.
package key

// HTTP Server - these keys configure the public listener.
const (
	ServerAddress         = "server.address"
	ServerShutdownTimeout = "server.shutdown_timeout"
)

// Catalog Backend - these keys locate the upstream catalog API and bound its calls.
const (
	BackendHost       = "backend.host"
	BackendAPIHost    = "backend.api_host"
	BackendTrendingID = "backend.trending_id"
	BackendTimeout    = "backend.timeout"
)

// Session - these keys govern the shared authenticated session.
const (
	SessionWarm        = "session.warm"
	SessionFingerprint = "session.fingerprint"
)

// Caching - these keys define the lifetime of volatile cache slots, in seconds.
const (
	CacheStreamTTL = "cache.stream_ttl"
	CacheHomeTTL   = "cache.home_ttl"
)

// Streaming Proxy - these keys tune the byte relay.
const (
	ProxyTimeout      = "proxy.timeout"
	ProxyChunkSize    = "proxy.chunk_size"
	ProxyInsecureTLS  = "proxy.insecure_tls"
	ProxyMaxIdleConns = "proxy.max_idle_conns"
	ProxyMaxConns     = "proxy.max_conns"
)

// Logging Infrastructure - these keys manage the application's internal diagnostics.
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

// CLI Execution Environment - these settings govern terminal output.
const (
	CliColored   = "cli.colored"
	IconsVariant = "icons.variant"
)
