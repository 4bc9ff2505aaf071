package constants

import "time"

// Environment variable constants
const (
	EnvHost            = "GO_PROBE_HOST"
	EnvPort            = "GO_PROBE_PORT"
	EnvReadTimeout     = "GO_PROBE_READ_TIMEOUT"
	EnvWriteTimeout    = "GO_PROBE_WRITE_TIMEOUT"
	EnvIdleTimeout     = "GO_PROBE_IDLE_TIMEOUT"
	EnvMaxRequestSize  = "GO_PROBE_MAX_REQUEST_SIZE"
	EnvShutdownTimeout = "GO_PROBE_SHUTDOWN_TIMEOUT"
	EnvAppName         = "GO_PROBE_APP_NAME"
	EnvAppVersion      = "GO_PROBE_APP_VERSION"
	EnvAppEnvironment  = "GO_PROBE_APP_ENV"
	EnvLogLevel        = "GO_PROBE_LOG_LEVEL"
	EnvLogFormat       = "GO_PROBE_LOG_FORMAT"
	EnvHotReload       = "GO_PROBE_HOT_RELOAD"
	EnvTLSEnabled      = "GO_PROBE_TLS_ENABLED"
	EnvTLSCertFile     = "GO_PROBE_TLS_CERT_FILE"
	EnvTLSKeyFile      = "GO_PROBE_TLS_KEY_FILE"
)

// HTTP method constants
const (
	MethodOPTIONS = "OPTIONS"
)

// HTTP header constants
const (
	HeaderContentType   = "Content-Type"
	HeaderAccept        = "Accept"
	HeaderOrigin        = "Origin"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXRequestID    = "X-Request-ID"
	HeaderMetricsSkip   = "X-Metrics-Skipped"
)

// Content type constants
const (
	ContentTypeJSON = "application/json"
)

// CORS headers
const (
	HeaderAccessControlAllowOrigin      = "Access-Control-Allow-Origin"
	HeaderAccessControlAllowMethods     = "Access-Control-Allow-Methods"
	HeaderAccessControlAllowHeaders     = "Access-Control-Allow-Headers"
	HeaderAccessControlAllowCredentials = "Access-Control-Allow-Credentials"
	HeaderAccessControlMaxAge           = "Access-Control-Max-Age"
)

// Rate limiting headers
const (
	HeaderXRateLimitLimit     = "X-RateLimit-Limit"
	HeaderXRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRetryAfter          = "Retry-After"
)

// Rate limiter internal constants
const (
	// RateLimitCleanupInterval is the interval for cleaning up rate limit cache
	RateLimitCleanupInterval = 5 * time.Minute
	// RateLimitMaxCacheSize is the maximum size of the rate limit cache
	RateLimitMaxCacheSize = 10000
)

// Server defaults
const (
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 15 * time.Second
	ServerIdleTimeout     = 60 * time.Second
	ServerMaxRequestSize  = 1 * 1024 * 1024
	ServerShutdownTimeout = 30 * time.Second
)

// HSTSMaxAge is the Strict-Transport-Security max-age used when serving TLS
const HSTSMaxAge = 31536000

// Dependency check defaults
const (
	CheckDefaultInterval = 10 * time.Second
	CheckDefaultTimeout  = 2 * time.Second
	// CheckBreakerFailures is the number of consecutive failures that opens a breaker
	CheckBreakerFailures = 3
	CheckBreakerTimeout  = 30 * time.Second
)

// Dependency check types
const (
	CheckTypeHTTP     = "http"
	CheckTypeTCP      = "tcp"
	CheckTypeRedis    = "redis"
	CheckTypePostgres = "postgres"
	CheckTypeMongo    = "mongo"
	CheckTypeAMQP     = "amqp"
	CheckTypeGRPC     = "grpc"
)

// ShutdownCheckName is the readiness check flipped to failing while draining
const ShutdownCheckName = "shutdown"

// Error code constants
const (
	ErrorCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// Probe and documentation paths. Probe paths bypass rate limiting.
const (
	PathRoot    = "/"
	PathHealth  = "/health"
	PathReady   = "/ready"
	PathMetrics = "/metrics"
	PathInfo    = "/api/info"
	PathOpenAPI = "/openapi.json"
)

// Query parameter constants
const (
	QueryParamFormat = "format"
)
