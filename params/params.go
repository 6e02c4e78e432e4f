package params

import "time"

const (
	ServerBodyLimit          = 1048576 // 1 MiB
	ServerIdleTimeout        = 30 * time.Second
	ServerReadTimeout        = 10 * time.Second
	ServerWriteTimeout       = 10 * time.Second
	RefreshMarkerKeyPrefix   = "rt:"
	AccessTokenExpiration    = 10 * time.Minute // access token lifetime; the refresh token renews it
	TokenPurgeInterval       = 1 * time.Hour    // how often expired access token records are swept
	TokenPurgeGracePeriod    = 24 * time.Hour   // expired records are kept this long for audit lookups
	RefreshMarkerExpiration  = 24 * time.Hour   // how long a redeemed refresh token id is remembered
	EmailVerifyTokenLifetime = 24 * time.Hour
	OAuthStateLength         = 32
	HealthCheckServerAddr    = ":3001" // health check server address
	TokenTypeBearer          = "Bearer"
	ScopeAll                 = "*"
)
