package deps

import (
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/perchkeep/perch/internal/logger"
	"github.com/perchkeep/perch/internal/session"
	"github.com/perchkeep/perch/internal/store/sqlite"
	syncer "github.com/perchkeep/perch/internal/sync"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	TimeNow   func() time.Time // for testing, defaults to time.Now

	Store        *sqlite.Store      // cache + sync log persistence
	Sessions     session.Manager    // cookie token -> session lookup
	Orchestrator *syncer.Orchestrator

	// NewUpstream builds a per-request upstream client from the
	// session's bearer tokens.
	NewUpstream func(accessToken, refreshToken string) syncer.UpstreamClient

	OAuth       *oauth2.Config // login/callback flow
	RedisClient *redis.Client  // readiness probe only

	SessionTTL     time.Duration // session cookie and store lifetime
	CookieSecure   bool          // Secure flag on cookies (false for plain-http dev)
	DashboardURL   string        // post-login redirect target
	AllowedOrigins []string      // CORS allow-list, empty = same-origin only
	TrustProxy     bool          // resolve client IP from proxy headers
}
