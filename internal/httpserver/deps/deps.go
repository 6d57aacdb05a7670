package deps

import (
	"context"
	"time"

	"github.com/pbataille/shelf/internal/httpserver/mw"
	"github.com/pbataille/shelf/internal/identity"
	"github.com/pbataille/shelf/internal/logger"
	"github.com/pbataille/shelf/internal/session"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string

	Identity *identity.Service // credential handling and session markers
	Sessions *session.Manager  // live sessions keyed by token

	SyncConfigured bool // false => remote document store endpoint unset

	Ready func(ctx context.Context) error // storage reachability probe for /readyz

	AuthRateLimit mw.RateLimitConfig // applied to register/login
	TrustProxy    bool               // true if running behind a trusted reverse proxy
}
