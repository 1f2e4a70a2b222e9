package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# Round Keeper

Operates the prediction-market betting module: starts rounds at the oracle
price, settles expired rounds and relays claims for users.

## Auth

When auth is enabled all /api/* routes require an HS256 Bearer token.
Health and metrics endpoints are public.

## Routes

- GET /healthz
- GET /readyz
- GET /metrics
- GET /swagger/index.html
- POST /api/claim
- POST /api/contract/init
- POST /api/contract/start-round
- POST /api/keeper/settle
- POST /api/keeper/auto-manage
- GET /api/keeper/checkpoints
- GET /api/keeper/submissions
- GET /api/keeper/events (websocket)
- GET /api/rounds/current
- GET /api/rewards/:address
- GET /api/price
- GET /api/settings/switches
- PUT /api/settings/switches/:name
`)
	})
}
