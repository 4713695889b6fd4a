package prefs

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyellow/erp-gateway-go/internal/ctxutil"
)

// SessionCookie names the cookie carrying the browser session id.
const SessionCookie = "erp_session"

// sessionMaxAge is one year in seconds.
const sessionMaxAge = 365 * 24 * 60 * 60

// SessionMiddleware reuses a valid erp_session cookie or issues a new uuid,
// and stores the id in the request context.
func SessionMiddleware(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, id, sessionMaxAge, "/", "", secure, true)
		}
		c.Request = c.Request.WithContext(ctxutil.WithSessionID(c.Request.Context(), id))
		c.Next()
	}
}
