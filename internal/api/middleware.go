package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ViewerHeader carries the authenticated user id, set by the upstream
// gateway. The service trusts it; authentication is not its concern.
const ViewerHeader = "X-User-ID"

// viewerID extracts the viewer's user id from the request. 0 means
// anonymous; a malformed header is treated as anonymous rather than
// rejected, since reads work fine unpersonalized.
func viewerID(c *gin.Context) int64 {
	raw := c.GetHeader(ViewerHeader)
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// requireViewer aborts mutations from anonymous requests
func requireViewer(c *gin.Context) (int64, bool) {
	id := viewerID(c)
	if id == 0 {
		abortWithError(c, http.StatusUnauthorized, "identified viewer required")
		return 0, false
	}
	return id, true
}
