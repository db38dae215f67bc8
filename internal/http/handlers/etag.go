package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Versioned is a payload that can name its own revision.
type Versioned interface {
	Version() string
}

// RespondVersioned writes v as JSON with a strong ETag derived from its
// version, or 304 when the client already holds that revision.
func RespondVersioned(ctx *gin.Context, status int, v Versioned) {
	etag := `"` + v.Version() + `"`
	ctx.Header("ETag", etag)

	if matchesETag(ctx.GetHeader("If-None-Match"), etag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.JSON(status, v)
}

func matchesETag(ifNoneMatch, etag string) bool {
	ifNoneMatch = strings.TrimSpace(ifNoneMatch)
	if ifNoneMatch == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}

	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		// weak comparison, so W/"x" matches "x"
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag {
			return true
		}
	}

	return false
}
