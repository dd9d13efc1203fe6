package httpx

import (
	"net/http"
	"strings"
)

// MediaType returns the media type of the request.
func MediaType(req *http.Request) string {
	typ := strings.TrimSpace(strings.Split(req.Header.Get("Content-Type"), ";")[0])
	if typ == "" {
		typ = "application/octet-stream"
	}
	return typ
}

// WantsActivityPub reports whether the client asked for an ActivityPub
// document rather than a web page.
func WantsActivityPub(req *http.Request) bool {
	accept := req.Header.Get("Accept")
	return strings.Contains(accept, "application/activity+json") ||
		strings.Contains(accept, "application/ld+json")
}
