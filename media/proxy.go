// package media serves account media from the content repository.
package media

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/davecheney/fedipub/internal/github"
	"github.com/davecheney/fedipub/internal/httpx"
	"github.com/go-chi/chi/v5"
)

var contentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".webm": "video/webm",
}

// ContentType returns the media type for name's extension.
func ContentType(name string) string {
	if typ, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return typ
	}
	return "application/octet-stream"
}

// Show serves accounts/{handle}/media/{path} from the repository.
func Show(gh *github.Client, w http.ResponseWriter, r *http.Request) error {
	handle := chi.URLParam(r, "handle")
	name := chi.URLParam(r, "*")
	if handle == "" || name == "" || strings.Contains(handle, "/") || strings.Contains(name, "..") {
		return httpx.Error(http.StatusNotFound, fmt.Errorf("invalid media path %q", r.URL.Path))
	}
	b, err := gh.Raw(r.Context(), path.Join("accounts", handle, "media", name))
	switch {
	case errors.Is(err, github.ErrNotFound):
		return httpx.Error(http.StatusNotFound, err)
	case err != nil:
		return httpx.Error(http.StatusBadGateway, err)
	}
	w.Header().Set("Content-Type", ContentType(name))
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(b)
	return err
}
