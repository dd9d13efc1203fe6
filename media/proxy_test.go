package media

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carlmjohnson/requests"
	"github.com/davecheney/fedipub/internal/github"
	"github.com/davecheney/fedipub/internal/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

// rawHost serves files from memory in place of the repository's raw host.
func rawHost(files map[string]string) http.RoundTripper {
	return requests.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		rec := httptest.NewRecorder()
		if b, ok := files[req.URL.Path]; ok {
			rec.WriteString(b)
		} else {
			rec.WriteHeader(http.StatusNotFound)
		}
		return rec.Result(), nil
	})
}

func TestShow(t *testing.T) {
	gh := github.NewClient("owner/repo", "", rawHost(map[string]string{
		"/owner/repo/master/accounts/alice/media/cat.png":      "\x89PNG",
		"/owner/repo/master/accounts/alice/media/2024/dog.mp4": "video",
	}))
	r := chi.NewRouter()
	r.Get("/media/{handle}/*", httpx.HandlerFunc(gh, Show))

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
		return rec
	}

	t.Run("image", func(t *testing.T) {
		require := require.New(t)
		rec := get("/media/alice/cat.png")
		require.Equal(http.StatusOK, rec.Code)
		require.Equal("image/png", rec.Header().Get("Content-Type"))
		require.Equal("public, max-age=31536000, immutable", rec.Header().Get("Cache-Control"))
		require.Equal("*", rec.Header().Get("Access-Control-Allow-Origin"))
		require.Equal("\x89PNG", rec.Body.String())
	})

	t.Run("nested path", func(t *testing.T) {
		require := require.New(t)
		rec := get("/media/alice/2024/dog.mp4")
		require.Equal(http.StatusOK, rec.Code)
		require.Equal("video/mp4", rec.Header().Get("Content-Type"))
	})

	t.Run("missing", func(t *testing.T) {
		require := require.New(t)
		require.Equal(http.StatusNotFound, get("/media/alice/nope.png").Code)
	})

	t.Run("traversal", func(t *testing.T) {
		require := require.New(t)
		require.Equal(http.StatusNotFound, get("/media/alice/..%2F..%2Fsecret").Code)
	})
}

func TestContentType(t *testing.T) {
	require := require.New(t)
	require.Equal("image/jpeg", ContentType("a.JPG"))
	require.Equal("image/jpeg", ContentType("a.jpeg"))
	require.Equal("image/webp", ContentType("a.webp"))
	require.Equal("video/webm", ContentType("a.webm"))
	require.Equal("application/octet-stream", ContentType("a.txt"))
	require.Equal("application/octet-stream", ContentType("README"))
}
