package github

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-json-experiment/json"
)

// fakeRepo is an in memory repository served through the contents API
// and the raw file host.
type fakeRepo struct {
	*httptest.Server
	t *testing.T

	mu    sync.Mutex
	files map[string][]byte
	puts  []string
	auth  []string
}

func newFakeRepo(t *testing.T, files map[string]string) *fakeRepo {
	t.Helper()
	f := &fakeRepo{t: t, files: make(map[string][]byte)}
	for p, content := range files {
		f.files[p] = []byte(content)
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

// client returns a Client for the repository owner/repo on the fake.
func (f *fakeRepo) client() *Client {
	c := NewClient("owner/repo", "s3cret", nil)
	c.api = f.URL + "/api"
	c.raw = f.URL + "/raw"
	return c
}

func (f *fakeRepo) file(p string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.files[p]
	return string(b), ok
}

func (f *fakeRepo) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.puts...)
}

func sha(b []byte) string {
	return fmt.Sprintf("%x", sha1.Sum(b))
}

func (f *fakeRepo) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))

	if p, ok := strings.CutPrefix(r.URL.Path, "/raw/owner/repo/master/"); ok {
		b, ok := f.files[p]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(b)
		return
	}
	p, ok := strings.CutPrefix(r.URL.Path, "/api/repos/owner/repo/contents/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		if b, ok := f.files[p]; ok {
			enc := base64.StdEncoding.EncodeToString(b)
			if len(enc) > 60 {
				// the API wraps encoded content
				enc = enc[:60] + "\n" + enc[60:]
			}
			json.MarshalFull(w, map[string]any{"sha": sha(b), "content": enc, "encoding": "base64"})
			return
		}
		entries := map[string]map[string]any{}
		for name := range f.files {
			rest, ok := strings.CutPrefix(name, p+"/")
			if !ok {
				continue
			}
			first, _, isDir := strings.Cut(rest, "/")
			typ := "file"
			if isDir {
				typ = "dir"
			}
			entries[first] = map[string]any{"name": first, "path": p + "/" + first, "type": typ}
		}
		if len(entries) == 0 {
			http.NotFound(w, r)
			return
		}
		var names []string
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)
		list := []any{}
		for _, name := range names {
			list = append(list, entries[name])
		}
		json.MarshalFull(w, list)
	case http.MethodPut:
		var body struct {
			Message string `json:"message"`
			Content string `json:"content"`
			SHA     string `json:"sha"`
		}
		if err := json.UnmarshalFull(r.Body, &body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if existing, ok := f.files[p]; ok && body.SHA != sha(existing) {
			http.Error(w, "sha mismatch", http.StatusConflict)
			return
		}
		b, err := base64.StdEncoding.DecodeString(body.Content)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.files[p] = b
		f.puts = append(f.puts, p)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
