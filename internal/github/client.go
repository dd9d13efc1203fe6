// Package github mirrors account content between a GitHub repository
// and the database.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/carlmjohnson/requests"
	"github.com/go-json-experiment/json"
)

const userAgent = "fedipub"

// ErrNotFound is returned when the requested path does not exist.
var ErrNotFound = errors.New("github: not found")

// Client reads and writes files in a repository through the contents API.
type Client struct {
	repo   string // owner/name
	token  string
	branch string

	api       string
	raw       string
	transport http.RoundTripper
}

// NewClient returns a Client for repo, given as owner/name, on its master
// branch. If transport is nil http.DefaultTransport is used.
func NewClient(repo, token string, transport http.RoundTripper) *Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		repo:      repo,
		token:     token,
		branch:    "master",
		api:       "https://api.github.com",
		raw:       "https://raw.githubusercontent.com",
		transport: transport,
	}
}

// A File is the content of a file and the blob sha it was read at.
type File struct {
	Path    string
	SHA     string
	Content []byte
}

// An Entry is an item in a directory listing.
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // file or dir
	SHA  string `json:"sha"`
}

func (c *Client) contents(path string) *requests.Builder {
	b := requests.URL(fmt.Sprintf("%s/repos/%s/contents/%s", c.api, c.repo, path)).
		Accept("application/vnd.github.v3+json").
		UserAgent(userAgent).
		Transport(c.transport)
	if c.token != "" {
		b = b.Bearer(c.token)
	}
	return b
}

// GetFile returns the file at path, or ErrNotFound.
func (c *Client) GetFile(ctx context.Context, path string) (*File, error) {
	var buf bytes.Buffer
	err := c.contents(path).Param("ref", c.branch).ToBytesBuffer(&buf).Fetch(ctx)
	if err != nil {
		return nil, wrap(path, err)
	}
	var resp struct {
		SHA      string `json:"sha"`
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("github: decode %s: %w", path, err)
	}
	content := []byte(resp.Content)
	if resp.Encoding == "base64" {
		content, err = base64.StdEncoding.DecodeString(strings.ReplaceAll(resp.Content, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("github: decode %s: %w", path, err)
		}
	}
	return &File{Path: path, SHA: resp.SHA, Content: content}, nil
}

// List returns the entries of the directory at path, or ErrNotFound.
func (c *Client) List(ctx context.Context, path string) ([]Entry, error) {
	var buf bytes.Buffer
	err := c.contents(path).Param("ref", c.branch).ToBytesBuffer(&buf).Fetch(ctx)
	if err != nil {
		return nil, wrap(path, err)
	}
	var entries []Entry
	if err := json.Unmarshal(buf.Bytes(), &entries); err != nil {
		return nil, fmt.Errorf("github: decode %s: %w", path, err)
	}
	return entries, nil
}

// PutFile writes content to path with the given commit message. If the
// file already holds content nothing is written and PutFile reports false.
func (c *Client) PutFile(ctx context.Context, path string, content []byte, message string) (bool, error) {
	existing, err := c.GetFile(ctx, path)
	switch {
	case errors.Is(err, ErrNotFound):
		existing = nil
	case err != nil:
		return false, err
	case bytes.Equal(existing.Content, content):
		return false, nil
	}
	body := map[string]any{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  c.branch,
	}
	if existing != nil {
		body["sha"] = existing.SHA
	}
	b, err := json.Marshal(body)
	if err != nil {
		return false, err
	}
	err = c.contents(path).
		Put().
		BodyBytes(b).
		ContentType("application/json").
		Fetch(ctx)
	if err != nil {
		return false, wrap(path, err)
	}
	return true, nil
}

// Raw returns the raw bytes of the file at path, or ErrNotFound.
// Unlike GetFile it is not limited by the contents API's size cap.
func (c *Client) Raw(ctx context.Context, path string) ([]byte, error) {
	var buf bytes.Buffer
	b := requests.URL(fmt.Sprintf("%s/%s/%s/%s", c.raw, c.repo, c.branch, path)).
		UserAgent(userAgent).
		Transport(c.transport)
	if c.token != "" {
		b = b.Bearer(c.token)
	}
	if err := b.ToBytesBuffer(&buf).Fetch(ctx); err != nil {
		return nil, wrap(path, err)
	}
	return buf.Bytes(), nil
}

func wrap(path string, err error) error {
	if requests.HasStatusErr(err, http.StatusNotFound) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return fmt.Errorf("github: %s: %w", path, err)
}
