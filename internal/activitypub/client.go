// Package activitypub is a client for fetching and posting signed
// ActivityPub documents.
package activitypub

import (
	"bytes"
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"

	"github.com/carlmjohnson/requests"
	"github.com/davecheney/fedipub/internal/httpsig"
)

// ErrNotFound is returned when the remote reports the document is gone.
var ErrNotFound = errors.New("not found")

// NetworkError is returned when a remote could not be reached, or
// responded with an unexpected status.
type NetworkError struct {
	URL    string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.Status)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Signer represents an object that can sign HTTP requests.
type Signer interface {
	PublicKeyID() string
	PrivKey() (*rsa.PrivateKey, error)
}

// Client is an ActivityPub client which can be used to fetch remote
// ActivityPub resources and deliver activities to remote inboxes.
type Client struct {
	signer    Signer
	transport http.RoundTripper
}

// NewClient returns a new ActivityPub client. If signAs is nil requests
// are sent unsigned. If transport is nil http.DefaultTransport is used.
func NewClient(signAs Signer, transport http.RoundTripper) *Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		signer:    signAs,
		transport: transport,
	}
}

// Fetch fetches the ActivityPub resource at the given URL and returns
// the raw document.
func (c *Client) Fetch(ctx context.Context, uri string) ([]byte, error) {
	var buf bytes.Buffer
	err := requests.URL(uri).
		Accept("application/activity+json, application/ld+json").
		Transport(c.sign(nil)).
		AddValidator(checkStatus(uri)).
		ToBytesBuffer(&buf).
		Fetch(ctx)
	if err != nil {
		return nil, classify(uri, err)
	}
	return buf.Bytes(), nil
}

// Post delivers the activity in body to the inbox at url.
func (c *Client) Post(ctx context.Context, url string, body []byte) error {
	err := requests.URL(url).
		BodyBytes(body).
		ContentType("application/activity+json").
		Transport(c.sign(body)).
		AddValidator(checkStatus(url)).
		Fetch(ctx)
	if err != nil {
		return classify(url, err)
	}
	return nil
}

// sign returns a RoundTripper which signs each request before sending it.
// Private keys are loaded per request and never retained.
func (c *Client) sign(body []byte) requests.RoundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		if c.signer != nil {
			key, err := c.signer.PrivKey()
			if err != nil {
				return nil, fmt.Errorf("failed to load private key: %w", err)
			}
			if err := httpsig.Sign(req, c.signer.PublicKeyID(), key, body); err != nil {
				return nil, fmt.Errorf("failed to sign request: %w", err)
			}
		}
		return c.transport.RoundTrip(req)
	}
}

func checkStatus(url string) requests.ResponseHandler {
	return func(res *http.Response) error {
		switch {
		case res.StatusCode >= 200 && res.StatusCode < 300:
			return nil
		case res.StatusCode == http.StatusNotFound, res.StatusCode == http.StatusGone:
			return fmt.Errorf("%s: %w", url, ErrNotFound)
		default:
			return &NetworkError{URL: url, Status: res.StatusCode}
		}
	}
}

// classify normalises err into ErrNotFound or a *NetworkError.
func classify(url string, err error) error {
	var ne *NetworkError
	if errors.Is(err, ErrNotFound) || errors.As(err, &ne) {
		return err
	}
	return &NetworkError{URL: url, Err: err}
}
