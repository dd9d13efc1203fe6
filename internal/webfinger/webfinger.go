package webfinger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/carlmjohnson/requests"
)

// ErrNoActivityPubLink is returned when a Webfinger document has no
// self link to an ActivityPub actor.
var ErrNoActivityPubLink = errors.New("no ActivityPub link found")

type Webfinger struct {
	Subject string   `json:"subject"`
	Aliases []string `json:"aliases,omitempty"`
	Links   []Link   `json:"links"`
}

// ActivityPub returns the href of the rel=self link whose type names an
// activity streams document.
func (wf *Webfinger) ActivityPub() (string, error) {
	for _, link := range wf.Links {
		if link.Rel == "self" && strings.Contains(link.Type, "activity") && link.Href != "" {
			return link.Href, nil
		}
	}
	// some servers only advertise ld+json
	for _, link := range wf.Links {
		if link.Rel == "self" && strings.Contains(link.Type, "ld+json") && link.Href != "" {
			return link.Href, nil
		}
	}
	return "", ErrNoActivityPubLink
}

type Link struct {
	Rel      string `json:"rel"`
	Type     string `json:"type,omitempty"`
	Href     string `json:"href,omitempty"`
	Template string `json:"template,omitempty"`
}

type Acct struct {
	User string
	Host string
}

func (a *Acct) String() string {
	return "acct:" + a.User + "@" + a.Host
}

// Webfinger returns the URL for the webfinger resource for this Acct.
func (a *Acct) Webfinger() string {
	return "https://" + a.Host + "/.well-known/webfinger?resource=" + url.QueryEscape(a.String())
}

// Fetch retrieves the Webfinger document for this Acct using transport,
// or http.DefaultTransport if transport is nil.
func (a *Acct) Fetch(ctx context.Context, transport http.RoundTripper) (*Webfinger, error) {
	if transport == nil {
		transport = http.DefaultTransport
	}
	var webfinger Webfinger
	err := requests.URL(a.Webfinger()).
		Accept("application/jrd+json, application/json").
		Transport(transport).
		ToJSON(&webfinger).
		Fetch(ctx)
	return &webfinger, err
}

// IsAcct reports whether ref looks like an account reference rather than a URL.
// acct:user@host, user@host and @user@host are all account references.
func IsAcct(ref string) bool {
	if strings.HasPrefix(ref, "acct:") {
		return true
	}
	return !strings.Contains(ref, "://") && strings.Contains(strings.TrimPrefix(ref, "@"), "@")
}

// Parse parses an account reference. The acct: scheme and a leading @
// are optional.
func Parse(query string) (*Acct, error) {
	query = strings.TrimPrefix(query, "acct:")
	// Remove the leading @, if there's one.
	query = strings.TrimPrefix(query, "@")

	// In case the handle has been URL encoded
	query, err := url.QueryUnescape(query)
	if err != nil {
		return nil, err
	}
	user, host, ok := strings.Cut(query, "@")
	switch {
	case user == "":
		return nil, fmt.Errorf("invalid acct: %q", query)
	case !ok:
		return &Acct{User: user}, nil
	case host == "" || strings.Contains(host, "@"):
		return nil, fmt.Errorf("invalid acct: %q", query)
	default:
		return &Acct{User: user, Host: host}, nil
	}
}
