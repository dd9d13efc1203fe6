package webfinger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcctParse(t *testing.T) {
	tc := []struct {
		in     string
		expect Acct
	}{
		{"acct:foo@bar.com", Acct{User: "foo", Host: "bar.com"}},
		{"foo@bar.com", Acct{User: "foo", Host: "bar.com"}},
		{"@foo@bar.com", Acct{User: "foo", Host: "bar.com"}},
		{"foo%40bar.com", Acct{User: "foo", Host: "bar.com"}},
		{"foo", Acct{User: "foo"}},
	}
	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			req := require.New(t)
			got, err := Parse(tt.in)
			req.NoError(err)
			req.Equal(tt.expect, *got)
		})
	}
}

func TestAcctParseInvalid(t *testing.T) {
	for _, in := range []string{"", "acct:", "@", "foo@", "foo@bar@baz"} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
		})
	}
}

func TestAcctWebfinger(t *testing.T) {
	require := require.New(t)
	a := Acct{User: "bob", Host: "remote.example"}
	require.Equal("acct:bob@remote.example", a.String())
	require.Equal("https://remote.example/.well-known/webfinger?resource=acct%3Abob%40remote.example", a.Webfinger())
}

func TestIsAcct(t *testing.T) {
	require := require.New(t)
	require.True(IsAcct("acct:bob@remote.example"))
	require.True(IsAcct("bob@remote.example"))
	require.True(IsAcct("@bob@remote.example"))
	require.False(IsAcct("https://remote.example/users/bob"))
	require.False(IsAcct("https://user@remote.example/users/bob"))
	require.False(IsAcct("bob"))
}

func TestWebfingerActivityPub(t *testing.T) {
	t.Run("self link with activity type", func(t *testing.T) {
		require := require.New(t)
		wf := Webfinger{Links: []Link{
			{Rel: "http://webfinger.net/rel/profile-page", Type: "text/html", Href: "https://remote.example/@bob"},
			{Rel: "self", Type: "application/activity+json", Href: "https://remote.example/users/bob"},
		}}
		href, err := wf.ActivityPub()
		require.NoError(err)
		require.Equal("https://remote.example/users/bob", href)
	})
	t.Run("ld+json fallback", func(t *testing.T) {
		require := require.New(t)
		wf := Webfinger{Links: []Link{
			{Rel: "self", Type: `application/ld+json; profile="https://www.w3.org/ns/activitystreams"`, Href: "https://remote.example/u/bob"},
		}}
		href, err := wf.ActivityPub()
		require.NoError(err)
		require.Equal("https://remote.example/u/bob", href)
	})
	t.Run("no self link", func(t *testing.T) {
		require := require.New(t)
		wf := Webfinger{Links: []Link{
			{Rel: "http://webfinger.net/rel/profile-page", Type: "application/activity+json", Href: "https://remote.example/@bob"},
		}}
		_, err := wf.ActivityPub()
		require.ErrorIs(err, ErrNoActivityPubLink)
	})
}
