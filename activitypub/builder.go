package activitypub

import (
	"fmt"
	"path"
	"strings"

	"github.com/davecheney/fedipub/internal/algorithms"
	"github.com/davecheney/fedipub/internal/snowflake"
	"github.com/davecheney/fedipub/models"
)

const activityStreams = "https://www.w3.org/ns/activitystreams"

// Builder constructs the activities local accounts send.
type Builder struct {
	domain string
}

func NewBuilder(domain string) *Builder {
	return &Builder{domain: domain}
}

func (b *Builder) actor(handle string) string {
	return fmt.Sprintf("https://%s/users/%s", b.domain, handle)
}

func (b *Builder) followers(handle string) string {
	return b.actor(handle) + "/followers"
}

// NoteID returns the id of handle's post.
func (b *Builder) NoteID(handle, id string) string {
	return fmt.Sprintf("%s/posts/%s", b.actor(handle), id)
}

// NoteURL returns the web address of handle's post.
func (b *Builder) NoteURL(handle, id string) string {
	return fmt.Sprintf("https://%s/@%s/%s", b.domain, handle, id)
}

// Follow returns a Follow of target by handle.
func (b *Builder) Follow(handle, target string) map[string]any {
	return map[string]any{
		"@context": activityStreams,
		"id":       fmt.Sprintf("%s/follows/%s", b.actor(handle), snowflake.Now()),
		"type":     "Follow",
		"actor":    b.actor(handle),
		"object":   target,
	}
}

// UndoFollow returns an Undo of handle's Follow of target.
func (b *Builder) UndoFollow(handle, target string) map[string]any {
	return map[string]any{
		"@context": activityStreams,
		"id":       fmt.Sprintf("%s/follows/%s/undo", b.actor(handle), snowflake.Now()),
		"type":     "Undo",
		"actor":    b.actor(handle),
		"object": map[string]any{
			"type":   "Follow",
			"actor":  b.actor(handle),
			"object": target,
		},
	}
}

// Accept returns an Accept of the given Follow by handle.
func (b *Builder) Accept(handle string, follow map[string]any) map[string]any {
	return map[string]any{
		"@context": activityStreams,
		"id":       fmt.Sprintf("%s/activities/%s", b.actor(handle), snowflake.Now()),
		"type":     "Accept",
		"actor":    b.actor(handle),
		"object":   follow,
	}
}

// Note returns the Note for post.
func (b *Builder) Note(post *models.Post) map[string]any {
	to, cc := b.audience(post.Handle, post.Visibility)
	note := map[string]any{
		"@context":     activityStreams,
		"id":           b.NoteID(post.Handle, post.ID),
		"type":         "Note",
		"attributedTo": b.actor(post.Handle),
		"content":      post.ContentHTML,
		"published":    formatTime(post.PublishedAt),
		"to":           to,
		"cc":           cc,
		"url":          b.NoteURL(post.Handle, post.ID),
	}
	if post.InReplyTo != "" {
		note["inReplyTo"] = post.InReplyTo
	}
	if post.Conversation != "" {
		note["conversation"] = post.Conversation
	}
	if post.Sensitive {
		note["sensitive"] = true
	}
	if post.Summary != "" {
		note["summary"] = post.Summary
	}
	if len(post.Tags) > 0 {
		note["tag"] = algorithms.Map(post.Tags, b.hashtag)
	}
	if len(post.MediaURLs) > 0 {
		note["attachment"] = algorithms.Map(post.MediaURLs, attachment)
	}
	return note
}

// Create returns the Create activity wrapping post's Note.
func (b *Builder) Create(post *models.Post) map[string]any {
	note := b.Note(post)
	return map[string]any{
		"@context":  activityStreams,
		"id":        b.NoteID(post.Handle, post.ID) + "/activity",
		"type":      "Create",
		"actor":     b.actor(post.Handle),
		"published": note["published"],
		"to":        note["to"],
		"cc":        note["cc"],
		"object":    note,
	}
}

// audience returns the to and cc addressing for visibility. Direct
// posts are not addressed to anyone.
func (b *Builder) audience(handle string, visibility models.Visibility) (to, cc []string) {
	to, cc = []string{}, []string{}
	switch visibility {
	case models.Public:
		to = append(to, Public)
		cc = append(cc, b.followers(handle))
	case models.Unlisted:
		to = append(to, b.followers(handle))
		cc = append(cc, Public)
	case models.FollowersOnly:
		to = append(to, b.followers(handle))
	}
	return to, cc
}

func (b *Builder) hashtag(tag string) map[string]any {
	return map[string]any{
		"type": "Hashtag",
		"href": fmt.Sprintf("https://%s/tags/%s", b.domain, tag),
		"name": "#" + tag,
	}
}

func attachment(url string) map[string]any {
	typ, mediaType := mediaTypeOf(url)
	return map[string]any{
		"type":      typ,
		"mediaType": mediaType,
		"url":       url,
	}
}

// mediaTypeOf returns the ActivityStreams object type and MIME type of
// the file at url, judged by its extension.
func mediaTypeOf(url string) (string, string) {
	switch ext := strings.ToLower(strings.TrimPrefix(path.Ext(url), ".")); ext {
	case "jpg", "jpeg":
		return "Image", "image/jpeg"
	case "png", "gif", "webp":
		return "Image", "image/" + ext
	case "mp4", "webm":
		return "Video", "video/" + ext
	case "mp3", "ogg", "wav":
		return "Audio", "audio/" + ext
	default:
		return "Document", "application/octet-stream"
	}
}
