package github

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/davecheney/fedipub/internal/algorithms"
	"github.com/davecheney/fedipub/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"
)

// frontMatter is the YAML header of a post.
type frontMatter struct {
	ID           string `yaml:"id"`
	Published    string `yaml:"published"`
	Visibility   string `yaml:"visibility"`
	Sensitive    bool   `yaml:"sensitive"`
	Summary      string `yaml:"summary"`
	InReplyTo    string `yaml:"in_reply_to"`
	Conversation string `yaml:"conversation"`
}

var (
	imageRe   = regexp.MustCompile(`!\[[^\]]*\]\(([^)]+)\)`)
	hashtagRe = regexp.MustCompile(`(^|\s)#(\w+)`)
	mentionRe = regexp.MustCompile(`(^|\s)@(\w+)@([\w.-]*\w)`)

	markdown = goldmark.New(
		goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
)

// ParsePost parses the markdown post in filename, belonging to handle.
// Images are lifted out of the body into media URLs; relative image paths
// are served by this server's media proxy on domain.
func ParsePost(content []byte, filename, handle, domain string) (*models.Post, error) {
	fm, body, err := splitFrontMatter(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	post := &models.Post{
		Handle:       handle,
		ID:           fm.ID,
		InReplyTo:    fm.InReplyTo,
		Conversation: fm.Conversation,
		Sensitive:    fm.Sensitive,
		Summary:      fm.Summary,
		Visibility:   models.ParseVisibility(fm.Visibility),
		MediaURLs:    []string{},
	}
	if post.ID == "" {
		post.ID = strings.TrimSuffix(filename, ".md")
	}
	post.PublishedAt, err = parsePublished(fm.Published)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	for _, m := range imageRe.FindAllStringSubmatch(body, -1) {
		src := m[1]
		if !strings.HasPrefix(src, "http") {
			src = fmt.Sprintf("https://%s/media/%s/%s", domain, handle, strings.TrimPrefix(src, "./"))
		}
		post.MediaURLs = append(post.MediaURLs, src)
	}
	post.Content = strings.TrimSpace(imageRe.ReplaceAllString(body, ""))
	post.Tags = hashtags(post.Content)

	post.ContentHTML, err = render(post.Content, domain)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return post, nil
}

// splitFrontMatter separates a leading --- delimited YAML block from the
// body. Content without one is all body.
func splitFrontMatter(content []byte) (*frontMatter, string, error) {
	var fm frontMatter
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	rest, ok := strings.CutPrefix(text, "---\n")
	if !ok {
		return &fm, strings.TrimSpace(text), nil
	}
	header, body, ok := strings.Cut(rest, "\n---")
	if !ok {
		return &fm, strings.TrimSpace(text), nil
	}
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return nil, "", fmt.Errorf("front matter: %w", err)
	}
	return &fm, strings.TrimSpace(body), nil
}

func parsePublished(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("published: cannot parse %q", s)
}

// hashtags returns the distinct lower cased tags in s, in order.
func hashtags(s string) []string {
	return algorithms.Uniq(algorithms.Map(hashtagRe.FindAllStringSubmatch(s, -1), func(m []string) string {
		return strings.ToLower(m[2])
	}))
}

// render converts markdown to HTML, linking hashtags and remote mentions.
func render(s, domain string) (string, error) {
	s = hashtagRe.ReplaceAllString(s, fmt.Sprintf("$1[#$2](https://%s/tags/$2)", domain))
	s = mentionRe.ReplaceAllString(s, "$1[@$2](https://$3/@$2)")
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(s), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
