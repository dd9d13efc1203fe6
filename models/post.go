package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Visibility controls the audience a post is addressed to.
type Visibility string

const (
	Public        Visibility = "public"
	Unlisted      Visibility = "unlisted"
	FollowersOnly Visibility = "followers"
	Direct        Visibility = "direct"
)

// ParseVisibility returns the named visibility, Public if the name is
// not recognised.
func ParseVisibility(s string) Visibility {
	switch v := Visibility(s); v {
	case Public, Unlisted, FollowersOnly, Direct:
		return v
	default:
		return Public
	}
}

// A Post is a note authored by a local account.
type Post struct {
	Handle       string `gorm:"primarykey;size:64"`
	ID           string `gorm:"primarykey;size:64"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Content      string     `gorm:"type:text"`
	ContentHTML  string     `gorm:"column:content_html;type:text"`
	PublishedAt  time.Time  `gorm:"not null;index"`
	InReplyTo    string     `gorm:"size:255"`
	Conversation string     `gorm:"size:255"`
	Sensitive    bool       `gorm:"not null"`
	Summary      string     `gorm:"type:text"`
	MediaURLs    []string   `gorm:"column:media_urls;serializer:json"`
	Tags         []string   `gorm:"serializer:json"`
	Visibility   Visibility `gorm:"size:16;not null;default:public"`
	FederatedAt  *time.Time
}

// IsPublic reports whether the post may be listed in the outbox and feed.
func (p *Post) IsPublic() bool {
	return p.Visibility == Public
}

type Posts struct {
	db *gorm.DB
}

func NewPosts(db *gorm.DB) *Posts {
	return &Posts{db: db}
}

// Find returns the post, or gorm.ErrRecordNotFound.
func (p *Posts) Find(handle, id string) (*Post, error) {
	var post Post
	if err := p.db.Take(&post, "handle = ? AND id = ?", handle, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// Pending returns the public and unlisted posts which have not been
// federated, oldest first. An empty handle selects every account.
func (p *Posts) Pending(handle string) ([]*Post, error) {
	query := p.db.Where("federated_at IS NULL AND visibility IN ?", []Visibility{Public, Unlisted})
	if handle != "" {
		query = query.Where("handle = ?", handle)
	}
	var posts []*Post
	return posts, query.Order("published_at").Find(&posts).Error
}

// MarkFederated stamps the post as delivered to followers.
func (p *Posts) MarkFederated(handle, id string, t time.Time) error {
	return p.db.Model(&Post{}).
		Where("handle = ? AND id = ?", handle, id).
		Update("federated_at", t.UTC()).Error
}

// CountPublic returns the number of public posts by handle.
func (p *Posts) CountPublic(handle string) (int64, error) {
	var count int64
	return count, p.db.Model(&Post{}).Where("handle = ? AND visibility = ?", handle, Public).Count(&count).Error
}

// Count returns the number of posts across all accounts.
func (p *Posts) Count() (int64, error) {
	var count int64
	return count, p.db.Model(&Post{}).Count(&count).Error
}

// PublicPage returns up to limit public posts by handle, newest first.
// A non empty maxID selects posts with ids before it, a non empty minID
// posts with ids after it.
func (p *Posts) PublicPage(handle, maxID, minID string, limit int) ([]*Post, error) {
	query := p.db.Where("handle = ? AND visibility = ?", handle, Public)
	switch {
	case maxID != "":
		query = query.Where("id < ?", maxID)
	case minID != "":
		query = query.Where("id > ?", minID)
	}
	var posts []*Post
	return posts, query.Order("published_at DESC").Limit(limit).Find(&posts).Error
}

// Save creates or updates the post. An existing post keeps its
// federation stamp and creation time.
func (p *Posts) Save(post *Post) error {
	return p.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "handle"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"updated_at",
			"content",
			"content_html",
			"published_at",
			"in_reply_to",
			"conversation",
			"sensitive",
			"summary",
			"media_urls",
			"tags",
			"visibility",
		}),
	}).Create(post).Error
}

// DeleteExcept removes handle's posts whose ids are not in keep.
// An empty keep removes all of handle's posts.
func (p *Posts) DeleteExcept(handle string, keep []string) (int64, error) {
	query := p.db.Where("handle = ?", handle)
	if len(keep) > 0 {
		query = query.Where("id NOT IN ?", keep)
	}
	res := query.Delete(&Post{})
	return res.RowsAffected, res.Error
}
