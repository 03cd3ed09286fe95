package domain

import "time"

// DefaultPostHeight is used for posts whose source does not say how tall
// they render.
const DefaultPostHeight = 160

type Media struct {
	Kind string `yaml:"kind" json:"kind"`
	URL  string `yaml:"url" json:"url"`
	Alt  string `yaml:"alt,omitempty" json:"alt,omitempty"`
}

// Post is one feed entry as a source delivers it.
type Post struct {
	ID        string    `yaml:"id" json:"id"`
	Author    string    `yaml:"author" json:"author"`
	Handle    string    `yaml:"handle,omitempty" json:"handle,omitempty"`
	Title     string    `yaml:"title,omitempty" json:"title,omitempty"`
	Text      string    `yaml:"text" json:"text"`
	Permalink string    `yaml:"permalink,omitempty" json:"permalink,omitempty"`
	PostedAt  time.Time `yaml:"posted_at,omitempty" json:"posted_at,omitempty"`
	Height    float64   `yaml:"height,omitempty" json:"height,omitempty"`
	Media     []Media   `yaml:"media,omitempty" json:"media,omitempty"`
	// RepostOf names the original post when this entry reshares it. Both
	// count as the same post toward progress.
	RepostOf string `yaml:"repost_of,omitempty" json:"repost_of,omitempty"`
}

// ProgressKey is the identity a post is counted under.
func (p Post) ProgressKey() string {
	if p.RepostOf != "" {
		return p.RepostOf
	}
	return p.ID
}

type Bookmark struct {
	SiteID    string
	PostID    string
	Author    string
	Text      string
	Permalink string
	SavedAt   time.Time
}
