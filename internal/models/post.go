package models

import "time"

type Comment struct {
	AuthorEmail string    `json:"authorEmail"`
	AuthorName  string    `json:"authorName"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	AuthorEmail string    `json:"authorEmail"`
	AuthorName  string    `json:"authorName"`
	AuthorImage string    `json:"authorImage,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	LikedBy     []string  `json:"likedBy"`
	Likes       int       `json:"likes"`
	Liked       bool      `json:"liked"`
	Comments    []Comment `json:"comments"`
}

// ForViewer returns a copy of p with Likes and Liked computed for viewer.
func (p Post) ForViewer(viewer string) Post {
	p.Likes = len(p.LikedBy)
	p.Liked = false
	for _, email := range p.LikedBy {
		if email == viewer {
			p.Liked = true
			break
		}
	}
	return p
}

type FeedPage struct {
	Posts   []Post `json:"posts"`
	HasMore bool   `json:"hasMore"`
	Page    int    `json:"page"`
	Limit   int    `json:"limit"`
}

type SearchResult struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	AuthorEmail string    `json:"authorEmail"`
	CreatedAt   time.Time `json:"createdAt"`
	Snippet     string    `json:"snippet"`
}
