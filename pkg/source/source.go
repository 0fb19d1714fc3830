package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Platform identifies which social network a post came from.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
)

// ErrUpstream marks a failed or unparseable raw post retrieval.
var ErrUpstream = errors.New("upstream fetch failed")

// ErrUnknownPlatform is returned when a platform name cannot be resolved.
var ErrUnknownPlatform = errors.New("unknown platform")

// AllPlatforms returns all supported platforms.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformInstagram,
		PlatformTwitter,
		PlatformLinkedIn,
	}
}

// ParsePlatform resolves a platform name or common alias.
func ParsePlatform(name string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "instagram", "insta", "ig":
		return PlatformInstagram, nil
	case "twitter", "x", "tweet":
		return PlatformTwitter, nil
	case "linkedin", "li":
		return PlatformLinkedIn, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, name)
}

// RawPost is one scraped post record as returned by the upstream API.
type RawPost = json.RawMessage

// Batch is a single scrape of a handle's recent posts.
type Batch struct {
	Platform Platform  `json:"platform"`
	Handle   string    `json:"handle"`
	OwnerID  string    `json:"owner_id,omitempty"` // posts authored by anyone else are dropped
	Posts    []RawPost `json:"posts"`
}

// Post is the platform-independent shape of an original post.
type Post struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	URL        string    `json:"url"`
	Timestamp  time.Time `json:"timestamp"`
	Likes      int       `json:"likes"`
	Comments   int       `json:"comments"`
	Shares     int       `json:"shares"`
	Views      int       `json:"views"`
	Engagement int       `json:"engagement"`
}

// Fetcher retrieves the raw posts of a handle from an upstream scraper.
type Fetcher interface {
	Platform() Platform
	Fetch(ctx context.Context, handle string) (*Batch, error)
}
