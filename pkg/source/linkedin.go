package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const linkedInHost = "fresh-linkedin-scraper-api.p.rapidapi.com"

// LinkedIn fetches recent posts of a LinkedIn profile.
type LinkedIn struct {
	api rapidClient
}

// NewLinkedIn creates a new LinkedIn fetcher.
func NewLinkedIn(apiKey, baseURL string) *LinkedIn {
	return &LinkedIn{api: newRapidClient(apiKey, linkedInHost, baseURL)}
}

func (l *LinkedIn) Platform() Platform { return PlatformLinkedIn }

func (l *LinkedIn) Fetch(ctx context.Context, handle string) (*Batch, error) {
	username := linkedInUsername(handle)
	if username == "" {
		return nil, fmt.Errorf("%w: empty linkedin handle", ErrUpstream)
	}

	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	params := url.Values{"username": {username}}
	if err := l.api.getJSON(ctx, "/api/v1/user/posts", params, &resp); err != nil {
		return nil, fmt.Errorf("linkedin %s: %w", username, err)
	}

	batch := &Batch{Platform: PlatformLinkedIn, Handle: username}

	data := bytes.TrimSpace(resp.Data)
	switch {
	case len(data) == 0 || string(data) == "null":
	case data[0] == '[':
		if err := json.Unmarshal(data, &batch.Posts); err != nil {
			return nil, fmt.Errorf("%w: decode linkedin %s posts: %w", ErrUpstream, username, err)
		}
	case data[0] == '{':
		var obj struct {
			ID    flexString        `json:"id"`
			Posts []json.RawMessage `json:"posts"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("%w: decode linkedin %s profile: %w", ErrUpstream, username, err)
		}
		batch.OwnerID = string(obj.ID)
		batch.Posts = obj.Posts
	default:
		return nil, fmt.Errorf("%w: unexpected linkedin %s payload", ErrUpstream, username)
	}

	return batch, nil
}

// linkedInUsername accepts a bare username, an @handle, or a profile URL
// and returns the last non-empty path segment.
func linkedInUsername(handle string) string {
	handle = cleanHandle(handle)
	parts := strings.Split(handle, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if p := strings.TrimSpace(parts[i]); p != "" {
			if j := strings.IndexAny(p, "?#"); j >= 0 {
				p = p[:j]
			}
			if p != "" {
				return p
			}
		}
	}
	return ""
}
