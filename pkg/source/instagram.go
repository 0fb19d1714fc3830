package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

const instagramHost = "instagram-scraper21.p.rapidapi.com"

// Instagram fetches recent posts of an Instagram account.
type Instagram struct {
	api   rapidClient
	limit int
}

// NewInstagram creates a new Instagram fetcher. An empty baseURL targets
// the public RapidAPI host.
func NewInstagram(apiKey, baseURL string, limit int) *Instagram {
	if limit <= 0 {
		limit = 10
	}
	return &Instagram{
		api:   newRapidClient(apiKey, instagramHost, baseURL),
		limit: limit,
	}
}

func (i *Instagram) Platform() Platform { return PlatformInstagram }

func (i *Instagram) Fetch(ctx context.Context, handle string) (*Batch, error) {
	handle = cleanHandle(handle)
	if handle == "" {
		return nil, fmt.Errorf("%w: empty instagram handle", ErrUpstream)
	}

	var resp struct {
		Data *struct {
			Posts []json.RawMessage `json:"posts"`
		} `json:"data"`
		Posts []json.RawMessage `json:"posts"`
	}
	params := url.Values{
		"username": {handle},
		"limit":    {strconv.Itoa(i.limit)},
	}
	if err := i.api.getJSON(ctx, "/api/v1/full-posts", params, &resp); err != nil {
		return nil, fmt.Errorf("instagram @%s: %w", handle, err)
	}

	posts := resp.Posts
	if resp.Data != nil && len(resp.Data.Posts) > 0 {
		posts = resp.Data.Posts
	}

	return &Batch{
		Platform: PlatformInstagram,
		Handle:   handle,
		Posts:    posts,
	}, nil
}
