package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

const twitterHost = "twitter241.p.rapidapi.com"

// Twitter fetches recent tweets of an X account. The numeric user id is
// resolved from the handle first.
type Twitter struct {
	api   rapidClient
	count int
}

// NewTwitter creates a new X/Twitter fetcher.
func NewTwitter(apiKey, baseURL string, count int) *Twitter {
	if count <= 0 {
		count = 20
	}
	return &Twitter{
		api:   newRapidClient(apiKey, twitterHost, baseURL),
		count: count,
	}
}

func (t *Twitter) Platform() Platform { return PlatformTwitter }

func (t *Twitter) Fetch(ctx context.Context, handle string) (*Batch, error) {
	handle = cleanHandle(handle)
	if handle == "" {
		return nil, fmt.Errorf("%w: empty twitter handle", ErrUpstream)
	}

	userID, err := t.resolveUserID(ctx, handle)
	if err != nil {
		return nil, err
	}

	var resp timelineResponse
	params := url.Values{
		"user":  {userID},
		"count": {strconv.Itoa(t.count)},
	}
	if err := t.api.getJSON(ctx, "/user-tweets", params, &resp); err != nil {
		return nil, fmt.Errorf("twitter @%s: %w", handle, err)
	}

	return &Batch{
		Platform: PlatformTwitter,
		Handle:   handle,
		OwnerID:  userID,
		Posts:    resp.entries(),
	}, nil
}

func (t *Twitter) resolveUserID(ctx context.Context, handle string) (string, error) {
	var resp struct {
		Result struct {
			Data struct {
				User userResult `json:"user"`
			} `json:"data"`
		} `json:"result"`
		User userResult `json:"user"`
		Data struct {
			User userResult `json:"user"`
		} `json:"data"`
	}
	params := url.Values{"username": {handle}}
	if err := t.api.getJSON(ctx, "/user", params, &resp); err != nil {
		return "", fmt.Errorf("twitter @%s profile: %w", handle, err)
	}

	id := firstNonEmpty(
		resp.Result.Data.User.Result.RestID,
		resp.User.Result.RestID,
		resp.Data.User.Result.RestID,
	)
	if id == "" {
		return "", fmt.Errorf("%w: twitter user @%s not found", ErrUpstream, handle)
	}
	return id, nil
}

type userResult struct {
	Result struct {
		RestID string `json:"rest_id"`
	} `json:"result"`
}

type timelineInstruction struct {
	Type    string            `json:"type"`
	Entries []json.RawMessage `json:"entries"`
	Entry   json.RawMessage   `json:"entry"`
}

type timelineResponse struct {
	Result struct {
		Timeline struct {
			Instructions []timelineInstruction `json:"instructions"`
		} `json:"timeline"`
	} `json:"result"`
	Data struct {
		User struct {
			Result struct {
				Timeline struct {
					Timeline struct {
						Instructions []timelineInstruction `json:"instructions"`
					} `json:"timeline"`
				} `json:"timeline"`
			} `json:"result"`
		} `json:"user"`
	} `json:"data"`
}

// entries flattens the timeline instructions into raw tweet entries.
func (r *timelineResponse) entries() []RawPost {
	instructions := r.Result.Timeline.Instructions
	if len(instructions) == 0 {
		instructions = r.Data.User.Result.Timeline.Timeline.Instructions
	}

	var entries []RawPost
	for _, instr := range instructions {
		switch instr.Type {
		case "TimelineAddEntries":
			entries = append(entries, instr.Entries...)
		case "TimelinePinEntry":
			if hasValue(instr.Entry) {
				entries = append(entries, instr.Entry)
			}
		}
	}
	return entries
}
