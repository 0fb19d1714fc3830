package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Normalize converts a batch of raw posts into normalized original posts.
// Reposts, non-original posts, timeline noise, and records without a
// parseable timestamp are dropped.
func Normalize(b *Batch) []Post {
	if b == nil {
		return nil
	}

	var extract func(RawPost, *Batch) (Post, bool)
	switch b.Platform {
	case PlatformInstagram:
		extract = instagramPost
	case PlatformTwitter:
		extract = twitterPost
	case PlatformLinkedIn:
		extract = linkedInPost
	default:
		return nil
	}

	posts := make([]Post, 0, len(b.Posts))
	seen := make(map[string]bool)
	for _, raw := range b.Posts {
		p, ok := extract(raw, b)
		if !ok {
			continue
		}
		// Pinned posts can appear twice in one timeline.
		if p.ID != "" {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
		}
		p.Engagement = p.Likes + p.Comments
		posts = append(posts, p)
	}
	return posts
}

// count decodes a JSON number, numeric string, or null as a non-negative int.
// Values above maxCount are clamped so per-batch sums cannot overflow.
type count int

const maxCount = math.MaxInt >> 10

func (c *count) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || string(data) == "null" {
		*c = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		*c = 0
		return nil
	}
	switch {
	case math.IsNaN(f) || f < 0:
		*c = 0
	case f > maxCount:
		*c = maxCount
	default:
		*c = count(f)
	}
	return nil
}

// flexString accepts either a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	if string(data) == "null" {
		*s = ""
		return nil
	}
	*s = flexString(data)
	return nil
}

func isRetweetText(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "RT @")
}

// Instagram

type instagramRaw struct {
	ID           flexString      `json:"id"`
	PK           flexString      `json:"pk"`
	Code         string          `json:"code"`
	Shortcode    string          `json:"shortcode"`
	Caption      json.RawMessage `json:"caption"`
	LikeCount    count           `json:"like_count"`
	CommentCount count           `json:"comment_count"`
	ReshareCount count           `json:"reshare_count"`
	PlayCount    count           `json:"play_count"`
	ViewCount    count           `json:"view_count"`
	TakenAt      any             `json:"taken_at"`
	IsRepost     bool            `json:"is_repost"`
	Reshared     bool            `json:"reshared"`
	User         struct {
		PK flexString `json:"pk"`
		ID flexString `json:"id"`
	} `json:"user"`
}

func instagramPost(raw RawPost, b *Batch) (Post, bool) {
	var r instagramRaw
	if err := json.Unmarshal(raw, &r); err != nil {
		return Post{}, false
	}
	if r.IsRepost || r.Reshared {
		return Post{}, false
	}
	author := firstNonEmpty(string(r.User.PK), string(r.User.ID))
	if b.OwnerID != "" && author != "" && author != b.OwnerID {
		return Post{}, false
	}
	ts, ok := ParseTimestamp(r.TakenAt)
	if !ok {
		return Post{}, false
	}

	text := instagramCaption(r.Caption)
	if isRetweetText(text) {
		return Post{}, false
	}

	code := firstNonEmpty(r.Code, r.Shortcode)
	var url string
	if code != "" {
		url = fmt.Sprintf("https://www.instagram.com/p/%s/", code)
	}

	views := int(r.PlayCount)
	if views == 0 {
		views = int(r.ViewCount)
	}

	return Post{
		ID:        firstNonEmpty(string(r.ID), string(r.PK), code),
		Text:      text,
		URL:       url,
		Timestamp: ts,
		Likes:     int(r.LikeCount),
		Comments:  int(r.CommentCount),
		Shares:    int(r.ReshareCount),
		Views:     views,
	}, true
}

// instagramCaption handles both {"text": "..."} and plain string captions.
func instagramCaption(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Text
	}
	return ""
}

// Twitter

type tweetEntry struct {
	EntryID string `json:"entryId"`
	Content struct {
		ItemContent struct {
			TweetResults struct {
				Result *tweetResult `json:"result"`
			} `json:"tweet_results"`
		} `json:"itemContent"`
	} `json:"content"`
}

type tweetResult struct {
	Typename string       `json:"__typename"`
	RestID   string       `json:"rest_id"`
	Tweet    *tweetResult `json:"tweet"` // TweetWithVisibilityResults wrapper
	Legacy   *tweetLegacy `json:"legacy"`
	Views    struct {
		Count count `json:"count"`
	} `json:"views"`
}

type tweetLegacy struct {
	IDStr                 string          `json:"id_str"`
	UserIDStr             string          `json:"user_id_str"`
	CreatedAt             string          `json:"created_at"`
	FullText              string          `json:"full_text"`
	FavoriteCount         count           `json:"favorite_count"`
	ReplyCount            count           `json:"reply_count"`
	RetweetCount          count           `json:"retweet_count"`
	QuoteCount            count           `json:"quote_count"`
	RetweetedStatus       json.RawMessage `json:"retweeted_status"`
	RetweetedStatusResult json.RawMessage `json:"retweeted_status_result"`
}

func twitterPost(raw RawPost, b *Batch) (Post, bool) {
	var e tweetEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Post{}, false
	}
	if strings.HasPrefix(e.EntryID, "promoted") || strings.HasPrefix(e.EntryID, "who-to-follow") {
		return Post{}, false
	}

	res := e.Content.ItemContent.TweetResults.Result
	if res != nil && res.Legacy == nil && res.Tweet != nil {
		res = res.Tweet
	}
	if res == nil || res.Legacy == nil {
		return Post{}, false
	}
	lg := res.Legacy

	if hasValue(lg.RetweetedStatus) || hasValue(lg.RetweetedStatusResult) || isRetweetText(lg.FullText) {
		return Post{}, false
	}
	if b.OwnerID != "" && lg.UserIDStr != "" && lg.UserIDStr != b.OwnerID {
		return Post{}, false
	}

	ts, ok := ParseTimestamp(lg.CreatedAt)
	if !ok {
		return Post{}, false
	}

	id := firstNonEmpty(lg.IDStr, res.RestID)
	var url string
	if id != "" {
		handle := strings.TrimPrefix(strings.TrimSpace(b.Handle), "@")
		if handle == "" {
			handle = "i"
		}
		url = fmt.Sprintf("https://x.com/%s/status/%s", handle, id)
	}

	return Post{
		ID:        id,
		Text:      lg.FullText,
		URL:       url,
		Timestamp: ts,
		Likes:     int(lg.FavoriteCount),
		Comments:  int(lg.ReplyCount),
		Shares:    int(lg.RetweetCount) + int(lg.QuoteCount),
		Views:     int(res.Views.Count),
	}, true
}

// LinkedIn

type linkedInRaw struct {
	URN               flexString `json:"urn"`
	ID                flexString `json:"id"`
	Text              string     `json:"text"`
	URL               string     `json:"url"`
	PostURL           string     `json:"post_url"`
	CreatedAt         any        `json:"created_at"`
	PostedAtTimestamp any        `json:"postedAtTimestamp"`
	IsRepost          bool       `json:"is_repost"`
	Reshared          bool       `json:"reshared"`
	Author            *struct {
		ID flexString `json:"id"`
	} `json:"author"`
	Activity struct {
		NumLikes    count `json:"num_likes"`
		NumComments count `json:"num_comments"`
		NumShares   count `json:"num_shares"`
		NumViews    count `json:"num_views"`
	} `json:"activity"`
}

func linkedInPost(raw RawPost, b *Batch) (Post, bool) {
	var r linkedInRaw
	if err := json.Unmarshal(raw, &r); err != nil {
		return Post{}, false
	}
	if r.IsRepost || r.Reshared || isRetweetText(r.Text) {
		return Post{}, false
	}
	if b.OwnerID != "" && r.Author != nil && r.Author.ID != "" && string(r.Author.ID) != b.OwnerID {
		return Post{}, false
	}

	ts, ok := ParseTimestamp(r.CreatedAt)
	if !ok {
		ts, ok = ParseTimestamp(r.PostedAtTimestamp)
	}
	if !ok {
		return Post{}, false
	}

	return Post{
		ID:        firstNonEmpty(string(r.URN), string(r.ID)),
		Text:      r.Text,
		URL:       firstNonEmpty(r.URL, r.PostURL),
		Timestamp: ts,
		Likes:     int(r.Activity.NumLikes),
		Comments:  int(r.Activity.NumComments),
		Shares:    int(r.Activity.NumShares),
		Views:     int(r.Activity.NumViews),
	}, true
}

func hasValue(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	return len(v) > 0 && string(v) != "null" && string(v) != "{}"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
