package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/handlescore/pkg/source"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Persister is the side-effecting boundary of a scoring run. All writes are
// keyed by (userID, platform[, date]).
type Persister interface {
	// UpsertDailyAggregates removes every row for (userID, platform) and
	// writes rows in its place.
	UpsertDailyAggregates(ctx context.Context, userID string, platform source.Platform, rows []DailyAggregate) error
	// UpsertUserAnalytics writes one platform's columns plus the shared
	// streak fields, leaving sibling platforms untouched.
	UpsertUserAnalytics(ctx context.Context, userID string, u AnalyticsUpdate) error
	// ReplaceBestPost clears the stored best post and writes post if non-nil.
	ReplaceBestPost(ctx context.Context, userID string, platform source.Platform, post *BestPost) error
}

// Batcher is implemented by persisters that can apply several writes atomically.
type Batcher interface {
	Batch(ctx context.Context, fn func(Persister) error) error
}

// Store is the persistence interface.
type Store interface {
	Persister
	Batcher

	GetUserAnalytics(ctx context.Context, userID string) (*UserAnalytics, error)
	ListDailyAggregates(ctx context.Context, opts DailyListOpts) ([]DailyAggregate, error)
	ListBestPosts(ctx context.Context, userID string) ([]BestPost, error)

	AddConnection(ctx context.Context, c *Connection) error
	RemoveConnection(ctx context.Context, userID string, platform source.Platform) error
	ListConnections(ctx context.Context, opts ConnectionListOpts) ([]Connection, error)

	Close() error
}

// columnPrefix maps a platform to its column group in user_analytics.
var columnPrefix = map[source.Platform]string{
	source.PlatformInstagram: "insta",
	source.PlatformTwitter:   "x",
	source.PlatformLinkedIn:  "linkedin",
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
	q  sqlx.ExtContext // db, or the open transaction inside Batch
}

var _ Store = (*SQLiteStore)(nil)

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, q: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Batch runs fn inside a transaction. Nothing fn wrote is visible unless it
// returns nil.
func (s *SQLiteStore) Batch(ctx context.Context, fn func(Persister) error) error {
	if _, ok := s.q.(*sqlx.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&SQLiteStore{db: s.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUserAnalytics(ctx context.Context, userID string) (*UserAnalytics, error) {
	var u UserAnalytics
	err := sqlx.GetContext(ctx, s.q, &u, "SELECT * FROM user_analytics WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user analytics %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user analytics %s: %w", userID, err)
	}
	return &u, nil
}

func (s *SQLiteStore) UpsertUserAnalytics(ctx context.Context, userID string, u AnalyticsUpdate) error {
	prefix, ok := columnPrefix[u.Platform]
	if !ok {
		return fmt.Errorf("upsert user analytics %s: %w: %q", userID, source.ErrUnknownPlatform, u.Platform)
	}
	if u.ConsistencyWeeks < 0 {
		u.ConsistencyWeeks = 0
	}
	lastUpdated := u.LastUpdated.UTC()
	if u.LastUpdated.IsZero() {
		lastUpdated = time.Now().UTC()
	}

	cols := []string{
		"user_id",
		prefix + "_score",
		prefix + "_post_count",
		prefix + "_engagement",
		prefix + "_avg_engagement",
		prefix + "_updated_at",
		"consistency_weeks",
		"previous_handle_score",
		"last_updated",
	}
	set := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		set = append(set, c+" = excluded."+c)
	}

	query, args, err := sq.Insert("user_analytics").
		Columns(cols...).
		Values(userID, u.Stats.Score, u.Stats.PostCount, u.Stats.TotalEngagement, u.Stats.AvgEngagement,
			lastUpdated, u.ConsistencyWeeks, u.PreviousScore, lastUpdated).
		Suffix("ON CONFLICT(user_id) DO UPDATE SET " + strings.Join(set, ", ")).
		ToSql()
	if err != nil {
		return fmt.Errorf("build user analytics upsert: %w", err)
	}

	if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert user analytics %s/%s: %w", userID, u.Platform, err)
	}
	return nil
}

func (s *SQLiteStore) UpsertDailyAggregates(ctx context.Context, userID string, platform source.Platform, rows []DailyAggregate) error {
	if _, err := s.q.ExecContext(ctx,
		"DELETE FROM daily_analytics WHERE user_id = ? AND platform = ?", userID, platform); err != nil {
		return fmt.Errorf("clear daily analytics %s/%s: %w", userID, platform, err)
	}
	if len(rows) == 0 {
		return nil
	}

	ins := sq.Insert("daily_analytics").Columns("user_id", "date", "platform", "value", "mode")
	for _, r := range rows {
		mode := r.Mode
		if mode == "" {
			mode = DailyEngagement
		}
		ins = ins.Values(userID, r.Date, platform, r.Value, mode)
	}
	query, args, err := ins.
		Suffix("ON CONFLICT(user_id, date, platform) DO UPDATE SET value = excluded.value, mode = excluded.mode").
		ToSql()
	if err != nil {
		return fmt.Errorf("build daily analytics upsert: %w", err)
	}

	if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert daily analytics %s/%s: %w", userID, platform, err)
	}
	return nil
}

func (s *SQLiteStore) ListDailyAggregates(ctx context.Context, opts DailyListOpts) ([]DailyAggregate, error) {
	q := sq.Select("user_id", "date", "platform", "value", "mode").
		From("daily_analytics").
		Where(sq.Eq{"user_id": opts.UserID})

	if opts.Platform != "" {
		q = q.Where(sq.Eq{"platform": opts.Platform})
	}
	if opts.Since != "" {
		q = q.Where(sq.GtOrEq{"date": opts.Since})
	}
	q = q.OrderBy("date", "platform")

	limit := opts.Limit
	if limit <= 0 {
		limit = 366
	}
	q = q.Limit(uint64(limit))

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build daily analytics query: %w", err)
	}

	var rows []DailyAggregate
	if err := sqlx.SelectContext(ctx, s.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list daily analytics %s: %w", opts.UserID, err)
	}
	return rows, nil
}

func (s *SQLiteStore) ReplaceBestPost(ctx context.Context, userID string, platform source.Platform, post *BestPost) error {
	if _, err := s.q.ExecContext(ctx,
		"DELETE FROM best_posts WHERE user_id = ? AND platform = ?", userID, platform); err != nil {
		return fmt.Errorf("clear best post %s/%s: %w", userID, platform, err)
	}
	if post == nil {
		return nil
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO best_posts (user_id, platform, post_text, likes, comments, shares_reposts, views, post_url, post_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, userID, platform, post.Text, post.Likes, post.Comments, post.Shares, post.Views, post.URL, post.Date)
	if err != nil {
		return fmt.Errorf("insert best post %s/%s: %w", userID, platform, err)
	}
	return nil
}

func (s *SQLiteStore) ListBestPosts(ctx context.Context, userID string) ([]BestPost, error) {
	var posts []BestPost
	err := sqlx.SelectContext(ctx, s.q, &posts,
		"SELECT * FROM best_posts WHERE user_id = ? ORDER BY platform", userID)
	if err != nil {
		return nil, fmt.Errorf("list best posts %s: %w", userID, err)
	}
	return posts, nil
}

func (s *SQLiteStore) AddConnection(ctx context.Context, c *Connection) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO social_connections (user_id, platform, handle, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, platform) DO UPDATE SET handle = excluded.handle
	`, c.UserID, c.Platform, c.Handle, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("add connection %s/%s: %w", c.UserID, c.Platform, err)
	}
	return nil
}

func (s *SQLiteStore) RemoveConnection(ctx context.Context, userID string, platform source.Platform) error {
	res, err := s.q.ExecContext(ctx,
		"DELETE FROM social_connections WHERE user_id = ? AND platform = ?", userID, platform)
	if err != nil {
		return fmt.Errorf("remove connection %s/%s: %w", userID, platform, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("connection %s/%s: %w", userID, platform, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListConnections(ctx context.Context, opts ConnectionListOpts) ([]Connection, error) {
	q := sq.Select("user_id", "platform", "handle", "created_at").From("social_connections")
	if opts.UserID != "" {
		q = q.Where(sq.Eq{"user_id": opts.UserID})
	}
	if opts.Platform != "" {
		q = q.Where(sq.Eq{"platform": opts.Platform})
	}
	q = q.OrderBy("user_id", "platform")

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build connections query: %w", err)
	}

	var conns []Connection
	if err := sqlx.SelectContext(ctx, s.q, &conns, query, args...); err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	return conns, nil
}
