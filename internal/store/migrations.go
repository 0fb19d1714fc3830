package store

const schema = `
CREATE TABLE IF NOT EXISTS user_analytics (
    user_id                  TEXT PRIMARY KEY,
    insta_score              INTEGER NOT NULL DEFAULT 0,
    insta_post_count         INTEGER NOT NULL DEFAULT 0,
    insta_engagement         INTEGER NOT NULL DEFAULT 0,
    insta_avg_engagement     INTEGER NOT NULL DEFAULT 0,
    insta_updated_at         DATETIME,
    x_score                  INTEGER NOT NULL DEFAULT 0,
    x_post_count             INTEGER NOT NULL DEFAULT 0,
    x_engagement             INTEGER NOT NULL DEFAULT 0,
    x_avg_engagement         INTEGER NOT NULL DEFAULT 0,
    x_updated_at             DATETIME,
    linkedin_score           INTEGER NOT NULL DEFAULT 0,
    linkedin_post_count      INTEGER NOT NULL DEFAULT 0,
    linkedin_engagement      INTEGER NOT NULL DEFAULT 0,
    linkedin_avg_engagement  INTEGER NOT NULL DEFAULT 0,
    linkedin_updated_at      DATETIME,
    consistency_weeks        INTEGER NOT NULL DEFAULT 0 CHECK (consistency_weeks >= 0),
    previous_handle_score    INTEGER NOT NULL DEFAULT 0,
    last_updated             DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_analytics (
    user_id   TEXT NOT NULL,
    date      TEXT NOT NULL,
    platform  TEXT NOT NULL,
    value     INTEGER NOT NULL DEFAULT 0,
    mode      TEXT NOT NULL DEFAULT 'engagement',
    PRIMARY KEY (user_id, date, platform)
);

CREATE INDEX IF NOT EXISTS idx_daily_user_platform ON daily_analytics(user_id, platform);

CREATE TABLE IF NOT EXISTS best_posts (
    user_id         TEXT NOT NULL,
    platform        TEXT NOT NULL,
    post_text       TEXT NOT NULL DEFAULT '',
    likes           INTEGER NOT NULL DEFAULT 0,
    comments        INTEGER NOT NULL DEFAULT 0,
    shares_reposts  INTEGER NOT NULL DEFAULT 0,
    views           INTEGER,
    post_url        TEXT NOT NULL DEFAULT '',
    post_date       TEXT NOT NULL,
    PRIMARY KEY (user_id, platform)
);

CREATE TABLE IF NOT EXISTS social_connections (
    user_id     TEXT NOT NULL,
    platform    TEXT NOT NULL,
    handle      TEXT NOT NULL,
    created_at  DATETIME NOT NULL,
    PRIMARY KEY (user_id, platform)
);

CREATE INDEX IF NOT EXISTS idx_connections_platform ON social_connections(platform);
`
