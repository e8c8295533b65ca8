package store

const schema = `
CREATE TABLE IF NOT EXISTS opportunities (
    post_id              TEXT PRIMARY KEY,
    author               TEXT NOT NULL DEFAULT '',
    author_followers     INTEGER,
    text                 TEXT NOT NULL DEFAULT '',
    url                  TEXT NOT NULL DEFAULT '',
    likes                INTEGER,
    replies              INTEGER,
    reposts              INTEGER,
    views                INTEGER,
    posted_at            DATETIME,
    age_minutes          INTEGER NOT NULL DEFAULT 0,
    velocity             REAL NOT NULL DEFAULT 0,
    is_reply             BOOLEAN NOT NULL DEFAULT 0,
    is_repost            BOOLEAN NOT NULL DEFAULT 0,
    is_origin            BOOLEAN NOT NULL DEFAULT 0,
    replied_to_id        TEXT NOT NULL DEFAULT '',
    conversation_root_id TEXT NOT NULL DEFAULT '',
    quality_score        INTEGER NOT NULL DEFAULT 0,
    quality_pass         BOOLEAN NOT NULL DEFAULT 0,
    quality_tier         TEXT NOT NULL DEFAULT '',
    quality_reasons      TEXT NOT NULL DEFAULT '[]',
    quality_block_reason TEXT NOT NULL DEFAULT '',
    quality_multiplier   REAL NOT NULL DEFAULT 0,
    relevance            REAL NOT NULL DEFAULT 0,
    replyability         REAL NOT NULL DEFAULT 0,
    context_similarity   REAL NOT NULL DEFAULT 0,
    legacy_score         REAL NOT NULL DEFAULT 0,
    final_score          REAL NOT NULL DEFAULT 0,
    value_tier           TEXT NOT NULL DEFAULT 'B',
    harvest_tier         TEXT NOT NULL DEFAULT 'D',
    status               TEXT NOT NULL DEFAULT 'pending',
    admission_path       TEXT NOT NULL DEFAULT 'normal',
    freshness_note       TEXT NOT NULL DEFAULT '',
    source_account       TEXT NOT NULL DEFAULT '',
    batch_id             TEXT NOT NULL DEFAULT '',
    lexicon_version      TEXT NOT NULL DEFAULT '',
    harvested_at         DATETIME NOT NULL,
    updated_at           DATETIME NOT NULL,
    consumed_at          DATETIME
);

CREATE INDEX IF NOT EXISTS idx_opportunities_status ON opportunities(status);
CREATE INDEX IF NOT EXISTS idx_opportunities_final ON opportunities(final_score);
CREATE INDEX IF NOT EXISTS idx_opportunities_tier ON opportunities(value_tier);
CREATE INDEX IF NOT EXISTS idx_opportunities_account ON opportunities(source_account);

CREATE TABLE IF NOT EXISTS seed_stats (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    account           TEXT NOT NULL,
    batch_id          TEXT NOT NULL,
    scraped           INTEGER NOT NULL DEFAULT 0,
    non_root          INTEGER NOT NULL DEFAULT 0,
    disallowed        INTEGER NOT NULL DEFAULT 0,
    quality_blocked   INTEGER NOT NULL DEFAULT 0,
    freshness_failed  INTEGER NOT NULL DEFAULT 0,
    stored            INTEGER NOT NULL DEFAULT 0,
    fallback_stored   INTEGER NOT NULL DEFAULT 0,
    store_errors      INTEGER NOT NULL DEFAULT 0,
    relevance_mid     INTEGER NOT NULL DEFAULT 0,
    relevance_high    INTEGER NOT NULL DEFAULT 0,
    replyability_mid  INTEGER NOT NULL DEFAULT 0,
    replyability_high INTEGER NOT NULL DEFAULT 0,
    scrape_failed     BOOLEAN NOT NULL DEFAULT 0,
    run_at            DATETIME NOT NULL,
    UNIQUE(batch_id, account)
);

CREATE INDEX IF NOT EXISTS idx_seed_stats_account ON seed_stats(account);
CREATE INDEX IF NOT EXISTS idx_seed_stats_run_at ON seed_stats(run_at);
`
