package core

import (
	"context"
	"time"
)

// XApiClient abstracts the X API. Every Toolkit operation takes this
// capability rather than reaching for a concrete HTTP client, so workflow
// and gateway tests can inject a fake.
type XApiClient interface {
	// Reads
	SearchTweets(ctx context.Context, query string, maxResults int) ([]OriginalTweet, error)
	GetTweet(ctx context.Context, tweetID string) (OriginalTweet, error)
	GetUserByID(ctx context.Context, userID string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUsersByIDs(ctx context.Context, userIDs []string) ([]User, error)
	GetUserMentions(ctx context.Context, userID string, sinceID string) ([]OriginalTweet, error)
	GetUserTweets(ctx context.Context, userID string, maxResults int) ([]OriginalTweet, error)
	GetHomeTimeline(ctx context.Context, maxResults int) ([]OriginalTweet, error)
	GetFollowers(ctx context.Context, userID string) ([]User, error)
	GetFollowing(ctx context.Context, userID string) ([]User, error)
	GetLikedTweets(ctx context.Context, userID string) ([]OriginalTweet, error)
	GetBookmarks(ctx context.Context) ([]OriginalTweet, error)
	GetTweetLikingUsers(ctx context.Context, tweetID string) ([]User, error)
	GetMe(ctx context.Context) (User, error)

	// Writes — raw, no policy/audit; callers must route through the gateway.
	PostTweet(ctx context.Context, text string, mediaIDs []string) (string, error)
	ReplyToTweet(ctx context.Context, tweetID, text string, mediaIDs []string) (string, error)
	QuoteTweet(ctx context.Context, tweetID, text string) (string, error)
	DeleteTweet(ctx context.Context, tweetID string) error
	PostThread(ctx context.Context, blocks []string) ([]string, error)

	// Engagement
	Like(ctx context.Context, tweetID string) error
	Unlike(ctx context.Context, tweetID string) error
	Follow(ctx context.Context, userID string) error
	Unfollow(ctx context.Context, userID string) error
	Retweet(ctx context.Context, tweetID string) error
	Unretweet(ctx context.Context, tweetID string) error
	Bookmark(ctx context.Context, tweetID string) error
	Unbookmark(ctx context.Context, tweetID string) error

	// Media
	UploadMedia(ctx context.Context, path string, data []byte) (string, error)
}

// User is the subset of X user fields the toolkit returns.
type User struct {
	ID       string
	Username string
	Name     string
}

// LLMProvider is the provider-agnostic generation capability.
type LLMProvider interface {
	Generate(ctx context.Context, prompt string, params GenerateParams) (string, error)
	HealthCheck(ctx context.Context) error
}

// GenerateParams controls an LLM generation call.
type GenerateParams struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration // zero means the provider's default (60s)
}

// SourceFile is one file surfaced by a ContentSourceProvider scan.
type SourceFile struct {
	RelativePath string
	ModifiedAt   time.Time
}

// ContentSourceProvider abstracts an external content source: a local
// folder, a remote drive. Watchtower ingestion is written against this
// interface so tests can supply an in-memory fake.
type ContentSourceProvider interface {
	Scan(ctx context.Context) ([]SourceFile, error)
	Read(ctx context.Context, path string) ([]byte, error)
}

// Storer is the persistence capability workflow composites and loops borrow
// from the storage layer. Concrete implementations:
// internal/store/sqlite3, internal/store/postgres.
type Storer interface {
	AccountStorer
	TweetStorer
	DraftStorer
	ApprovalStorer
	AuditStorer
	TelemetryStorer
	RateLimitStorer
	ContentStorer
	SourceStorer
	SessionStorer
	LockStorer

	// Close releases the underlying database handle(s).
	Close() error

	// WithTx runs fn inside a single transaction; fn's returned error
	// triggers rollback, nil commits. Used to give the gateway its
	// "mutation + audit in one transaction" guarantee.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Storer) error) error
}

type AccountStorer interface {
	GetAccount(ctx context.Context, id string) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	PutAccount(ctx context.Context, acct Account) error
	RotateEncryptionKey(ctx context.Context, oldKey, newKey []byte) error
}

type TweetStorer interface {
	PutOriginalTweet(ctx context.Context, t OriginalTweet) error
	GetOriginalTweet(ctx context.Context, tweetID string) (OriginalTweet, error)
	ListTopScoredTweets(ctx context.Context, category TweetCategory, limit int) ([]OriginalTweet, error)
}

type DraftStorer interface {
	PutDraft(ctx context.Context, d Draft) error
	GetDraft(ctx context.Context, id string) (Draft, error)
	ListDraftsDue(ctx context.Context, accountID string, now time.Time) ([]Draft, error)
	DeleteDraft(ctx context.Context, id string) error
}

type ApprovalStorer interface {
	PutApproval(ctx context.Context, item ApprovalQueueItem) error
	GetApproval(ctx context.Context, id string) (ApprovalQueueItem, error)
	ListApprovals(ctx context.Context, status ApprovalStatus) ([]ApprovalQueueItem, error)
	OldestApproved(ctx context.Context, accountID string) (ApprovalQueueItem, bool, error)
}

type AuditStorer interface {
	PutAudit(ctx context.Context, rec MutationAuditRecord) error
	FindAuditByHash(ctx context.Context, hash string, since time.Time) (MutationAuditRecord, bool, error)
	CountExecutedSince(ctx context.Context, accountID string, since time.Time) (int, error)
	FindDuplicateText(ctx context.Context, accountID, authorID, normalizedText string, since time.Time) (bool, error)

	// CountRepliesToAuthorToday backs the scoring package's per-author-per-day
	// cap: executed replies/engagements aimed at authorID since dayStart.
	CountRepliesToAuthorToday(ctx context.Context, accountID, authorID string, dayStart time.Time) (int, error)

	// LastMutationToTarget backs the scoring package's same-target cooldown
	// gate: the most recent executed mutation's timestamp against targetID, if any.
	LastMutationToTarget(ctx context.Context, accountID, targetID string) (time.Time, bool, error)
}

type TelemetryStorer interface {
	PutTelemetry(ctx context.Context, rec McpTelemetryRecord) error
	PruneTelemetryOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

type RateLimitStorer interface {
	IncrementRateLimit(ctx context.Context, accountID, date, kind string) (int, error)
	GetRateLimit(ctx context.Context, accountID, date, kind string) (int, error)
}

type ContentStorer interface {
	UpsertContentNode(ctx context.Context, n ContentNode) (inserted bool, err error)
	ListNodesByStatus(ctx context.Context, status NodeStatus) ([]ContentNode, error)
	MarkNodeProcessed(ctx context.Context, id string) error
	PutDraftSeed(ctx context.Context, s DraftSeed) error
	ListSeeds(ctx context.Context, nodeID string) ([]DraftSeed, error)
}

type SourceStorer interface {
	PutSource(ctx context.Context, s SourceContext) error
	ListSources(ctx context.Context) ([]SourceContext, error)
}

type SessionStorer interface {
	PutSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, hash string) (Session, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

type LockStorer interface {
	AcquireProcessLock(ctx context.Context, owner string) error
	ReleaseProcessLock(ctx context.Context, owner string) error
	Heartbeat(ctx context.Context, owner string) error
}
