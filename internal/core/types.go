// Package core holds the domain types and capability interfaces shared by
// every Tuitbot subsystem: toolkit, LLM adapter, storage, workflow
// composites, the mutation gateway, and the automation runtime. Subsystems
// depend on these interfaces, never on each other's concrete packages,
// so loops depend on Workflow+Toolkit, Workflow depends on Toolkit+Storer,
// and Toolkit depends on nothing above it.
package core

import (
	"time"

	"github.com/worldline-go/types"
)

// ContentType enumerates the kind of locally composed artifact a Draft holds.
type ContentType string

const (
	ContentTweet  ContentType = "tweet"
	ContentThread ContentType = "thread"
	ContentReply  ContentType = "reply"
)

// DraftStatus is the one-way lifecycle of a Draft: draft -> scheduled -> posted.
type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusScheduled DraftStatus = "scheduled"
	DraftStatusPosted    DraftStatus = "posted"
)

// ApprovalStatus is the lifecycle of an ApprovalQueueItem.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalExecuted ApprovalStatus = "executed"
)

// TweetCategory is how an OriginalTweet was observed.
type TweetCategory string

const (
	CategoryDiscovery TweetCategory = "discovery"
	CategoryMention   TweetCategory = "mention"
	CategoryTarget    TweetCategory = "target"
)

// RequestFamily tags a mutation's X API surface for audit and policy grouping.
type RequestFamily string

const (
	FamilyPublicAPI        RequestFamily = "PublicApi"
	FamilyDirectMessage    RequestFamily = "DirectMessage"
	FamilyAds              RequestFamily = "Ads"
	FamilyEnterpriseAdmin  RequestFamily = "EnterpriseAdmin"
	FamilyMediaUpload      RequestFamily = "MediaUpload"
)

// ToolCategory classifies a gateway tool invocation.
type ToolCategory string

const (
	CategoryWrite            ToolCategory = "Write"
	CategoryEngage           ToolCategory = "Engage"
	CategoryMedia            ToolCategory = "Media"
	CategoryThread           ToolCategory = "Thread"
	CategoryDelete           ToolCategory = "Delete"
	CategoryUniversalRequest ToolCategory = "UniversalRequest"
	CategoryEnterpriseAdmin  ToolCategory = "EnterpriseAdmin"
	CategoryDirectMessage    ToolCategory = "DirectMessage"
	CategoryAds              ToolCategory = "Ads"
)

// SourceStatus is the scan state of a SourceContext.
type SourceStatus string

const (
	SourcePending  SourceStatus = "pending"
	SourceScanning SourceStatus = "scanning"
	SourceIdle     SourceStatus = "idle"
	SourceError    SourceStatus = "error"
)

// NodeStatus is the processing state of a ContentNode with respect to the seed worker.
type NodeStatus string

const (
	NodePending   NodeStatus = "pending"
	NodeProcessed NodeStatus = "processed"
)

// Account is one authenticated X identity. Every mutation and posted item
// references exactly one Account; AccessToken/RefreshToken hold ciphertext
// (the "enc:" prefix from internal/crypto) once an encryption key is set.
type Account struct {
	ID           string             `db:"account_id" goqu:"skipupdate"`
	Handle       string             `db:"handle"`
	UserID       string             `db:"user_id"`
	AccessToken  string             `db:"access_token"`
	RefreshToken string             `db:"refresh_token"`
	Scopes       types.Slice[string] `db:"scopes"`
	TokenExpiry  time.Time          `db:"token_expiry"`
	Degraded     bool               `db:"degraded"`
	NeedsReauth  bool               `db:"needs_reauth"`
	CreatedAt    time.Time          `db:"created_at" goqu:"skipupdate"`
	UpdatedAt    time.Time          `db:"updated_at"`
}

// HasScope reports whether the account was granted the given OAuth scope.
func (a Account) HasScope(scope string) bool {
	for _, s := range a.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// OriginalTweet is a candidate tweet observed from discovery, mentions, or
// target monitoring. Inserted when discovered, never deleted.
type OriginalTweet struct {
	TweetID        string        `db:"tweet_id" goqu:"skipupdate"`
	AuthorID       string        `db:"author_id"`
	Text           string        `db:"text"`
	ObservedAt     time.Time     `db:"observed_at" goqu:"skipupdate"`
	CreatedAt      time.Time     `db:"created_at"`
	LikeCount      int           `db:"like_count"`
	RetweetCount   int           `db:"retweet_count"`
	ReplyCount     int           `db:"reply_count"`
	Score          float64       `db:"score"`
	Category       TweetCategory `db:"category"`
	SourceNodeID   types.Null[string] `db:"source_node_id"`
	ConversationID types.Null[string] `db:"conversation_id"`
}

// Draft is a locally composed tweet/thread/reply artifact.
type Draft struct {
	ID               string              `db:"draft_id" goqu:"skipupdate"`
	AccountID        string              `db:"account_id"`
	ContentType      ContentType         `db:"content_type"`
	Content          string              `db:"content"`
	ThreadBlocks      types.Slice[string] `db:"thread_blocks"`
	Status           DraftStatus         `db:"status"`
	ScheduledFor     types.Null[types.Time] `db:"scheduled_for"`
	InReplyToTweetID types.Null[string]  `db:"in_reply_to_tweet_id"`
	MediaPaths       types.Slice[string] `db:"media_paths"`
	SourceNodeID     types.Null[string]  `db:"source_node_id"`
	LastApprovalID   types.Null[string]  `db:"last_approval_id"`
	CreatedAt        time.Time           `db:"created_at" goqu:"skipupdate"`
	UpdatedAt        time.Time           `db:"updated_at"`
}

// ApprovalQueueItem is a prepared mutation awaiting human sign-off.
type ApprovalQueueItem struct {
	ID               string         `db:"approval_id" goqu:"skipupdate"`
	AccountID        string         `db:"account_id"`
	ActionKind       string         `db:"action_kind"`
	DraftID          types.Null[string] `db:"draft_id"`
	TargetRefs       types.Slice[string] `db:"target_refs"`
	PayloadSnapshot  string         `db:"payload_snapshot"`
	Status           ApprovalStatus `db:"status"`
	RejectionReason  types.Null[string] `db:"rejection_reason"`
	CreatedAt        time.Time      `db:"created_at" goqu:"skipupdate"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

// MutationAuditRecord is an immutable log row written exactly once per
// terminal gateway outcome. Never deleted, never updated.
type MutationAuditRecord struct {
	ID              string        `db:"audit_id" goqu:"skipupdate"`
	CorrelationID   string        `db:"correlation_id"`
	AccountID       string        `db:"account_id"`
	ToolName        string        `db:"tool_name"`
	Category        ToolCategory  `db:"category"`
	RequestFamily   RequestFamily `db:"request_family"`
	ParamsJSON      string        `db:"params_json"`
	PolicyDecision  types.Null[string] `db:"policy_decision"`
	Outcome         string        `db:"outcome"`
	ErrorCode       types.Null[string] `db:"error_code"`
	LatencyMS       int64         `db:"latency_ms"`
	IdempotencyHash string        `db:"idempotency_hash"`
	DraftID         types.Null[string] `db:"draft_id"`
	AuthorID        types.Null[string] `db:"author_id"`
	TargetID        types.Null[string] `db:"target_id"`
	NormalizedText  types.Null[string] `db:"normalized_text"`
	ResultJSON      types.Null[string] `db:"result_json"`
	CreatedAt       time.Time     `db:"created_at" goqu:"skipupdate"`
}

// McpTelemetryRecord is one row per MCP/CLI tool invocation. Retained 90 days.
type McpTelemetryRecord struct {
	ID             string        `db:"telemetry_id" goqu:"skipupdate"`
	ToolName       string        `db:"tool_name"`
	Category       ToolCategory  `db:"category"`
	LatencyMS      int64         `db:"latency_ms"`
	Success        bool          `db:"success"`
	ErrorCode      types.Null[string] `db:"error_code"`
	PolicyDecision types.Null[string] `db:"policy_decision"`
	Mode           string        `db:"mode"`
	CreatedAt      time.Time     `db:"created_at" goqu:"skipupdate"`
}

// RateLimitUsage is a per-day counter per action kind, keyed (account_id, date, kind).
type RateLimitUsage struct {
	AccountID string `db:"account_id"`
	Date      string `db:"date"` // YYYY-MM-DD in account's local timezone
	Kind      string `db:"kind"`
	Count     int    `db:"count"`
}

// ContentNode is ingested external content, keyed (source_id, relative_path).
type ContentNode struct {
	ID           string      `db:"node_id" goqu:"skipupdate"`
	SourceID     string      `db:"source_id"`
	RelativePath string      `db:"relative_path"`
	ContentHash  string      `db:"content_hash"`
	Title        types.Null[string] `db:"title"`
	Tags         types.Slice[string] `db:"tags"`
	Body         string      `db:"body"`
	Status       NodeStatus  `db:"status"`
	CreatedAt    time.Time   `db:"created_at" goqu:"skipupdate"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

// DraftSeed is an LLM-extracted tweetable hook derived from a ContentNode.
type DraftSeed struct {
	ID         string  `db:"seed_id" goqu:"skipupdate"`
	NodeID     string  `db:"node_id"`
	HookText   string  `db:"hook_text"`
	Angle      string  `db:"angle"`
	Archetype  string  `db:"archetype"`
	Score      float64 `db:"score"`
	CreatedAt  time.Time `db:"created_at" goqu:"skipupdate"`
}

// SourceContext is a registered content source (local folder, remote drive).
type SourceContext struct {
	ID         string       `db:"source_id" goqu:"skipupdate"`
	Type       string       `db:"type"`
	ConfigJSON string       `db:"config_json"`
	Cursor     types.Null[string] `db:"cursor"`
	Status     SourceStatus `db:"status"`
	CreatedAt  time.Time    `db:"created_at" goqu:"skipupdate"`
	UpdatedAt  time.Time    `db:"updated_at"`
}

// Session is a browser login session, key stored as a SHA-256 hash of the opaque token.
type Session struct {
	ID        string    `db:"session_id" goqu:"skipupdate"`
	CreatedAt time.Time `db:"created_at" goqu:"skipupdate"`
	ExpiresAt time.Time `db:"expires_at"`
}

// ProcessLock is a single row asserting a runner owns the database.
type ProcessLock struct {
	ID         int       `db:"id" goqu:"skipupdate"`
	Owner      string    `db:"owner"`
	AcquiredAt time.Time `db:"acquired_at"`
	HeartbeatAt time.Time `db:"heartbeat_at"`
}
