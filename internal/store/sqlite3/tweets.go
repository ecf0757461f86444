package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/worldline-go/types"

	"github.com/aramirez087/tuitbot/internal/core"
)

const tweetColumns = "tweet_id, author_id, text, observed_at, created_at, like_count, retweet_count, reply_count, score, category, source_node_id, conversation_id"

func scanTweet(scan func(...any) error) (core.OriginalTweet, error) {
	var (
		tweetID, authorID, text, observedAt, createdAt, category string
		likeCount, retweetCount, replyCount                      int
		score                                                     float64
		sourceNodeID, conversationID                              sql.NullString
	)
	if err := scan(&tweetID, &authorID, &text, &observedAt, &createdAt, &likeCount, &retweetCount, &replyCount, &score, &category, &sourceNodeID, &conversationID); err != nil {
		return core.OriginalTweet{}, err
	}

	observed, err := time.Parse(time.RFC3339, observedAt)
	if err != nil {
		return core.OriginalTweet{}, fmt.Errorf("parse observed_at: %w", err)
	}
	created, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return core.OriginalTweet{}, fmt.Errorf("parse created_at: %w", err)
	}

	t := core.OriginalTweet{
		TweetID:      tweetID,
		AuthorID:     authorID,
		Text:         text,
		ObservedAt:   observed,
		CreatedAt:    created,
		LikeCount:    likeCount,
		RetweetCount: retweetCount,
		ReplyCount:   replyCount,
		Score:        score,
		Category:     core.TweetCategory(category),
	}
	if sourceNodeID.Valid {
		t.SourceNodeID = types.NewNull(sourceNodeID.String)
	}
	if conversationID.Valid {
		t.ConversationID = types.NewNull(conversationID.String)
	}
	return t, nil
}

func tweetToRecord(t core.OriginalTweet) goqu.Record {
	var sourceNodeID, conversationID any
	if t.SourceNodeID.Valid {
		sourceNodeID = t.SourceNodeID.V
	}
	if t.ConversationID.Valid {
		conversationID = t.ConversationID.V
	}

	return goqu.Record{
		"tweet_id":        t.TweetID,
		"author_id":       t.AuthorID,
		"text":            t.Text,
		"observed_at":     t.ObservedAt.Format(time.RFC3339),
		"created_at":      t.CreatedAt.Format(time.RFC3339),
		"like_count":      t.LikeCount,
		"retweet_count":   t.RetweetCount,
		"reply_count":     t.ReplyCount,
		"score":           t.Score,
		"category":        string(t.Category),
		"source_node_id":  sourceNodeID,
		"conversation_id": conversationID,
	}
}

// PutOriginalTweet inserts the tweet if unseen, or refreshes its mutable
// engagement counters and score if already observed (tweet_id is immutable).
func (s *Store) PutOriginalTweet(ctx context.Context, t core.OriginalTweet) error {
	existsQuery, _, err := s.goqu.From(s.tables.originalTweets).Select("tweet_id").Where(goqu.I("tweet_id").Eq(t.TweetID)).ToSQL()
	if err != nil {
		return fmt.Errorf("build exists query: %w", err)
	}

	var existingID string
	err = s.conn.QueryRowContext(ctx, existsQuery).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		insertQuery, _, buildErr := s.goqu.Insert(s.tables.originalTweets).Rows(tweetToRecord(t)).ToSQL()
		if buildErr != nil {
			return fmt.Errorf("build insert tweet query: %w", buildErr)
		}
		if _, execErr := s.conn.ExecContext(ctx, insertQuery); execErr != nil {
			return fmt.Errorf("insert tweet %q: %w", t.TweetID, execErr)
		}
	case err != nil:
		return fmt.Errorf("check tweet existence: %w", err)
	default:
		updateQuery, _, buildErr := s.goqu.Update(s.tables.originalTweets).Set(goqu.Record{
			"like_count":    t.LikeCount,
			"retweet_count": t.RetweetCount,
			"reply_count":   t.ReplyCount,
			"score":         t.Score,
		}).Where(goqu.I("tweet_id").Eq(t.TweetID)).ToSQL()
		if buildErr != nil {
			return fmt.Errorf("build update tweet query: %w", buildErr)
		}
		if _, execErr := s.conn.ExecContext(ctx, updateQuery); execErr != nil {
			return fmt.Errorf("update tweet %q: %w", t.TweetID, execErr)
		}
	}

	return nil
}

func (s *Store) GetOriginalTweet(ctx context.Context, tweetID string) (core.OriginalTweet, error) {
	query, _, err := s.goqu.From(s.tables.originalTweets).
		Select("tweet_id", "author_id", "text", "observed_at", "created_at", "like_count", "retweet_count", "reply_count", "score", "category", "source_node_id", "conversation_id").
		Where(goqu.I("tweet_id").Eq(tweetID)).
		ToSQL()
	if err != nil {
		return core.OriginalTweet{}, fmt.Errorf("build get tweet query: %w", err)
	}

	t, err := scanTweet(s.conn.QueryRowContext(ctx, query).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.OriginalTweet{}, core.NewError(core.CodeNotFound, "tweet not found")
	}
	if err != nil {
		return core.OriginalTweet{}, fmt.Errorf("get tweet %q: %w", tweetID, err)
	}
	return t, nil
}

func (s *Store) ListTopScoredTweets(ctx context.Context, category core.TweetCategory, limit int) ([]core.OriginalTweet, error) {
	query, _, err := s.goqu.From(s.tables.originalTweets).
		Select("tweet_id", "author_id", "text", "observed_at", "created_at", "like_count", "retweet_count", "reply_count", "score", "category", "source_node_id", "conversation_id").
		Where(goqu.I("category").Eq(string(category))).
		Order(goqu.I("score").Desc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build top scored query: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list top scored tweets: %w", err)
	}
	defer rows.Close()

	var result []core.OriginalTweet
	for rows.Next() {
		t, err := scanTweet(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan tweet row: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
