package postgres

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

var tweetColumns = []any{"tweet_id", "author_id", "text", "observed_at", "created_at", "like_count", "retweet_count", "reply_count", "score", "category", "source_node_id", "conversation_id"}

func scanTweet(scan func(...any) error) (core.OriginalTweet, error) {
	var (
		tweetID, authorID, text, category                string
		observedAt, createdAt                              time.Time
		likeCount, retweetCount, replyCount               int
		score                                              float64
		sourceNodeID, conversationID                       sql.NullString
	)
	if err := scan(&tweetID, &authorID, &text, &observedAt, &createdAt, &likeCount, &retweetCount, &replyCount, &score, &category, &sourceNodeID, &conversationID); err != nil {
		return core.OriginalTweet{}, err
	}

	t := core.OriginalTweet{
		TweetID:      tweetID,
		AuthorID:     authorID,
		Text:         text,
		ObservedAt:   observedAt,
		CreatedAt:    createdAt,
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
		"observed_at":     t.ObservedAt,
		"created_at":      t.CreatedAt,
		"like_count":      t.LikeCount,
		"retweet_count":   t.RetweetCount,
		"reply_count":     t.ReplyCount,
		"score":           t.Score,
		"category":        string(t.Category),
		"source_node_id":  sourceNodeID,
		"conversation_id": conversationID,
	}
}

func (s *Store) PutOriginalTweet(ctx context.Context, t core.OriginalTweet) error {
	record := tweetToRecord(t)

	query, _, err := s.goqu.Insert(s.tables.originalTweets).Rows(record).
		OnConflict(goqu.DoUpdate("tweet_id", goqu.Record{
			"like_count":    t.LikeCount,
			"retweet_count": t.RetweetCount,
			"reply_count":   t.ReplyCount,
			"score":         t.Score,
		})).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert tweet query: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("upsert tweet %q: %w", t.TweetID, err)
	}
	return nil
}

func (s *Store) GetOriginalTweet(ctx context.Context, tweetID string) (core.OriginalTweet, error) {
	query, _, err := s.goqu.From(s.tables.originalTweets).Select(tweetColumns...).Where(goqu.I("tweet_id").Eq(tweetID)).ToSQL()
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
		Select(tweetColumns...).
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
