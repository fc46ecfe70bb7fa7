package state

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"chirpbot/internal/storage"
	logx "chirpbot/pkg/logx"
)

const (
	KeyFollows  = "follows"
	KeyTweets   = "tweets"
	KeyBotState = "bot_state"
)

// Repo is the typed view over storage. Every mutation is a read-modify-write
// under the store's per-key lock and is written back before returning.
type Repo struct {
	store storage.Store
	log   logx.Logger
}

func NewRepo(store storage.Store, log logx.Logger) *Repo {
	return &Repo{store: store, log: log.With(logx.Component("state"))}
}

func (r *Repo) Store() storage.Store { return r.store }

// decode unmarshals raw into a fresh document. A missing, empty or corrupt
// document yields the default; corruption is logged.
func decode[T any](r *Repo, key string, raw []byte, fresh func() *T) *T {
	doc := fresh()
	if len(raw) == 0 {
		return doc
	}
	if err := json.Unmarshal(raw, doc); err != nil {
		r.log.Error("corrupt document; using empty default", logx.String("key", key), logx.Err(err))
		return fresh()
	}
	return doc
}

func load[T any](ctx context.Context, r *Repo, key string, fresh func() *T) *T {
	raw, err := r.store.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.log.Error("document read failed; using empty default", logx.String("key", key), logx.Err(err))
		}
		return fresh()
	}
	return decode(r, key, raw, fresh)
}

func update[T any](ctx context.Context, r *Repo, key string, fresh func() *T, fn func(doc *T) error) error {
	var corrupt []byte
	err := r.store.Update(ctx, key, func(cur []byte) ([]byte, error) {
		doc := fresh()
		if len(cur) > 0 {
			if err := json.Unmarshal(cur, doc); err != nil {
				r.log.Error("corrupt document; rebuilding from empty", logx.String("key", key), logx.Err(err))
				corrupt = cur
				doc = fresh()
			}
		}
		if err := fn(doc); err != nil {
			return nil, err
		}
		return json.MarshalIndent(doc, "", "  ")
	})
	if corrupt != nil && err == nil {
		// Keep the unreadable bytes for manual recovery.
		if serr := r.store.Save(ctx, key+".corrupt", corrupt); serr != nil {
			r.log.Warn("saving corrupt copy failed", logx.String("key", key), logx.Err(serr))
		}
	}
	return err
}

// Follows returns the follow book.
func (r *Repo) Follows(ctx context.Context) *FollowBook {
	b := load(ctx, r, KeyFollows, NewFollowBook)
	b.normalize()
	return b
}

// UpdateFollows applies fn to the follow book and persists the result.
func (r *Repo) UpdateFollows(ctx context.Context, fn func(b *FollowBook) error) error {
	return update(ctx, r, KeyFollows, NewFollowBook, func(b *FollowBook) error {
		b.normalize()
		return fn(b)
	})
}

type tweetLog struct {
	Tweets []TweetRecord `json:"tweets"`
}

func newTweetLog() *tweetLog { return &tweetLog{} }

// Tweets returns the post history, newest first.
func (r *Repo) Tweets(ctx context.Context) []TweetRecord {
	out := load(ctx, r, KeyTweets, newTweetLog).Tweets
	slices.Reverse(out)
	return out
}

// AppendTweet records a published post.
func (r *Repo) AppendTweet(ctx context.Context, rec TweetRecord) error {
	return update(ctx, r, KeyTweets, newTweetLog, func(l *tweetLog) error {
		l.Tweets = append(l.Tweets, rec)
		return nil
	})
}

// BotState returns the shared bot state record.
func (r *Repo) BotState(ctx context.Context) *BotState {
	s := load(ctx, r, KeyBotState, NewBotState)
	s.normalize()
	return s
}

// UpdateBotState applies fn to the bot state and persists the result.
func (r *Repo) UpdateBotState(ctx context.Context, fn func(s *BotState) error) error {
	return update(ctx, r, KeyBotState, NewBotState, func(s *BotState) error {
		s.normalize()
		return fn(s)
	})
}
