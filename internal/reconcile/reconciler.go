// Package reconcile maps catalog game IDs to CMS post slugs, creating the
// post the first time a game is seen.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lysyi3m/gamesite-bff/internal/apperr"
	"github.com/lysyi3m/gamesite-bff/internal/cache"
	"github.com/lysyi3m/gamesite-bff/internal/cms"
	"github.com/lysyi3m/gamesite-bff/internal/database"
)

type PostStore interface {
	FindPostByGameID(ctx context.Context, id int64) (*cms.Post, error)
	CreateGamePost(ctx context.Context, in cms.NewGamePost) (*cms.Post, error)
}

// Locker serialises work on a key across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type Recorder interface {
	Record(ctx context.Context, res database.Resolution) error
}

var (
	_ PostStore = (*cms.Posts)(nil)
	_ Locker    = (*cache.Locker)(nil)
	_ Recorder  = (*database.Ledger)(nil)
)

// NopLocker is used without Redis. Concurrent resolutions in different
// processes can then both miss the lookup and create two posts.
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

type Options struct {
	Category string
	Locker   Locker
	Recorder Recorder
}

type Reconciler struct {
	posts    PostStore
	locker   Locker
	recorder Recorder
	category string
	group    singleflight.Group
	now      func() time.Time
}

func NewReconciler(posts PostStore, opts Options) *Reconciler {
	r := &Reconciler{
		posts:    posts,
		locker:   opts.Locker,
		recorder: opts.Recorder,
		category: opts.Category,
		now:      time.Now,
	}
	if r.locker == nil {
		r.locker = NopLocker{}
	}
	if r.category == "" {
		r.category = "Games"
	}
	return r
}

// ResolveSlug returns the slug of the CMS post for gameID, creating a
// published post titled name when none exists. Concurrent calls for the same
// game share one resolution.
func (r *Reconciler) ResolveSlug(ctx context.Context, gameID int64, name string) (string, error) {
	name = strings.TrimSpace(name)
	if gameID <= 0 {
		return "", apperr.Validation("reconcile.ResolveSlug", "game ID must be a positive integer")
	}
	if name == "" {
		return "", apperr.Validation("reconcile.ResolveSlug", "game name is required")
	}

	key := strconv.FormatInt(gameID, 10)
	ch := r.group.DoChan(key, func() (any, error) {
		// Detached so one caller's cancellation does not fail the others.
		return r.resolve(context.WithoutCancel(ctx), gameID, name)
	})

	select {
	case <-ctx.Done():
		return "", apperr.Upstream("reconcile.ResolveSlug", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (r *Reconciler) resolve(ctx context.Context, gameID int64, name string) (string, error) {
	unlock, err := r.locker.Lock(ctx, cache.SlugLockKey(gameID))
	if err != nil {
		return "", &Error{Stage: StageLookup, GameID: gameID, Err: fmt.Errorf("acquire lock: %w", err)}
	}
	defer unlock()

	post, err := r.posts.FindPostByGameID(ctx, gameID)
	if err != nil {
		return "", &Error{Stage: StageLookup, GameID: gameID, Err: err}
	}
	if post != nil {
		if post.Slug == "" {
			return "", apperr.Reconciliation("reconcile.ResolveSlug",
				fmt.Sprintf("post %s for game %d has no slug", post.ID, gameID))
		}
		r.record(ctx, gameID, name, post.Slug, false)
		return post.Slug, nil
	}

	created, err := r.posts.CreateGamePost(ctx, cms.NewGamePost{
		Title:    name,
		Category: r.category,
		GameID:   gameID,
	})
	if err != nil {
		return "", &Error{Stage: StageCreate, GameID: gameID, Err: err}
	}
	if created == nil || created.Slug == "" {
		return "", &Error{Stage: StageCreate, GameID: gameID, Err: errMissingSlug}
	}

	slog.Info("Created game post", "game_id", gameID, "slug", created.Slug, "post_id", created.ID)
	r.record(ctx, gameID, name, created.Slug, true)

	return created.Slug, nil
}

var errMissingSlug = errors.New("CMS accepted the post but returned no slug")

func (r *Reconciler) record(ctx context.Context, gameID int64, name, slug string, created bool) {
	if r.recorder == nil {
		return
	}
	err := r.recorder.Record(ctx, database.Resolution{
		GameID:     gameID,
		Name:       name,
		Slug:       slug,
		Created:    created,
		ResolvedAt: r.now(),
	})
	if err != nil {
		slog.Warn("Failed to record slug resolution", "game_id", gameID, "slug", slug, "error", err)
	}
}
