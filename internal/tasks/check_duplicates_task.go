package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/gamesite-bff/internal/cms"
)

// maxPostsPerGame bounds the CMS query; any count above one is already a duplicate.
const maxPostsPerGame = 10

type PostLister interface {
	PostsByGameID(ctx context.Context, id int64, limit int) ([]cms.Post, error)
}

type CheckMarker interface {
	MarkChecked(ctx context.Context, gameID int64, duplicates []string, at time.Time) error
}

// CheckDuplicatesTask re-queries the CMS for every post tagged with a game ID
// and records whether more than one exists. It never modifies CMS posts.
type CheckDuplicatesTask struct {
	Task
	posts  PostLister
	ledger CheckMarker
}

func NewCheckDuplicatesTask(gameID int64, posts PostLister, ledger CheckMarker) *CheckDuplicatesTask {
	return &CheckDuplicatesTask{
		Task:   NewTask(TaskTypeCheckDuplicates, gameID),
		posts:  posts,
		ledger: ledger,
	}
}

func (t *CheckDuplicatesTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	posts, err := t.posts.PostsByGameID(ctx, t.GameID, maxPostsPerGame)
	if err != nil {
		return fmt.Errorf("failed to list posts: %w", err)
	}

	var duplicates []string
	if len(posts) > 1 {
		duplicates = make([]string, 0, len(posts))
		for _, post := range posts {
			duplicates = append(duplicates, post.Slug)
		}
		slog.Warn("Duplicate posts detected for game", "game_id", t.GameID, "count", len(posts), "slugs", duplicates)
	}

	if err := t.ledger.MarkChecked(ctx, t.GameID, duplicates, time.Now()); err != nil {
		return fmt.Errorf("failed to store check result: %w", err)
	}

	slog.Debug("Task completed",
		"type", string(t.Type),
		"game_id", t.GameID,
		"posts", len(posts),
		"duration", t.GetDuration().String())

	return nil
}
