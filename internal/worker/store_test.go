package worker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisadapter "github.com/wikirace/wikipath/internal/adapter/redis"
	"github.com/wikirace/wikipath/internal/domain/search"
	"github.com/wikirace/wikipath/internal/domain/task"
)

func newTaskStore(t *testing.T) (*TaskStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisadapter.NewFromAddr(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })
	return NewTaskStore(redisadapter.NewStore(c), time.Hour), mr
}

func TestTaskStoreRoundTrip(t *testing.T) {
	store, _ := newTaskStore(t)
	ctx := context.Background()

	in := &task.Info{
		TaskID: "t1",
		Status: task.StatusSuccess,
		Result: &search.PathResult{
			Path:          []string{"A", "B"},
			Length:        2,
			StartPage:     "A",
			EndPage:       "B",
			SearchTime:    0.42,
			NodesExplored: 1,
		},
	}
	if err := store.Save(ctx, in); err != nil {
		t.Fatal(err)
	}
	if in.CreatedAt.IsZero() || in.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps stamped on Save")
	}

	out, ok, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected record found")
	}
	if out.Status != task.StatusSuccess || out.Result == nil || out.Result.Length != 2 {
		t.Fatalf("unexpected record: %+v", out)
	}
}

func TestTaskStoreUnknownID(t *testing.T) {
	store, _ := newTaskStore(t)

	_, ok, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected miss for unknown task id")
	}
}

func TestTaskStoreRecordsExpire(t *testing.T) {
	store, mr := newTaskStore(t)
	ctx := context.Background()

	_ = store.Save(ctx, &task.Info{TaskID: "t1", Status: task.StatusPending})
	mr.FastForward(2 * time.Hour)

	_, ok, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected record expired")
	}
}
