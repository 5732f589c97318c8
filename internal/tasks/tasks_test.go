package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/repositories"
	"github.com/desertthunder/spm/internal/shared"
	tu "github.com/desertthunder/spm/internal/testing"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// recordingCheckpoints keeps a copy of every checkpoint saved through it.
type recordingCheckpoints struct {
	*repositories.CheckpointRepository
	mu    sync.Mutex
	saves []models.Checkpoint
}

func (r *recordingCheckpoints) Save(ctx context.Context, cp *models.Checkpoint) error {
	if err := r.CheckpointRepository.Save(ctx, cp); err != nil {
		return err
	}
	r.mu.Lock()
	r.saves = append(r.saves, *cp)
	r.mu.Unlock()
	return nil
}

// failingHistory refuses new entries.
type failingHistory struct {
	*repositories.HistoryRepository
	err error
}

func (h *failingHistory) Add(context.Context, models.HistoryEntry) error { return h.err }

type fixture struct {
	engine      *PlaylistEngine
	library     *tu.MockLibrary
	checkpoints *recordingCheckpoints
	history     *repositories.HistoryRepository
	sessions    *repositories.SessionRepository
}

func newFixture(t *testing.T, library *tu.MockLibrary) *fixture {
	t.Helper()
	store := repositories.NewKVStore(tu.MustOpenStore(t))

	cps := repositories.NewCheckpointRepository(store, repositories.DefaultStaleAfter)
	cps.SetClock(func() time.Time { return testNow })

	f := &fixture{
		library:     library,
		checkpoints: &recordingCheckpoints{CheckpointRepository: cps},
		history:     repositories.NewHistoryRepository(store),
		sessions:    repositories.NewSessionRepository(store),
	}
	f.engine = NewPlaylistEngine(library, f.checkpoints, f.history, f.sessions, shared.NewLogger(io.Discard))
	f.engine.SetClock(func() time.Time { return testNow })
	return f
}

func copyRequest(tracks []models.Track) CopyRequest {
	return CopyRequest{
		Source: models.SourceRef{ID: "src", Name: "Mix"},
		Tracks: tracks,
		Name:   DerivedName("Mix", testNow),
	}
}

func TestPlaylistEngine_Copy(t *testing.T) {
	ctx := context.Background()

	t.Run("writes 250 tracks in three batches", func(t *testing.T) {
		f := newFixture(t, tu.NewMockLibrary())
		tracks := tu.NewTracks(250, testNow)

		result, err := f.engine.Copy(ctx, copyRequest(tracks), nil)
		if err != nil {
			t.Fatalf("Copy() error = %v", err)
		}

		batches := f.library.Batches[result.Playlist.ID]
		var sizes []int
		for _, b := range batches {
			sizes = append(sizes, len(b))
		}
		if !slices.Equal(sizes, []int{100, 100, 50}) {
			t.Errorf("batch sizes = %v, want [100 100 50]", sizes)
		}
		if result.Batches != 3 {
			t.Errorf("Batches = %d, want 3", result.Batches)
		}

		saves := f.checkpoints.saves
		if len(saves) != 5 {
			t.Fatalf("checkpoint saves = %d, want 5", len(saves))
		}
		if saves[0].Status != models.CheckpointCreating || saves[0].DestinationID != "" {
			t.Errorf("first checkpoint = %+v, want creating without destination", saves[0])
		}
		if saves[1].Status != models.CheckpointCreating || saves[1].DestinationID != result.Playlist.ID {
			t.Errorf("second checkpoint = %+v, want creating with destination", saves[1])
		}
		if saves[3].ItemsWritten != 200 || saves[3].Status != models.CheckpointInProgress {
			t.Errorf("checkpoint after batch 2 = %d/%s, want 200/in_progress", saves[3].ItemsWritten, saves[3].Status)
		}
		if saves[4].ItemsWritten != 250 || saves[4].Status != models.CheckpointCompleted {
			t.Errorf("checkpoint after batch 3 = %d/%s, want 250/completed", saves[4].ItemsWritten, saves[4].Status)
		}

		entries, err := f.history.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(entries) != 1 || entries[0].TrackCount != 250 {
			t.Fatalf("history = %+v, want one entry with 250 tracks", entries)
		}
		if entries[0].Source.Name != "Mix" || entries[0].ID != result.Playlist.ID {
			t.Errorf("history entry = %+v", entries[0])
		}
	})

	t.Run("checkpoint progress is monotonic and bounded", func(t *testing.T) {
		f := newFixture(t, tu.NewMockLibrary())
		if _, err := f.engine.Copy(ctx, copyRequest(tu.NewTracks(321, testNow)), nil); err != nil {
			t.Fatalf("Copy() error = %v", err)
		}

		prev := 0
		for i, cp := range f.checkpoints.saves {
			if cp.ItemsWritten < prev {
				t.Errorf("save %d: itemsWritten %d < %d", i, cp.ItemsWritten, prev)
			}
			if cp.ItemsWritten > cp.TotalItems {
				t.Errorf("save %d: itemsWritten %d > total %d", i, cp.ItemsWritten, cp.TotalItems)
			}
			prev = cp.ItemsWritten
		}
		if prev != 321 {
			t.Errorf("final itemsWritten = %d, want 321", prev)
		}
	})

	t.Run("submits oldest first and anchors on the newest", func(t *testing.T) {
		f := newFixture(t, tu.NewMockLibrary())
		tracks := tu.NewTracks(5, testNow)

		result, err := f.engine.Copy(ctx, copyRequest(tracks), nil)
		if err != nil {
			t.Fatalf("Copy() error = %v", err)
		}

		got := f.library.Submitted(result.Playlist.ID)
		want := []string{"spotify:track:t4", "spotify:track:t3", "spotify:track:t2", "spotify:track:t1", "spotify:track:t0"}
		if !slices.Equal(got, want) {
			t.Errorf("submitted = %v, want %v", got, want)
		}
		if result.Entry.LastItem == nil || result.Entry.LastItem.ID != "t0" {
			t.Errorf("LastItem = %+v, want t0", result.Entry.LastItem)
		}
		if tracks[0].ID != "t0" {
			t.Error("Copy() reordered the caller's selection")
		}
	})

	t.Run("creates the playlist for the cached user", func(t *testing.T) {
		lib := tu.NewMockLibrary()
		f := newFixture(t, lib)
		req := copyRequest(tu.NewTracks(1, testNow))
		req.Public = true

		if _, err := f.engine.Copy(ctx, req, nil); err != nil {
			t.Fatalf("Copy() error = %v", err)
		}

		created := lib.Created[0]
		if created.Description != "Created from Mix" || !created.Public {
			t.Errorf("created = %+v", created)
		}
		user, err := f.sessions.LoadUser(ctx)
		if err != nil || user == nil || user.ID != "user-1" {
			t.Errorf("cached user = %+v, %v", user, err)
		}
	})

	t.Run("sends progress updates", func(t *testing.T) {
		f := newFixture(t, tu.NewMockLibrary())
		progress := make(chan ProgressUpdate, 16)

		if _, err := f.engine.Copy(ctx, copyRequest(tu.NewTracks(150, testNow)), progress); err != nil {
			t.Fatalf("Copy() error = %v", err)
		}
		close(progress)

		var phases []Phase
		for u := range progress {
			phases = append(phases, u.Phase)
		}
		want := []Phase{CreatePlaylist, CreatePlaylist, WriteTracks, WriteTracks, Archive}
		if !slices.Equal(phases, want) {
			t.Errorf("phases = %v, want %v", phases, want)
		}
	})

	t.Run("does not block on a full progress channel", func(t *testing.T) {
		f := newFixture(t, tu.NewMockLibrary())
		progress := make(chan ProgressUpdate)

		if _, err := f.engine.Copy(ctx, copyRequest(tu.NewTracks(3, testNow)), progress); err != nil {
			t.Fatalf("Copy() error = %v", err)
		}
	})

	t.Run("rejects invalid requests before any call", func(t *testing.T) {
		tests := []struct {
			name string
			req  CopyRequest
		}{
			{name: "empty selection", req: CopyRequest{Name: "x"}},
			{name: "blank name", req: CopyRequest{Name: "  ", Tracks: tu.NewTracks(1, testNow)}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				lib := tu.NewMockLibrary()
				f := newFixture(t, lib)

				_, err := f.engine.Copy(ctx, tt.req, nil)
				if !errors.Is(err, shared.ErrInvalidInput) {
					t.Errorf("Copy() error = %v, want ErrInvalidInput", err)
				}
				if lib.Calls != 0 {
					t.Errorf("library calls = %d, want 0", lib.Calls)
				}
				if len(f.checkpoints.saves) != 0 {
					t.Error("checkpoint saved for an invalid request")
				}
			})
		}
	})

	t.Run("failed batch leaves the last checkpoint", func(t *testing.T) {
		lib := tu.NewMockLibrary()
		lib.AddErr = fmt.Errorf("%w: status 502", shared.ErrServiceUnavailable)
		lib.FailAddAt = 3
		f := newFixture(t, lib)

		_, err := f.engine.Copy(ctx, copyRequest(tu.NewTracks(250, testNow)), nil)

		var bwe *BatchWriteError
		if !errors.As(err, &bwe) {
			t.Fatalf("Copy() error = %v, want *BatchWriteError", err)
		}
		if !errors.Is(err, shared.ErrBatchWrite) || !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("error chain = %v", err)
		}
		if bwe.Checkpoint.ItemsWritten != 200 || bwe.Checkpoint.Status != models.CheckpointInProgress {
			t.Errorf("error checkpoint = %d/%s, want 200/in_progress", bwe.Checkpoint.ItemsWritten, bwe.Checkpoint.Status)
		}

		stored, err := f.engine.PendingInterruption(ctx)
		if err != nil {
			t.Fatalf("PendingInterruption() error = %v", err)
		}
		if stored == nil || stored.ItemsWritten != 200 || stored.DestinationID == "" {
			t.Fatalf("stored checkpoint = %+v", stored)
		}

		entries, _ := f.history.List(ctx)
		if len(entries) != 0 {
			t.Errorf("history = %+v, want empty", entries)
		}
	})

	t.Run("failed create leaves a creating checkpoint", func(t *testing.T) {
		lib := tu.NewMockLibrary()
		lib.CreateErr = shared.ErrPermissionDenied
		f := newFixture(t, lib)

		_, err := f.engine.Copy(ctx, copyRequest(tu.NewTracks(2, testNow)), nil)
		if !errors.Is(err, shared.ErrBatchWrite) {
			t.Fatalf("Copy() error = %v, want ErrBatchWrite", err)
		}

		cp, _ := f.engine.PendingInterruption(ctx)
		if cp == nil || cp.Status != models.CheckpointCreating || cp.ItemsWritten != 0 {
			t.Errorf("checkpoint = %+v, want creating with nothing written", cp)
		}
	})

	t.Run("history failure keeps a recoverable checkpoint", func(t *testing.T) {
		lib := tu.NewMockLibrary()
		f := newFixture(t, lib)
		broken := NewPlaylistEngine(lib, f.checkpoints, &failingHistory{HistoryRepository: f.history, err: errors.New("disk full")},
			f.sessions, shared.NewLogger(io.Discard))
		broken.SetClock(func() time.Time { return testNow })

		_, err := broken.Copy(ctx, copyRequest(tu.NewTracks(3, testNow)), nil)

		var bwe *BatchWriteError
		if !errors.As(err, &bwe) {
			t.Fatalf("Copy() error = %v, want *BatchWriteError", err)
		}
		if bwe.Checkpoint.Status != models.CheckpointCompleted || bwe.Checkpoint.ItemsWritten != 3 {
			t.Errorf("error checkpoint = %d/%s, want 3/completed", bwe.Checkpoint.ItemsWritten, bwe.Checkpoint.Status)
		}

		pending, err := f.engine.PendingInterruption(ctx)
		if err != nil {
			t.Fatalf("PendingInterruption() error = %v", err)
		}
		if pending == nil || pending.DestinationID != bwe.Checkpoint.DestinationID {
			t.Fatalf("PendingInterruption() = %+v, want the unarchived copy", pending)
		}

		entry, err := f.engine.AcceptCheckpoint(ctx)
		if err != nil {
			t.Fatalf("AcceptCheckpoint() error = %v", err)
		}
		if entry.TrackCount != 3 {
			t.Errorf("TrackCount = %d, want 3", entry.TrackCount)
		}
		if pending, _ := f.engine.PendingInterruption(ctx); pending != nil {
			t.Errorf("checkpoint still pending after accept: %+v", pending)
		}
	})

	t.Run("failed user lookup saves nothing", func(t *testing.T) {
		lib := tu.NewMockLibrary()
		lib.MeErr = shared.ErrNotAuthenticated
		f := newFixture(t, lib)

		_, err := f.engine.Copy(ctx, copyRequest(tu.NewTracks(2, testNow)), nil)
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("Copy() error = %v, want ErrNotAuthenticated", err)
		}
		if len(f.checkpoints.saves) != 0 {
			t.Error("checkpoint saved before the user was known")
		}
	})
}

func TestPlaylistEngine_Checkpoints(t *testing.T) {
	ctx := context.Background()

	t.Run("FinishCheckpoint clears its own checkpoint", func(t *testing.T) {
		f := newFixture(t, tu.NewMockLibrary())
		result, err := f.engine.Copy(ctx, copyRequest(tu.NewTracks(3, testNow)), nil)
		if err != nil {
			t.Fatalf("Copy() error = %v", err)
		}

		cp, _ := f.checkpoints.Load(ctx)
		if cp == nil || cp.Status != models.CheckpointCompleted {
			t.Fatalf("checkpoint = %+v, want completed", cp)
		}
		if pending, _ := f.engine.PendingInterruption(ctx); pending != nil {
			t.Errorf("completed checkpoint reported as interruption: %+v", pending)
		}

		if err := f.engine.FinishCheckpoint(ctx, result.Checkpoint.OperationID); err != nil {
			t.Fatalf("FinishCheckpoint() error = %v", err)
		}
		if cp, _ := f.checkpoints.Load(ctx); cp != nil {
			t.Errorf("checkpoint = %+v, want cleared", cp)
		}
	})

	t.Run("FinishCheckpoint keeps a newer checkpoint", func(t *testing.T) {
		f := newFixture(t, tu.NewMockLibrary())
		first, err := f.engine.Copy(ctx, copyRequest(tu.NewTracks(3, testNow)), nil)
		if err != nil {
			t.Fatalf("Copy() error = %v", err)
		}
		second, err := f.engine.Copy(ctx, copyRequest(tu.NewTracks(2, testNow)), nil)
		if err != nil {
			t.Fatalf("Copy() error = %v", err)
		}

		if err := f.engine.FinishCheckpoint(ctx, first.Checkpoint.OperationID); err != nil {
			t.Fatalf("FinishCheckpoint() error = %v", err)
		}
		cp, _ := f.checkpoints.Load(ctx)
		if cp == nil || cp.OperationID != second.Checkpoint.OperationID {
			t.Errorf("checkpoint = %+v, want the second copy's", cp)
		}
	})

	t.Run("stale checkpoints are never reported", func(t *testing.T) {
		f := newFixture(t, tu.NewMockLibrary())
		stale := models.Checkpoint{
			OperationID:     "old",
			Timestamp:       testNow.Add(-25 * time.Hour),
			DestinationName: "old copy",
			TotalItems:      10,
			ItemsWritten:    4,
			Status:          models.CheckpointInProgress,
		}
		if err := f.checkpoints.Save(ctx, &stale); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		cp, err := f.engine.PendingInterruption(ctx)
		if err != nil || cp != nil {
			t.Errorf("PendingInterruption() = %+v, %v; want nil", cp, err)
		}
	})

	t.Run("AcceptCheckpoint archives the partial copy", func(t *testing.T) {
		lib := tu.NewMockLibrary()
		lib.AddErr = shared.ErrServiceUnavailable
		lib.FailAddAt = 3
		f := newFixture(t, lib)

		if _, err := f.engine.Copy(ctx, copyRequest(tu.NewTracks(250, testNow)), nil); err == nil {
			t.Fatal("Copy() expected error")
		}

		entry, err := f.engine.AcceptCheckpoint(ctx)
		if err != nil {
			t.Fatalf("AcceptCheckpoint() error = %v", err)
		}
		if entry.TrackCount != 200 {
			t.Errorf("TrackCount = %d, want 200", entry.TrackCount)
		}
		// Batch two ends at selection index 50, the newest track that landed.
		if entry.LastItem == nil || entry.LastItem.ID != "t50" {
			t.Errorf("LastItem = %+v, want t50", entry.LastItem)
		}
		if cp, _ := f.checkpoints.Load(ctx); cp != nil {
			t.Errorf("checkpoint = %+v, want cleared", cp)
		}
		if _, err := f.history.Get(ctx, entry.ID); err != nil {
			t.Errorf("history entry missing: %v", err)
		}
	})

	t.Run("AcceptCheckpoint without a destination", func(t *testing.T) {
		lib := tu.NewMockLibrary()
		lib.CreateErr = shared.ErrServiceUnavailable
		f := newFixture(t, lib)
		f.engine.Copy(ctx, copyRequest(tu.NewTracks(1, testNow)), nil)

		if _, err := f.engine.AcceptCheckpoint(ctx); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("AcceptCheckpoint() error = %v, want ErrInvalidInput", err)
		}
		if err := f.engine.DiscardCheckpoint(ctx); err != nil {
			t.Fatalf("DiscardCheckpoint() error = %v", err)
		}
		if cp, _ := f.engine.PendingInterruption(ctx); cp != nil {
			t.Errorf("checkpoint = %+v, want discarded", cp)
		}
	})

	t.Run("AcceptCheckpoint with nothing pending", func(t *testing.T) {
		f := newFixture(t, tu.NewMockLibrary())
		if _, err := f.engine.AcceptCheckpoint(ctx); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("AcceptCheckpoint() error = %v, want ErrNotFound", err)
		}
	})
}

func TestPlaylistEngine_DeletePlaylist(t *testing.T) {
	ctx := context.Background()
	entry := models.HistoryEntry{ID: "pl-1", Name: "copy", CreatedAt: testNow}

	t.Run("removes history on success", func(t *testing.T) {
		lib := tu.NewMockLibrary()
		f := newFixture(t, lib)
		f.history.Add(ctx, entry)

		if err := f.engine.DeletePlaylist(ctx, "pl-1"); err != nil {
			t.Fatalf("DeletePlaylist() error = %v", err)
		}
		if !slices.Equal(lib.Unfollows, []string{"pl-1"}) {
			t.Errorf("unfollows = %v", lib.Unfollows)
		}
		if _, err := f.history.Get(ctx, "pl-1"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("keeps history when not the owner", func(t *testing.T) {
		lib := tu.NewMockLibrary()
		lib.UnfollowErr = shared.ErrPermissionDenied
		f := newFixture(t, lib)
		f.history.Add(ctx, entry)

		err := f.engine.DeletePlaylist(ctx, "pl-1")
		if !errors.Is(err, shared.ErrPermissionDenied) {
			t.Fatalf("DeletePlaylist() error = %v, want ErrPermissionDenied", err)
		}
		if _, err := f.history.Get(ctx, "pl-1"); err != nil {
			t.Errorf("history entry removed: %v", err)
		}
	})

	t.Run("unknown entry", func(t *testing.T) {
		lib := tu.NewMockLibrary()
		f := newFixture(t, lib)

		if err := f.engine.DeletePlaylist(ctx, "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("DeletePlaylist() error = %v, want ErrNotFound", err)
		}
		if lib.Calls != 0 {
			t.Errorf("library calls = %d, want 0", lib.Calls)
		}
	})
}

func TestPhase_String(t *testing.T) {
	for p := FetchPlaylists; p <= Locate; p++ {
		if p.String() == "" {
			t.Errorf("Phase(%d).String() is empty", p)
		}
	}
	if Phase(99).String() != "" {
		t.Error("unknown phase should have an empty name")
	}
}
