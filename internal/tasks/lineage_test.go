package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/shared"
	tu "github.com/desertthunder/spm/internal/testing"
)

func TestDerivedName(t *testing.T) {
	t.Run("round trips through ParseDerivedName", func(t *testing.T) {
		name := DerivedName("Road Trip", testNow)
		if name != "New - Road Trip - 2024-05-01 ✨" {
			t.Fatalf("DerivedName() = %q", name)
		}

		parent, date, ok := ParseDerivedName(name)
		if !ok || parent != "Road Trip" || !date.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("ParseDerivedName() = %q, %v, %v", parent, date, ok)
		}
	})

	tests := []struct {
		name   string
		input  string
		parent string
		ok     bool
	}{
		{name: "without marker", input: "New - Mix - 2023-12-31", parent: "Mix", ok: true},
		{name: "parent with separator", input: "New - A - B - 2024-01-02 ✨", parent: "A - B", ok: true},
		{name: "not derived", input: "Mix", ok: false},
		{name: "bad date", input: "New - Mix - 2024-13-40", ok: false},
		{name: "missing date", input: "New - Mix - ✨", ok: false},
		{name: "trailing text", input: "New - Mix - 2024-01-02 copy", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent, _, ok := ParseDerivedName(tt.input)
			if ok != tt.ok || parent != tt.parent {
				t.Errorf("ParseDerivedName(%q) = %q, %v; want %q, %v", tt.input, parent, ok, tt.parent, tt.ok)
			}
		})
	}

	if Description("Mix") != "Created from Mix" {
		t.Errorf("Description() = %q", Description("Mix"))
	}
}

func TestDetectOrigins(t *testing.T) {
	child := models.Playlist{ID: "c1", Name: "New - Mix - 2024-03-01 ✨"}

	t.Run("requires an existing parent", func(t *testing.T) {
		got := DetectOrigins([]models.Playlist{child, {ID: "x", Name: "Other"}})
		if len(got) != 0 {
			t.Errorf("DetectOrigins() = %+v, want none", got)
		}
	})

	t.Run("reports a child whose parent exists", func(t *testing.T) {
		parent := models.Playlist{ID: "p1", Name: "Mix"}
		got := DetectOrigins([]models.Playlist{parent, child})
		if len(got) != 1 {
			t.Fatalf("DetectOrigins() = %+v, want one detection", got)
		}
		d := got[0]
		if d.Child.ID != "c1" || d.Parent.ID != "p1" || d.ParentName != "Mix" {
			t.Errorf("detection = %+v", d)
		}
		if !d.DerivedDate.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("DerivedDate = %v", d.DerivedDate)
		}
	})

	t.Run("parent match is exact", func(t *testing.T) {
		got := DetectOrigins([]models.Playlist{child, {ID: "p1", Name: "mix"}, {ID: "p2", Name: "Mix 2"}})
		if len(got) != 0 {
			t.Errorf("DetectOrigins() = %+v, want none", got)
		}
	})

	t.Run("a playlist is not its own parent", func(t *testing.T) {
		self := models.Playlist{ID: "s", Name: "New - New - Mix - 2024-01-01 - 2024-02-01"}
		twin := models.Playlist{ID: "s", Name: "New - Mix - 2024-01-01"}
		got := DetectOrigins([]models.Playlist{self, twin})
		if len(got) != 0 {
			t.Errorf("DetectOrigins() = %+v, want none", got)
		}
	})

	t.Run("chains of derived playlists", func(t *testing.T) {
		first := models.Playlist{ID: "c1", Name: "New - Mix - 2024-01-01"}
		second := models.Playlist{ID: "c2", Name: "New - New - Mix - 2024-01-01 - 2024-02-01 ✨"}
		got := DetectOrigins([]models.Playlist{{ID: "p", Name: "Mix"}, first, second})
		if len(got) != 2 || got[1].Parent.ID != "c1" {
			t.Errorf("DetectOrigins() = %+v, want two detections", got)
		}
	})
}

func TestOwnedBy(t *testing.T) {
	ctx := context.Background()
	mine := models.Playlist{ID: "p1", Name: "Chill", OwnerID: "user-1"}

	t.Run("followed child is not detected", func(t *testing.T) {
		followed := models.Playlist{ID: "c1", Name: "New - Chill - 2024-05-01", OwnerID: "someone-else"}
		playlists := []models.Playlist{mine, followed}

		if got := DetectOrigins(OwnedBy(playlists, "user-1")); len(got) != 0 {
			t.Errorf("DetectOrigins() = %+v, want none", got)
		}
	})

	t.Run("followed parent is not a match", func(t *testing.T) {
		parent := models.Playlist{ID: "p2", Name: "Radar", OwnerID: "spotify"}
		child := models.Playlist{ID: "c2", Name: "New - Radar - 2024-05-01 ✨", OwnerID: "user-1"}

		if got := DetectOrigins(OwnedBy([]models.Playlist{parent, child}, "user-1")); len(got) != 0 {
			t.Errorf("DetectOrigins() = %+v, want none", got)
		}
	})

	t.Run("keeps order of owned playlists", func(t *testing.T) {
		other := models.Playlist{ID: "x", Name: "Theirs", OwnerID: "someone-else"}
		child := models.Playlist{ID: "c1", Name: "New - Chill - 2024-05-01", OwnerID: "user-1"}
		got := OwnedBy([]models.Playlist{mine, other, child}, "user-1")
		if len(got) != 2 || got[0].ID != "p1" || got[1].ID != "c1" {
			t.Errorf("OwnedBy() = %+v", got)
		}
	})

	t.Run("engine filters by the current user", func(t *testing.T) {
		lib := tu.NewMockLibrary(
			models.Playlist{ID: "p1", Name: "Chill"},
			models.Playlist{ID: "c1", Name: "New - Chill - 2024-05-01", OwnerID: "someone-else"},
			models.Playlist{ID: "c2", Name: "New - Chill - 2024-06-01 ✨"},
		)
		f := newFixture(t, lib)

		playlists, err := f.engine.OwnedPlaylists(ctx, nil)
		if err != nil {
			t.Fatalf("OwnedPlaylists() error = %v", err)
		}
		if len(playlists) != 2 {
			t.Fatalf("OwnedPlaylists() = %+v, want p1 and c2", playlists)
		}

		detections := DetectOrigins(playlists)
		if len(detections) != 1 || detections[0].Child.ID != "c2" {
			t.Errorf("DetectOrigins() = %+v, want only c2", detections)
		}
	})

	t.Run("engine reports user lookup errors", func(t *testing.T) {
		lib := tu.NewMockLibrary(mine)
		lib.MeErr = shared.ErrNotAuthenticated
		f := newFixture(t, lib)

		if _, err := f.engine.OwnedPlaylists(ctx, nil); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("OwnedPlaylists() error = %v, want ErrNotAuthenticated", err)
		}
	})
}

func TestPlaylistEngine_ReconcileHistory(t *testing.T) {
	ctx := context.Background()
	parent := models.Playlist{ID: "p1", Name: "Mix"}
	child := models.Playlist{ID: "c1", Name: "New - Mix - 2024-03-01 ✨", TrackCount: 3, URL: "https://open.spotify.com/playlist/c1"}

	newLibrary := func() *tu.MockLibrary {
		lib := tu.NewMockLibrary(parent, child)
		lib.Tracks["c1"] = tu.NewTracks(3, testNow)
		return lib
	}

	t.Run("creates missing entries", func(t *testing.T) {
		f := newFixture(t, newLibrary())
		detections := DetectOrigins(f.library.Lists)

		result, err := f.engine.ReconcileHistory(ctx, detections, nil)
		if err != nil {
			t.Fatalf("ReconcileHistory() error = %v", err)
		}
		if result.Added != 1 || result.Enriched != 0 {
			t.Errorf("result = %+v, want 1 added", result)
		}

		entry, err := f.history.Get(ctx, "c1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if entry.LastItem == nil || entry.LastItem.ID != "t0" {
			t.Errorf("LastItem = %+v, want t0", entry.LastItem)
		}
		if entry.Source != (models.SourceRef{ID: "p1", Name: "Mix"}) || entry.TrackCount != 3 {
			t.Errorf("entry = %+v", entry)
		}
		if !entry.CreatedAt.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("CreatedAt = %v", entry.CreatedAt)
		}
	})

	t.Run("enriches entries without an anchor", func(t *testing.T) {
		f := newFixture(t, newLibrary())
		f.history.Add(ctx, models.HistoryEntry{ID: "c1", Name: child.Name, CreatedAt: testNow, LastItem: &models.LastItem{Title: "lost id"}})

		result, err := f.engine.ReconcileHistory(ctx, DetectOrigins(f.library.Lists), nil)
		if err != nil {
			t.Fatalf("ReconcileHistory() error = %v", err)
		}
		if result.Enriched != 1 || result.Added != 0 {
			t.Errorf("result = %+v, want 1 enriched", result)
		}

		entry, _ := f.history.Get(ctx, "c1")
		if !entry.HasAnchor() || entry.LastItem.ID != "t0" || entry.Source.ID != "p1" {
			t.Errorf("entry = %+v", entry)
		}
	})

	t.Run("leaves anchored entries alone", func(t *testing.T) {
		lib := newLibrary()
		f := newFixture(t, lib)
		f.history.Add(ctx, models.HistoryEntry{ID: "c1", Name: child.Name, CreatedAt: testNow, LastItem: &models.LastItem{ID: "old"}})
		calls := lib.Calls

		result, err := f.engine.ReconcileHistory(ctx, DetectOrigins(lib.Lists), nil)
		if err != nil {
			t.Fatalf("ReconcileHistory() error = %v", err)
		}
		if result != (ReconcileResult{}) || lib.Calls != calls {
			t.Errorf("result = %+v with %d calls, want no changes", result, lib.Calls-calls)
		}
	})

	t.Run("empty child is recorded without anchor", func(t *testing.T) {
		lib := newLibrary()
		lib.Tracks["c1"] = nil
		f := newFixture(t, lib)

		if _, err := f.engine.ReconcileHistory(ctx, DetectOrigins(lib.Lists), nil); err != nil {
			t.Fatalf("ReconcileHistory() error = %v", err)
		}
		entry, err := f.history.Get(ctx, "c1")
		if err != nil || entry.HasAnchor() {
			t.Errorf("entry = %+v, %v; want entry without anchor", entry, err)
		}
	})

	t.Run("propagates fetch errors", func(t *testing.T) {
		lib := newLibrary()
		lib.TracksErr = shared.ErrServiceUnavailable
		f := newFixture(t, lib)

		if _, err := f.engine.ReconcileHistory(ctx, DetectOrigins(lib.Lists), nil); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("ReconcileHistory() error = %v, want ErrServiceUnavailable", err)
		}
	})
}

func TestPlaylistEngine_LocateAndPreselect(t *testing.T) {
	ctx := context.Background()
	parent := models.Playlist{ID: "p1", Name: "Mix", TrackCount: 10}

	newLibrary := func() *tu.MockLibrary {
		lib := tu.NewMockLibrary(parent)
		lib.Tracks["p1"] = tu.NewTracks(10, testNow)
		return lib
	}

	for _, k := range []int{0, 1, 4, 9} {
		t.Run(fmt.Sprintf("anchor at %d", k), func(t *testing.T) {
			f := newFixture(t, newLibrary())
			anchor := f.library.Tracks["p1"][k].ID

			p, err := f.engine.LocateAndPreselect(ctx, "Mix", anchor, nil)
			if err != nil {
				t.Fatalf("LocateAndPreselect() error = %v", err)
			}
			if !p.AnchorFound || p.AnchorIndex != k {
				t.Errorf("anchor = %d (%v), want %d", p.AnchorIndex, p.AnchorFound, k)
			}
			if p.Selection.Len() != k {
				t.Errorf("selected %d, want %d", p.Selection.Len(), k)
			}
			for i := range k {
				if !p.Selection.Has(i) {
					t.Errorf("index %d not selected", i)
				}
			}
			if p.Selection.Has(k) {
				t.Error("anchor itself selected")
			}
		})
	}

	t.Run("absent anchor selects nothing", func(t *testing.T) {
		f := newFixture(t, newLibrary())
		progress := make(chan ProgressUpdate, 8)

		p, err := f.engine.LocateAndPreselect(ctx, "Mix", "gone", progress)
		if err != nil {
			t.Fatalf("LocateAndPreselect() error = %v", err)
		}
		if p.AnchorFound || p.Selection.Len() != 0 || p.AnchorIndex != -1 {
			t.Errorf("preselection = %+v, want nothing selected", p)
		}
		if len(p.Tracks) != 10 {
			t.Errorf("tracks = %d, want 10", len(p.Tracks))
		}

		close(progress)
		var last ProgressUpdate
		for u := range progress {
			last = u
		}
		if last.Phase != Locate || last.Step != 0 {
			t.Errorf("last update = %+v", last)
		}
	})

	t.Run("unknown parent", func(t *testing.T) {
		f := newFixture(t, newLibrary())
		if _, err := f.engine.LocateAndPreselect(ctx, "Missing", "t1", nil); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("LocateAndPreselect() error = %v, want ErrPlaylistNotFound", err)
		}
	})

	t.Run("Selected returns newest first", func(t *testing.T) {
		f := newFixture(t, newLibrary())
		p, _ := f.engine.LocateAndPreselect(ctx, "Mix", "t3", nil)
		got := p.Selected()
		if len(got) != 3 || got[0].ID != "t0" || got[2].ID != "t2" {
			t.Errorf("Selected() = %+v", got)
		}
	})
}

func TestPlaylistEngine_LocateFromHistory(t *testing.T) {
	ctx := context.Background()
	parent := models.Playlist{ID: "p1", Name: "Mix"}
	child := models.Playlist{ID: "c1", Name: "New - Mix - 2024-03-01 ✨"}

	newLibrary := func() *tu.MockLibrary {
		lib := tu.NewMockLibrary(parent, child)
		lib.Tracks["p1"] = tu.NewTracks(6, testNow)
		lib.Tracks["c1"] = tu.NewTracks(6, testNow)[2:]
		return lib
	}

	t.Run("uses the stored anchor", func(t *testing.T) {
		f := newFixture(t, newLibrary())
		entry := models.HistoryEntry{ID: "c1", Name: child.Name, Source: models.SourceRef{Name: "Mix"}, LastItem: &models.LastItem{ID: "t3"}}

		p, err := f.engine.LocateFromHistory(ctx, entry, nil)
		if err != nil {
			t.Fatalf("LocateFromHistory() error = %v", err)
		}
		if p.Selection.Len() != 3 {
			t.Errorf("selected %d, want 3", p.Selection.Len())
		}
	})

	t.Run("repairs a missing anchor once", func(t *testing.T) {
		f := newFixture(t, newLibrary())
		entry := models.HistoryEntry{ID: "c1", Name: child.Name, CreatedAt: testNow, Source: models.SourceRef{Name: "Mix"}}
		f.history.Add(ctx, entry)

		p, err := f.engine.LocateFromHistory(ctx, entry, nil)
		if err != nil {
			t.Fatalf("LocateFromHistory() error = %v", err)
		}
		if !p.AnchorFound || p.Selection.Len() != 2 {
			t.Errorf("preselection = %d selected (%v), want 2", p.Selection.Len(), p.AnchorFound)
		}

		stored, _ := f.history.Get(ctx, "c1")
		if !stored.HasAnchor() || stored.LastItem.ID != "t2" {
			t.Errorf("stored LastItem = %+v, want t2", stored.LastItem)
		}
	})

	t.Run("falls back to the derived name", func(t *testing.T) {
		f := newFixture(t, newLibrary())
		entry := models.HistoryEntry{ID: "c1", Name: child.Name, LastItem: &models.LastItem{ID: "t1"}}

		p, err := f.engine.LocateFromHistory(ctx, entry, nil)
		if err != nil {
			t.Fatalf("LocateFromHistory() error = %v", err)
		}
		if p.Parent.ID != "p1" || p.Selection.Len() != 1 {
			t.Errorf("preselection = %+v", p)
		}
	})

	t.Run("unknown source", func(t *testing.T) {
		f := newFixture(t, newLibrary())
		entry := models.HistoryEntry{ID: "c1", Name: "Custom", LastItem: &models.LastItem{ID: "t1"}}

		if _, err := f.engine.LocateFromHistory(ctx, entry, nil); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("LocateFromHistory() error = %v, want ErrPlaylistNotFound", err)
		}
	})
}
