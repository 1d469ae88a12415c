package jobs

import (
	"errors"
	"sync"
	"testing"

	"github.com/saru2020/ClipsExtractor/internal/models"
)

func TestRegistryCreateAndView(t *testing.T) {
	reg, _ := newTestRegistry()
	tr := reg.Create("  https://example.com/v  ", " goals ")

	view, err := reg.View(tr.ID())
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.Status != models.JobStatusPending {
		t.Fatalf("status = %s, want pending", view.Status)
	}
	if view.Clips == nil || len(view.Clips) != 0 {
		t.Fatalf("clips = %v, want empty non-nil list", view.Clips)
	}
	if view.ErrorMessage != nil || view.OutputURL != nil {
		t.Fatalf("unexpected optional fields: %+v", view)
	}
	job := tr.Snapshot()
	if job.URL != "https://example.com/v" || job.Prompt != "goals" {
		t.Fatalf("url/prompt not trimmed: %q %q", job.URL, job.Prompt)
	}
}

func TestRegistryUnknownID(t *testing.T) {
	reg, _ := newTestRegistry()
	if _, err := reg.View("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("view error = %v, want ErrNotFound", err)
	}
	if _, err := reg.Get(""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get error = %v, want ErrNotFound", err)
	}
}

func TestRegistryIDsAreUnique(t *testing.T) {
	reg, _ := newTestRegistry()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := reg.Create("https://example.com/v", "p").ID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if reg.Len() != 100 {
		t.Fatalf("len = %d, want 100", reg.Len())
	}
}

func TestRegistryRemove(t *testing.T) {
	reg, _ := newTestRegistry()
	id := reg.Create("https://example.com/v", "p").ID()
	if !reg.Remove(id) {
		t.Fatal("remove returned false for existing job")
	}
	if reg.Remove(id) {
		t.Fatal("remove returned true for missing job")
	}
	if _, err := reg.Get(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after remove error = %v", err)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	ids := make(chan string, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr := reg.Create("https://example.com/v", "p")
			ids <- tr.ID()
			_ = tr.Transition(models.JobStatusDownloading, "")
			_ = tr.SetClips([]models.Clip{{Start: 0, End: 2, Text: "x"}})
			_ = tr.Transition(models.JobStatusProcessing, "")
			_ = tr.Transition(models.JobStatusCompleted, "")
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, _ = reg.View("missing")
				_ = reg.Len()
			}
		}()
	}
	wg.Wait()
	close(ids)

	for id := range ids {
		view, err := reg.View(id)
		if err != nil {
			t.Fatalf("view %s: %v", id, err)
		}
		if view.Status != models.JobStatusCompleted || len(view.Clips) != 1 {
			t.Fatalf("job %s ended as %+v", id, view)
		}
	}
}
