package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"laundry_notifier/internal/models"
)

func TestBaselineINI_SaveAllAndLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notifier.ini")
	repo := NewBaselineINI(path)
	ctx := context.Background()

	in := map[string]models.Baseline{
		"washer": {IdlePower: 1.0, RunningPower: 3.0},
		"dryer":  {IdlePower: 2.5, RunningPower: 310.75},
	}
	if err := repo.SaveAll(ctx, in); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	for name, want := range in {
		got, err := repo.Load(ctx, name)
		if err != nil {
			t.Fatalf("Load(%q): %v", name, err)
		}
		if got != want {
			t.Errorf("Load(%q) = %+v, want %+v", name, got, want)
		}
	}
}

func TestBaselineINI_SaveAllReplacesWholeFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notifier.ini")
	repo := NewBaselineINI(path)
	ctx := context.Background()

	first := map[string]models.Baseline{"washer": {IdlePower: 1, RunningPower: 3}}
	if err := repo.SaveAll(ctx, first); err != nil {
		t.Fatalf("SaveAll(first): %v", err)
	}
	second := map[string]models.Baseline{"dryer": {IdlePower: 2, RunningPower: 5}}
	if err := repo.SaveAll(ctx, second); err != nil {
		t.Fatalf("SaveAll(second): %v", err)
	}

	// Old sections must not survive a rewrite.
	if _, err := repo.Load(ctx, "washer"); !errors.Is(err, ErrBaselineMissing) {
		t.Errorf("stale washer section: err = %v, want ErrBaselineMissing", err)
	}
	if _, err := repo.Load(ctx, "dryer"); err != nil {
		t.Errorf("Load(dryer): %v", err)
	}
}

func TestBaselineINI_LoadMissingSection(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notifier.ini")
	repo := NewBaselineINI(path)
	ctx := context.Background()

	if err := repo.SaveAll(ctx, map[string]models.Baseline{"washer": {IdlePower: 1, RunningPower: 3}}); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	_, err := repo.Load(ctx, "dishwasher")
	if !errors.Is(err, ErrBaselineMissing) {
		t.Fatalf("err = %v, want ErrBaselineMissing", err)
	}
	if !strings.Contains(err.Error(), "dishwasher") {
		t.Errorf("error should name the appliance: %v", err)
	}
}

func TestBaselineINI_LoadMalformedSection(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
	}{
		{"missing running key", "[washer]\nidle = 1.0\n"},
		{"non-numeric idle", "[washer]\nidle = lots\nrunning = 3.0\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "notifier.ini")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write fixture: %v", err)
			}
			_, err := NewBaselineINI(path).Load(context.Background(), "washer")
			if !errors.Is(err, ErrBaselineMalformed) {
				t.Fatalf("err = %v, want ErrBaselineMalformed", err)
			}
		})
	}
}

func TestBaselineINI_LoadMissingFile(t *testing.T) {
	t.Parallel()

	repo := NewBaselineINI(filepath.Join(t.TempDir(), "nope.ini"))
	if _, err := repo.Load(context.Background(), "washer"); err == nil {
		t.Fatal("expected error for missing baseline file")
	}
}
