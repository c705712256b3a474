package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gopkg.in/ini.v1"

	"laundry_notifier/internal/models"
)

// Section keys inside the baseline file.
const (
	idleKey    = "idle"
	runningKey = "running"
)

var (
	// ErrBaselineMissing means the appliance has no section in the
	// baseline file, i.e. it was never calibrated.
	ErrBaselineMissing = errors.New("baseline section missing")
	// ErrBaselineMalformed means the section exists but one of its
	// power values is absent or not a number.
	ErrBaselineMalformed = errors.New("baseline section malformed")
)

// BaselineINI stores baselines in a flat INI file, one section per
// appliance with idle/running keys.
type BaselineINI struct {
	path string
}

func NewBaselineINI(path string) *BaselineINI {
	return &BaselineINI{path: path}
}

// SaveAll writes every baseline to a temp file in the target directory
// and renames it into place, so readers never observe a partial file.
func (r *BaselineINI) SaveAll(_ context.Context, baselines map[string]models.Baseline) error {
	cfg := ini.Empty()

	names := make([]string, 0, len(baselines))
	for name := range baselines {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		b := baselines[name]
		sec, err := cfg.NewSection(name)
		if err != nil {
			return fmt.Errorf("create section %q: %w", name, err)
		}
		sec.Key(idleKey).SetValue(strconv.FormatFloat(b.IdlePower, 'f', -1, 64))
		sec.Key(runningKey).SetValue(strconv.FormatFloat(b.RunningPower, 'f', -1, 64))
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp baseline file in %q: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() // no-op after successful rename

	if _, err := cfg.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write baselines: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp baseline file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace baseline file %q: %w", r.path, err)
	}
	return nil
}

// Load reads the baseline for one appliance, validating eagerly.
func (r *BaselineINI) Load(_ context.Context, name string) (models.Baseline, error) {
	cfg, err := ini.Load(r.path)
	if err != nil {
		return models.Baseline{}, fmt.Errorf("open baseline file %q: %w", r.path, err)
	}
	sec, err := cfg.GetSection(name)
	if err != nil {
		return models.Baseline{}, fmt.Errorf("appliance %q: %w", name, ErrBaselineMissing)
	}

	idle, err := sectionFloat(sec, idleKey)
	if err != nil {
		return models.Baseline{}, fmt.Errorf("appliance %q: %w", name, err)
	}
	running, err := sectionFloat(sec, runningKey)
	if err != nil {
		return models.Baseline{}, fmt.Errorf("appliance %q: %w", name, err)
	}
	return models.Baseline{IdlePower: idle, RunningPower: running}, nil
}

func sectionFloat(sec *ini.Section, key string) (float64, error) {
	if !sec.HasKey(key) {
		return 0, fmt.Errorf("key %q: %w", key, ErrBaselineMalformed)
	}
	v, err := strconv.ParseFloat(sec.Key(key).String(), 64)
	if err != nil {
		return 0, fmt.Errorf("key %q value %q: %w", key, sec.Key(key).String(), ErrBaselineMalformed)
	}
	return v, nil
}
