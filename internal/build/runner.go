package build

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pfrederiksen/comment-map/internal/interim"
	"github.com/pfrederiksen/comment-map/internal/logger"
)

// Stale reports whether t needs to run: an output is missing, or an input
// is newer than the oldest output. A missing input is an error wrapping
// interim.ErrMissingInput.
func Stale(t Target) (bool, string, error) {
	var oldest time.Time
	for _, out := range t.Outputs {
		info, err := os.Stat(out)
		if err != nil {
			if os.IsNotExist(err) {
				return true, "missing output " + out, nil
			}
			return false, "", err
		}
		if oldest.IsZero() || info.ModTime().Before(oldest) {
			oldest = info.ModTime()
		}
	}

	stale, reason := false, ""
	for _, in := range t.Inputs {
		info, err := os.Stat(in)
		if err != nil {
			if os.IsNotExist(err) {
				return false, "", fmt.Errorf("target %s: %w: %s", t.Name, interim.ErrMissingInput, in)
			}
			return false, "", err
		}
		if !stale && info.ModTime().After(oldest) {
			stale, reason = true, "input "+in+" is newer"
		}
	}
	return stale, reason, nil
}

// StageFunc runs one target
type StageFunc func(ctx context.Context, t Target) error

// Runner executes manifest targets in order
type Runner struct {
	Manifest *Manifest
	Stages   map[string]StageFunc
	// Force reruns targets that are up to date
	Force bool
}

// Result lists which targets ran and which were already current
type Result struct {
	Ran     []string
	Skipped []string
}

// Run executes the named targets and their upstream targets, skipping
// those that are up to date. Each target's outputs exist before the next
// one starts.
func (r *Runner) Run(ctx context.Context, names ...string) (*Result, error) {
	targets, err := r.Manifest.Select(names...)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		fn, ok := r.Stages[t.Stage]
		if !ok {
			return res, fmt.Errorf("target %s: unknown stage %q", t.Name, t.Stage)
		}

		reason := "forced"
		if !r.Force {
			stale, why, err := Stale(t)
			if err != nil {
				return res, err
			}
			if !stale {
				logger.Debug("Target up to date", logger.Fields{"target": t.Name})
				res.Skipped = append(res.Skipped, t.Name)
				continue
			}
			reason = why
		}

		logger.Info("Running target", logger.Fields{"target": t.Name, "stage": t.Stage, "reason": reason})
		if err := fn(ctx, t); err != nil {
			return res, fmt.Errorf("target %s: %w", t.Name, err)
		}
		res.Ran = append(res.Ran, t.Name)
	}
	return res, nil
}
