package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	defaultRenameAttempts = 3
	defaultRenameDelay    = 50 * time.Millisecond
	maxCounterSuffix      = 1000
)

// Renamer moves a stored file to a content-derived name. Collisions are
// resolved with a timestamp, then a millisecond tiebreak, then a bounded
// counter. Another process can still win the target between the existence
// check and the move, so the whole move is retried with a fresh target each
// attempt.
type Renamer struct {
	attempts uint
	delay    time.Duration
	now      func() time.Time
}

type RenameResult struct {
	Path    string
	Name    string
	Renamed bool
	Reason  string
	Warning string
}

func NewRenamer(attempts uint, delay time.Duration) *Renamer {
	if attempts == 0 {
		attempts = defaultRenameAttempts
	}
	if delay <= 0 {
		delay = defaultRenameDelay
	}
	return &Renamer{attempts: attempts, delay: delay, now: time.Now}
}

// Rename moves path to base+ext inside the same directory. A total failure
// keeps the original path and reports a warning, never an error: losing the
// nicer name must not fail ingestion.
func (r *Renamer) Rename(ctx context.Context, path string, base string) RenameResult {
	logger := logutil.GetLogger(ctx)
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	current := filepath.Base(path)

	var finalPath string
	err := retry.Do(
		func() error {
			target, err := r.pickTarget(dir, base, ext)
			if err != nil {
				return err
			}
			if err := r.move(path, target); err != nil {
				return err
			}
			finalPath = target
			return nil
		},
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("rename attempt failed",
				zap.Uint("attempt", n+1),
				zap.String("path", path),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		return RenameResult{
			Path:    path,
			Name:    current,
			Renamed: false,
			Warning: fmt.Sprintf("rename failed, keeping original filename %s: %v", current, err),
		}
	}
	return RenameResult{
		Path:    finalPath,
		Name:    filepath.Base(finalPath),
		Renamed: true,
		Reason:  "generic filename replaced with content-derived title",
	}
}

// pickTarget finds a free filename for base+ext in dir.
func (r *Renamer) pickTarget(dir, base, ext string) (string, error) {
	candidate := filepath.Join(dir, base+ext)
	if !exists(candidate) {
		return candidate, nil
	}
	now := r.now()
	stamp := now.Format("20060102_150405")
	candidate = filepath.Join(dir, fmt.Sprintf("%s_%s%s", base, stamp, ext))
	if !exists(candidate) {
		return candidate, nil
	}
	stampMs := fmt.Sprintf("%s_%03d", stamp, now.Nanosecond()/int(time.Millisecond))
	candidate = filepath.Join(dir, fmt.Sprintf("%s_%s%s", base, stampMs, ext))
	if !exists(candidate) {
		return candidate, nil
	}
	for i := 2; i < maxCounterSuffix; i += 1 {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%s_%d%s", base, stampMs, i, ext))
		if !exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free filename for %s in %s", base, dir)
}

// move performs a temp-name-then-final two-step rename so a failed final step
// never leaves the target half-overwritten.
func (r *Renamer) move(src, target string) error {
	tmp := fmt.Sprintf("%s.moving-%d", target, r.now().UnixNano())
	if err := os.Rename(src, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		if rollbackErr := os.Rename(tmp, src); rollbackErr != nil {
			return fmt.Errorf("finalize rename: %v (rollback also failed: %v)", err, rollbackErr)
		}
		return err
	}
	return nil
}

// UniqueTarget resolves a free path for a new file, sharing the renamer's
// collision policy. Used when storing uploads under their original names.
func (r *Renamer) UniqueTarget(dir, base, ext string) (string, error) {
	return r.pickTarget(dir, base, ext)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
