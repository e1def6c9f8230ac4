package policy

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher reloads the scorer whenever a new artifact lands at the watched
// path. The trainer publishes by rename, so the watcher listens on the
// artifact's directory rather than the file itself.
type Watcher struct {
	scorer *Scorer
	path   string
}

// NewWatcher wires a scorer to an artifact path.
func NewWatcher(scorer *Scorer, path string) *Watcher {
	return &Watcher{scorer: scorer, path: path}
}

// Run loads the current artifact if present, then blocks reloading on file
// events until the context is cancelled. A missing artifact at startup is
// not an error; the scorer serves degraded until one is published.
func (w *Watcher) Run(ctx context.Context) error {
	if artifact, err := LoadArtifact(w.path); err == nil {
		w.scorer.Install(artifact)
	} else {
		log.Warn().Err(err).Str("path", w.path).Msg("No policy artifact at startup, serving degraded")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create artifact watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch artifact dir: %w", err)
	}

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			artifact, err := LoadArtifact(w.path)
			if err != nil {
				// A failed reload keeps the previous artifact serving.
				log.Error().Err(err).Str("path", w.path).Msg("Policy artifact reload failed")
				continue
			}
			w.scorer.Install(artifact)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Artifact watcher error")
		}
	}
}
