package qualify

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StartRuleWatcher hot-reloads the rule file. fsnotify drives the fast
// path; a slow polling loop runs as well so editors that replace the
// file (breaking the watch) still get picked up.
func (s *Service) StartRuleWatcher(ctx context.Context, path string) {
	watcher, err := fsnotify.NewWatcher()
	usePolling := false
	if err != nil {
		log.Printf("Rule watcher: fsnotify failed (%v), falling back to polling", err)
		usePolling = true
	} else if err := watcher.Add(path); err != nil {
		log.Printf("Rule watcher: cannot watch %s (%v), falling back to polling", path, err)
		usePolling = true
		watcher.Close()
	}

	if !usePolling {
		go func() {
			defer watcher.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-watcher.Events:
					if !ok {
						return
					}
					if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
						// Debounce: editors fire write bursts.
						time.Sleep(100 * time.Millisecond)
						s.reloadFrom(path)
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return
					}
					log.Printf("Rule watcher error: %v", err)
				}
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		var lastMod time.Time
		if info, err := os.Stat(path); err == nil {
			lastMod = info.ModTime()
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil || !info.ModTime().After(lastMod) {
					continue
				}
				lastMod = info.ModTime()
				s.reloadFrom(path)
			}
		}
	}()
}

func (s *Service) reloadFrom(path string) {
	r, err := LoadRule(path)
	if err != nil {
		log.Printf("Rule reload rejected, keeping current rule: %v", err)
		return
	}
	s.SetRule(r)
}
