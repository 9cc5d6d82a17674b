package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/technosupport/ts-shield/internal/data"
)

// Spool is the disk failover for audit entries the store refused.
// Entries are appended as JSONL to a single file and replayed by a
// background worker once the store recovers.
type Spool struct {
	Dir     string
	MaxSize int64

	mu sync.Mutex
}

func NewSpool(dir string, maxMB int64) (*Spool, error) {
	if maxMB <= 0 {
		maxMB = 256
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("audit spool dir: %w", err)
	}
	return &Spool{Dir: dir, MaxSize: maxMB * 1024 * 1024}, nil
}

func (sp *Spool) file() string {
	return filepath.Join(sp.Dir, "audit_spool.log")
}

func (sp *Spool) Append(e *data.AuditEntry) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if info, err := os.Stat(sp.file()); err == nil && info.Size() >= sp.MaxSize {
		return fmt.Errorf("audit spool full (%d bytes)", info.Size())
	}

	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(sp.file(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}

// StartReplayer flushes the spool every interval until ctx ends.
func (s *Service) StartReplayer(ctx context.Context, interval time.Duration) {
	if s.Spool == nil {
		return
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.ReplaySpool(ctx)
			}
		}
	}()
}

// ReplaySpool renames the spool file aside and re-inserts each line.
// Entries the store still refuses are re-spooled by Append's own
// failover path, so nothing is lost while the store stays down.
func (s *Service) ReplaySpool(ctx context.Context) {
	sp := s.Spool
	sp.mu.Lock()
	info, err := os.Stat(sp.file())
	if err != nil || info.Size() == 0 {
		sp.mu.Unlock()
		return
	}
	replayFile := filepath.Join(sp.Dir, fmt.Sprintf("replay_%d.log", time.Now().UnixNano()))
	if err := os.Rename(sp.file(), replayFile); err != nil {
		sp.mu.Unlock()
		log.Printf("Audit spool rotate failed: %v", err)
		return
	}
	sp.mu.Unlock()

	f, err := os.Open(replayFile)
	if err != nil {
		return
	}
	defer func() {
		f.Close()
		os.Remove(replayFile)
	}()

	var flushed int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e data.AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			log.Printf("Audit replay: skipping corrupt line: %v", err)
			continue
		}
		if err := s.Repo.Insert(ctx, &e); err != nil {
			// Store still down: put it back on the spool.
			if spoolErr := sp.Append(&e); spoolErr != nil {
				log.Printf("CRITICAL: audit replay lost entry %s: %v", e.AuditID, spoolErr)
			}
			continue
		}
		flushed++
	}
	if flushed > 0 {
		log.Printf("Audit replay: %d entries flushed", flushed)
	}
}
