package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/usexrp/agentwallet/internal/model"
	"github.com/usexrp/agentwallet/internal/pkg/logger"
)

const auditQueueSize = 1000

// AuditRepo is an optional second sink, e.g. a Redis list.
type AuditRepo interface {
	Insert(ctx context.Context, entry *model.AuditLog) error
}

// AuditService writes audit entries asynchronously to a daily JSONL file and
// the optional repo. Entries are dropped, with a warning, when the queue is full.
type AuditService struct {
	logChan chan *model.AuditLog
	logFile *os.File
	repo    AuditRepo

	closeOnce sync.Once
	done      chan struct{}
}

func NewAuditService(logDir string, repo AuditRepo) (*AuditService, error) {
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return nil, err
	}

	filename := filepath.Join(logDir, "audit-"+time.Now().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	svc := &AuditService{
		logChan: make(chan *model.AuditLog, auditQueueSize),
		logFile: f,
		repo:    repo,
		done:    make(chan struct{}),
	}

	go svc.processLogs()

	return svc, nil
}

func (s *AuditService) Log(entry *model.AuditLog) {
	select {
	case s.logChan <- entry:
	default:
		logger.Warn("audit log queue full, dropping entry", "request_id", entry.ID)
	}
}

func (s *AuditService) processLogs() {
	defer close(s.done)

	encoder := json.NewEncoder(s.logFile)
	for entry := range s.logChan {
		if s.repo != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := s.repo.Insert(ctx, entry); err != nil {
				logger.Error("failed to write audit log to repo", "error", err)
			}
			cancel()
		}
		if err := encoder.Encode(entry); err != nil {
			logger.Error("failed to write audit log", "error", err)
		}
	}
}

// Close flushes queued entries and closes the file. Log must not be called
// after Close.
func (s *AuditService) Close() {
	s.closeOnce.Do(func() {
		close(s.logChan)
		<-s.done
		_ = s.logFile.Close()
	})
}
