package service

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usexrp/agentwallet/internal/model"
)

type recordingAuditRepo struct {
	mu      sync.Mutex
	entries []*model.AuditLog
}

func (r *recordingAuditRepo) Insert(_ context.Context, entry *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func TestAuditServiceWritesJSONLAndRepo(t *testing.T) {
	dir := t.TempDir()
	repo := &recordingAuditRepo{}

	svc, err := NewAuditService(dir, repo)
	require.NoError(t, err)

	svc.Log(&model.AuditLog{ID: "req-1", Method: "POST", Path: "/pay", StatusCode: 200})
	svc.Log(&model.AuditLog{ID: "req-2", Method: "GET", Path: "/balance", StatusCode: 500})
	svc.Close()
	svc.Close()

	files, err := filepath.Glob(filepath.Join(dir, "audit-*.jsonl"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	info, err := os.Stat(files[0])
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry model.AuditLog
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		ids = append(ids, entry.ID)
	}
	assert.Equal(t, []string{"req-1", "req-2"}, ids)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Len(t, repo.entries, 2)
}
