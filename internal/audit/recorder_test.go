package audit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vidaplus/sghss/internal/model"
	"github.com/vidaplus/sghss/internal/repository"
)

// --- モック定義 ---

type mockAuditRepo struct {
	mu       sync.Mutex
	entries  []*model.AuditEntry
	createFn func(ctx context.Context, entry *model.AuditEntry) error
	queryFn  func(ctx context.Context, filter model.AuditFilter, limit int) ([]*model.AuditEntry, error)
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *model.AuditEntry) error {
	if m.createFn != nil {
		if err := m.createFn(ctx, entry); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) Query(ctx context.Context, filter model.AuditFilter, limit int) ([]*model.AuditEntry, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, filter, limit)
	}
	return nil, nil
}

func (m *mockAuditRepo) stored() []*model.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.AuditEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

var _ repository.AuditRepository = (*mockAuditRepo)(nil)

type mockMetrics struct {
	mu       sync.Mutex
	recorded map[string]int
	dropped  map[string]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{recorded: map[string]int{}, dropped: map[string]int{}}
}

func (m *mockMetrics) AuditRecorded(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded[action]++
}

func (m *mockMetrics) AuditDropped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[reason]++
}

func (m *mockMetrics) droppedCount(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped[reason]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func closeRecorder(t *testing.T, r *Recorder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestRecorder_RecordPersistsEntry(t *testing.T) {
	repo := &mockAuditRepo{}
	metrics := newMockMetrics()
	fixed := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	r := NewRecorder(repo, discardLogger(), metrics, Config{Now: func() time.Time { return fixed }})
	r.Start(context.Background())

	details := map[string]any{"method": "POST", "url": "/patients"}
	r.Record(model.ActionCreatePatient, "user-1", details, "10.0.0.5")
	closeRecorder(t, r)

	stored := repo.stored()
	if len(stored) != 1 {
		t.Fatalf("len(stored) = %d, want 1", len(stored))
	}
	got := stored[0]
	if got.Action != model.ActionCreatePatient {
		t.Errorf("Action = %q, want %q", got.Action, model.ActionCreatePatient)
	}
	if got.ActorID == nil || *got.ActorID != "user-1" {
		t.Errorf("ActorID = %v, want user-1", got.ActorID)
	}
	if got.SourceAddress != "10.0.0.5" {
		t.Errorf("SourceAddress = %q, want %q", got.SourceAddress, "10.0.0.5")
	}
	if !got.Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, fixed)
	}
	if got.Details["url"] != "/patients" {
		t.Errorf("Details = %v", got.Details)
	}
	if metrics.recorded[model.ActionCreatePatient] != 1 {
		t.Errorf("recorded metric = %d, want 1", metrics.recorded[model.ActionCreatePatient])
	}
}

func TestRecorder_SystemEntryAndUnknownAddress(t *testing.T) {
	repo := &mockAuditRepo{}
	r := NewRecorder(repo, discardLogger(), nil, Config{})
	r.Start(context.Background())

	r.Record(model.ActionLogin, "", nil, "")
	closeRecorder(t, r)

	stored := repo.stored()
	if len(stored) != 1 {
		t.Fatalf("len(stored) = %d, want 1", len(stored))
	}
	if stored[0].ActorID != nil {
		t.Errorf("ActorID = %v, want nil for system entry", *stored[0].ActorID)
	}
	if stored[0].SourceAddress != "unknown" {
		t.Errorf("SourceAddress = %q, want %q", stored[0].SourceAddress, "unknown")
	}
}

// ストア障害は呼び出し元に伝播せず、ログとメトリクスに残る
func TestRecorder_WriteFailure_IsSwallowedAndLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	repo := &mockAuditRepo{
		createFn: func(ctx context.Context, entry *model.AuditEntry) error {
			return errors.New("connection reset")
		},
	}
	metrics := newMockMetrics()
	r := NewRecorder(repo, logger, metrics, Config{})
	r.Start(context.Background())

	r.Record(model.ActionDeletePatient, "user-1", nil, "10.0.0.1")
	closeRecorder(t, r)

	if len(repo.stored()) != 0 {
		t.Error("failed entry should not be stored")
	}
	if metrics.droppedCount(DropReasonWriteFailure) != 1 {
		t.Errorf("dropped[write_failure] = %d, want 1", metrics.droppedCount(DropReasonWriteFailure))
	}
	if !strings.Contains(buf.String(), "audit_write_failed") {
		t.Errorf("expected audit_write_failed log, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), model.ActionDeletePatient) {
		t.Errorf("expected action in log, got %s", buf.String())
	}
}

// 失敗した書き込みは再試行しない
func TestRecorder_WriteFailure_NoRetry(t *testing.T) {
	var calls int
	var mu sync.Mutex
	repo := &mockAuditRepo{
		createFn: func(ctx context.Context, entry *model.AuditEntry) error {
			mu.Lock()
			calls++
			mu.Unlock()
			return errors.New("boom")
		},
	}
	r := NewRecorder(repo, discardLogger(), nil, Config{})
	r.Start(context.Background())

	r.Record(model.ActionCreatePatient, "u", nil, "ip")
	closeRecorder(t, r)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("Create calls = %d, want 1", calls)
	}
}

func TestRecorder_WriteTimeout(t *testing.T) {
	repo := &mockAuditRepo{
		createFn: func(ctx context.Context, entry *model.AuditEntry) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	metrics := newMockMetrics()
	r := NewRecorder(repo, discardLogger(), metrics, Config{WriteTimeout: 10 * time.Millisecond})
	r.Start(context.Background())

	r.Record(model.ActionCreatePatient, "u", nil, "ip")
	closeRecorder(t, r)

	if metrics.droppedCount(DropReasonWriteFailure) != 1 {
		t.Errorf("dropped[write_failure] = %d, want 1", metrics.droppedCount(DropReasonWriteFailure))
	}
}

// キューが満杯の場合は呼び出し元をブロックせずに破棄する
func TestRecorder_QueueFull_DropsWithoutBlocking(t *testing.T) {
	release := make(chan struct{})
	repo := &mockAuditRepo{
		createFn: func(ctx context.Context, entry *model.AuditEntry) error {
			<-release
			return nil
		},
	}
	metrics := newMockMetrics()
	r := NewRecorder(repo, discardLogger(), metrics, Config{QueueSize: 1})
	// ワーカー未起動のためキュー容量1を超えた分は破棄される
	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			r.Record(model.ActionCreatePatient, "u", nil, "ip")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full queue")
	}

	if metrics.droppedCount(DropReasonQueueFull) != 2 {
		t.Errorf("dropped[queue_full] = %d, want 2", metrics.droppedCount(DropReasonQueueFull))
	}

	close(release)
	closeRecorder(t, r)
	if len(repo.stored()) != 1 {
		t.Errorf("len(stored) = %d, want 1", len(repo.stored()))
	}
}

func TestRecorder_RecordAfterClose_Drops(t *testing.T) {
	repo := &mockAuditRepo{}
	metrics := newMockMetrics()
	r := NewRecorder(repo, discardLogger(), metrics, Config{})
	r.Start(context.Background())
	closeRecorder(t, r)

	r.Record(model.ActionCreatePatient, "u", nil, "ip")

	if metrics.droppedCount(DropReasonClosed) != 1 {
		t.Errorf("dropped[closed] = %d, want 1", metrics.droppedCount(DropReasonClosed))
	}
	if len(repo.stored()) != 0 {
		t.Error("entry recorded after close should not be stored")
	}
}

// Closeはキューに残っている監査ログを書き切る
func TestRecorder_Close_DrainsQueue(t *testing.T) {
	repo := &mockAuditRepo{
		createFn: func(ctx context.Context, entry *model.AuditEntry) error {
			time.Sleep(time.Millisecond)
			return nil
		},
	}
	r := NewRecorder(repo, discardLogger(), nil, Config{QueueSize: 64})
	r.Start(context.Background())

	for i := 0; i < 20; i++ {
		r.Record(model.ActionUpdatePatient, "u", nil, "ip")
	}
	closeRecorder(t, r)

	if got := len(repo.stored()); got != 20 {
		t.Errorf("len(stored) = %d, want 20", got)
	}
}

func TestRecorder_Close_Idempotent(t *testing.T) {
	r := NewRecorder(&mockAuditRepo{}, discardLogger(), nil, Config{})
	r.Start(context.Background())

	closeRecorder(t, r)
	closeRecorder(t, r)
}

func TestRecorder_Close_DeadlineExceeded(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	repo := &mockAuditRepo{
		createFn: func(ctx context.Context, entry *model.AuditEntry) error {
			<-block
			return nil
		},
	}
	r := NewRecorder(repo, discardLogger(), nil, Config{WriteTimeout: time.Minute})
	r.Start(context.Background())
	r.Record(model.ActionCreatePatient, "u", nil, "ip")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Close() error = %v, want DeadlineExceeded", err)
	}
}

// Startに渡したctxがキャンセルされても書き込みは継続する
func TestRecorder_StartContextCancel_DoesNotStopWorker(t *testing.T) {
	repo := &mockAuditRepo{}
	r := NewRecorder(repo, discardLogger(), nil, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	cancel()

	r.Record(model.ActionCreatePatient, "u", nil, "ip")
	closeRecorder(t, r)

	if len(repo.stored()) != 1 {
		t.Errorf("len(stored) = %d, want 1", len(repo.stored()))
	}
}

func TestRecorder_Query(t *testing.T) {
	var gotFilter model.AuditFilter
	var gotLimit int
	repo := &mockAuditRepo{
		queryFn: func(ctx context.Context, filter model.AuditFilter, limit int) ([]*model.AuditEntry, error) {
			gotFilter = filter
			gotLimit = limit
			return []*model.AuditEntry{{ID: 2}, {ID: 1}}, nil
		},
	}
	r := NewRecorder(repo, discardLogger(), nil, Config{})

	entries, err := r.Query(context.Background(), model.AuditFilter{ActorID: "u-1", Action: model.ActionLogin})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d, want 2", len(entries))
	}
	if gotLimit != model.AuditQueryLimit {
		t.Errorf("limit = %d, want %d", gotLimit, model.AuditQueryLimit)
	}
	if gotFilter.ActorID != "u-1" || gotFilter.Action != model.ActionLogin {
		t.Errorf("filter = %+v", gotFilter)
	}
}

func TestRecorder_Query_EmptyResultIsNonNil(t *testing.T) {
	r := NewRecorder(&mockAuditRepo{}, discardLogger(), nil, Config{})

	entries, err := r.Query(context.Background(), model.AuditFilter{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if entries == nil {
		t.Error("expected non-nil empty slice")
	}
}

func TestRecorder_Query_StoreFailure_ReturnsErrStorage(t *testing.T) {
	repo := &mockAuditRepo{
		queryFn: func(ctx context.Context, filter model.AuditFilter, limit int) ([]*model.AuditEntry, error) {
			return nil, errors.New("db down")
		},
	}
	r := NewRecorder(repo, discardLogger(), nil, Config{})

	if _, err := r.Query(context.Background(), model.AuditFilter{}); !errors.Is(err, model.ErrStorage) {
		t.Errorf("Query() error = %v, want ErrStorage", err)
	}
}
