package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vidaplus/sghss/internal/model"
	"github.com/vidaplus/sghss/internal/repository"
)

// 監査ログ破棄の理由ラベル。
const (
	DropReasonQueueFull    = "queue_full"
	DropReasonClosed       = "closed"
	DropReasonWriteFailure = "write_failure"
)

// 既定値。
const (
	DefaultQueueSize    = 1024
	DefaultWriteTimeout = 5 * time.Second
)

// Metrics は監査ログの記録結果を受け取る。
type Metrics interface {
	AuditRecorded(action string)
	AuditDropped(reason string)
}

type noopMetrics struct{}

func (noopMetrics) AuditRecorded(string) {}
func (noopMetrics) AuditDropped(string)  {}

// Config はRecorderの設定。ゼロ値のフィールドは既定値を使う。
type Config struct {
	QueueSize    int
	WriteTimeout time.Duration
	// Now はタイムスタンプの時計。nilの場合はtime.Nowを使う。
	Now func() time.Time
}

// Recorder は監査ログを非同期に記録する。
//
// Recordはキューに積むだけで即座に戻り、書き込みはバックグラウンドの
// ワーカーが行う。書き込み失敗・キュー満杯・停止後の記録は
// ログとメトリクスに残して破棄し、呼び出し元には返さない。再試行もしない。
type Recorder struct {
	repo         repository.AuditRepository
	logger       *slog.Logger
	metrics      Metrics
	writeTimeout time.Duration
	now          func() time.Time

	queue chan *model.AuditEntry
	done  chan struct{}

	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
}

// NewRecorder はRecorderを生成する。ワーカーはStartで起動する。
// metricsがnilの場合は何も記録しない。
func NewRecorder(repo repository.AuditRepository, logger *slog.Logger, metrics Metrics, cfg Config) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Recorder{
		repo:         repo,
		logger:       logger,
		metrics:      metrics,
		writeTimeout: cfg.WriteTimeout,
		now:          cfg.Now,
		queue:        make(chan *model.AuditEntry, cfg.QueueSize),
		done:         make(chan struct{}),
	}
}

// Start は書き込みワーカーを起動する。複数回呼んでも起動は1回のみ。
// ctxのキャンセルでは停止しない。停止はCloseで行う。
func (r *Recorder) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		go r.run(context.WithoutCancel(ctx))
	})
}

// Record は監査ログを1件キューに積む。actorIDが空の場合はシステム起因として記録する。
// タイムスタンプはここで確定する。
func (r *Recorder) Record(action, actorID string, details map[string]any, sourceAddress string) {
	entry := &model.AuditEntry{
		Action:        action,
		Details:       details,
		SourceAddress: sourceAddress,
		Timestamp:     r.now(),
	}
	if actorID != "" {
		id := actorID
		entry.ActorID = &id
	}
	if entry.SourceAddress == "" {
		entry.SourceAddress = "unknown"
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(entry, DropReasonClosed, nil)
		return
	}
	select {
	case r.queue <- entry:
	default:
		r.drop(entry, DropReasonQueueFull, nil)
	}
}

// Query は監査ログを新しい順に最大model.AuditQueryLimit件返す。
// ストア障害は呼び出し元に返す。
func (r *Recorder) Query(ctx context.Context, filter model.AuditFilter) ([]*model.AuditEntry, error) {
	entries, err := r.repo.Query(ctx, filter, model.AuditQueryLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrStorage, err)
	}
	if entries == nil {
		entries = []*model.AuditEntry{}
	}
	return entries, nil
}

// Close は新規の受け付けを止め、キューに残った監査ログを書き込んでから戻る。
// ctxの期限までに書き込みが終わらない場合はctxのエラーを返す。
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	// 未起動でもキューを書き切れるようにワーカーを起動する
	r.Start(ctx)

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit recorder did not drain in time: %w", ctx.Err())
	}
}

func (r *Recorder) run(ctx context.Context) {
	defer close(r.done)
	r.logger.Info("監査ログワーカーを開始しました", slog.Int("queue_size", cap(r.queue)))

	for entry := range r.queue {
		r.write(ctx, entry)
	}

	r.logger.Info("監査ログワーカーを停止しました")
}

func (r *Recorder) write(ctx context.Context, entry *model.AuditEntry) {
	writeCtx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	if err := r.repo.Create(writeCtx, entry); err != nil {
		r.drop(entry, DropReasonWriteFailure, err)
		return
	}

	r.metrics.AuditRecorded(entry.Action)
	r.logger.Info("audit_recorded",
		slog.Int64("audit_id", entry.ID),
		slog.String("action", entry.Action),
		slog.String("user_id", actorLabel(entry)),
		slog.String("ip_address", entry.SourceAddress),
	)
}

func (r *Recorder) drop(entry *model.AuditEntry, reason string, err error) {
	r.metrics.AuditDropped(reason)

	attrs := []any{
		slog.String("action", entry.Action),
		slog.String("user_id", actorLabel(entry)),
		slog.String("reason", reason),
		slog.Time("timestamp", entry.Timestamp),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		if errors.Is(err, context.DeadlineExceeded) {
			attrs = append(attrs, slog.Duration("write_timeout", r.writeTimeout))
		}
		r.logger.Error("audit_write_failed", attrs...)
		return
	}
	r.logger.Warn("audit_dropped", attrs...)
}

func actorLabel(entry *model.AuditEntry) string {
	if entry.ActorID == nil {
		return "system"
	}
	return *entry.ActorID
}
