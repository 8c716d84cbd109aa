package mapping

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"swappiIndexer/internal/dex"
	"swappiIndexer/internal/entity"
	"swappiIndexer/internal/metrics"
	"swappiIndexer/internal/model"
)

// ErrorPolicy decides what happens when an event fails to apply.
type ErrorPolicy string

const (
	PolicyAbort ErrorPolicy = "abort"
	PolicySkip  ErrorPolicy = "skip"
)

// ParseErrorPolicy parses abort or skip. Empty means abort.
func ParseErrorPolicy(input string) (ErrorPolicy, error) {
	switch ErrorPolicy(strings.ToLower(strings.TrimSpace(input))) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicySkip:
		return PolicySkip, nil
	default:
		return "", fmt.Errorf("unknown error policy %q (want abort or skip)", input)
	}
}

// EventHandler applies a single typed event.
type EventHandler interface {
	Apply(ctx context.Context, record model.TypedEventRecord) error
}

// ErrorSink receives processing errors of skipped events.
type ErrorSink interface {
	Write(value interface{}) error
}

// Config controls applier behavior.
type Config struct {
	// BatchSize is the number of applied events between state saves.
	BatchSize  int
	OnError    ErrorPolicy
	StateStore StateStore
	Errors     ErrorSink
}

// Summary counts the outcome of a run.
type Summary struct {
	Total   int
	Applied int
	Skipped int
	Failed  int
	Last    model.EventPosition
}

// Applier streams typed events in order through a handler.
type Applier struct {
	cfg     Config
	handler EventHandler
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewApplier(cfg Config, handler EventHandler, m *metrics.Metrics, logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.OnError == "" {
		cfg.OnError = PolicyAbort
	}
	return &Applier{cfg: cfg, handler: handler, metrics: m, logger: logger}
}

// Run applies a typed events JSONL file.
func (a *Applier) Run(ctx context.Context, inputPath string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	summary, err := a.Apply(ctx, file)
	a.logger.Info("apply complete",
		zap.Int("total", summary.Total),
		zap.Int("applied", summary.Applied),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Uint64("last_block", summary.Last.BlockNumber),
		zap.Uint64("last_log_index", summary.Last.LogIndex),
	)
	return err
}

// Apply reads one typed event per line. Events at or before the stored
// position are skipped, so a restarted run resumes where it stopped.
func (a *Applier) Apply(ctx context.Context, r io.Reader) (Summary, error) {
	var summary Summary
	if a.handler == nil {
		return summary, fmt.Errorf("handler is nil")
	}

	last, resumed, err := a.loadState(ctx)
	if err != nil {
		return summary, err
	}
	summary.Last = last

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	sinceSave := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return summary, a.finish(ctx, summary, sinceSave, err)
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		summary.Total++

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			summary.Failed++
			a.metrics.ObserveError("decode")
			if a.cfg.OnError == PolicyAbort {
				return summary, a.finish(ctx, summary, sinceSave, fmt.Errorf("decode typed event: %w", err))
			}
			a.logger.Warn("decode typed event", zap.Error(err))
			a.writeError(model.ProcessingError{Stage: model.StageApply, Error: err.Error()})
			continue
		}

		pos := record.Position()
		if resumed && !pos.After(summary.Last) {
			summary.Skipped++
			a.metrics.ObserveSkipped()
			continue
		}

		started := time.Now()
		if err := a.handler.Apply(ctx, record); err != nil {
			summary.Failed++
			kind := ErrorKind(err)
			a.metrics.ObserveError(kind)
			if a.cfg.OnError == PolicyAbort {
				return summary, a.finish(ctx, summary, sinceSave,
					fmt.Errorf("apply %s at block %d log %d: %w", record.EventName, record.BlockNumber, record.LogIndex, err))
			}
			a.logger.Warn("skip event",
				zap.String("kind", kind),
				zap.String("event", record.EventName),
				zap.Uint64("block", record.BlockNumber),
				zap.Uint64("log_index", record.LogIndex),
				zap.Error(err),
			)
			a.writeError(processingError(record, err))
		} else {
			summary.Applied++
			a.metrics.ObserveApplied(record.EventName, record.BlockNumber, time.Since(started))
		}

		summary.Last = pos
		resumed = true
		sinceSave++
		if sinceSave >= a.cfg.BatchSize {
			if err := a.saveState(ctx, summary.Last); err != nil {
				return summary, err
			}
			sinceSave = 0
		}
	}

	if err := scanner.Err(); err != nil {
		return summary, a.finish(ctx, summary, sinceSave, fmt.Errorf("scan input: %w", err))
	}
	return summary, a.finish(ctx, summary, sinceSave, nil)
}

// finish saves pending progress and returns cause, or the save error.
func (a *Applier) finish(ctx context.Context, summary Summary, pending int, cause error) error {
	if pending == 0 {
		return cause
	}
	// progress is saved even when ctx was cancelled
	if err := a.saveState(context.WithoutCancel(ctx), summary.Last); err != nil {
		if cause != nil {
			return errors.Join(cause, err)
		}
		return err
	}
	return cause
}

func (a *Applier) loadState(ctx context.Context) (model.EventPosition, bool, error) {
	if a.cfg.StateStore == nil {
		return model.EventPosition{}, false, nil
	}
	pos, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return model.EventPosition{}, false, fmt.Errorf("load state: %w", err)
	}
	if ok {
		a.logger.Info("resume from state",
			zap.Uint64("block", pos.BlockNumber),
			zap.Uint64("log_index", pos.LogIndex),
		)
	}
	return pos, ok, nil
}

func (a *Applier) saveState(ctx context.Context, pos model.EventPosition) error {
	if a.cfg.StateStore == nil {
		return nil
	}
	if err := a.cfg.StateStore.Save(ctx, pos); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (a *Applier) writeError(rec model.ProcessingError) {
	if a.cfg.Errors == nil {
		return
	}
	if err := a.cfg.Errors.Write(rec); err != nil {
		a.logger.Warn("write processing error", zap.Error(err))
	}
}

// ErrorKind classifies an apply error for metrics and logs.
func ErrorKind(err error) string {
	var integrityErr *entity.IntegrityError
	switch {
	case errors.As(err, &integrityErr):
		return "integrity"
	case errors.Is(err, dex.ErrDecimalsUnresolved):
		return "metadata"
	case errors.Is(err, ErrMalformedPayload):
		return "payload"
	case errors.Is(err, ErrUnsupportedEvent):
		return "unsupported"
	default:
		return "apply"
	}
}

func processingError(record model.TypedEventRecord, err error) model.ProcessingError {
	topic0 := ""
	if record.Raw != nil {
		topic0 = record.Raw.Topic0
	}
	return model.ProcessingError{
		Stage:       model.StageApply,
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Topic0:      topic0,
		EventName:   record.EventName,
		Error:       err.Error(),
	}
}
