package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"ammLedger/internal/model"
)

// CursorStore persists the last applied stream position so a restarted run
// resumes instead of double-counting.
type CursorStore interface {
	LoadCursor(ctx context.Context, name string) (block uint64, logIndex uint64, found bool, err error)
	SaveCursor(ctx context.Context, name string, block, logIndex uint64) error
}

// Processor streams a JSONL event file through the engine in batches: each
// batch runs its collect phase concurrently, then its apply phase strictly in
// input order, then checkpoints the cursor.
type Processor struct {
	engine  *Engine
	cursors CursorStore
	name    string
	batch   int
	workers int
	logger  *zap.Logger
}

func NewProcessor(engine *Engine, cursors CursorStore, cursorName string, batchSize, collectWorkers int, logger *zap.Logger) *Processor {
	if batchSize <= 0 {
		batchSize = 256
	}
	if collectWorkers <= 0 {
		collectWorkers = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		engine:  engine,
		cursors: cursors,
		name:    cursorName,
		batch:   batchSize,
		workers: collectWorkers,
		logger:  logger,
	}
}

// Run consumes the event file at path until EOF or a fatal store error.
func (p *Processor) Run(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open events: %w", err)
	}
	defer f.Close()

	var cursorBlock, cursorLog uint64
	var haveCursor bool
	if p.cursors != nil {
		cursorBlock, cursorLog, haveCursor, err = p.cursors.LoadCursor(ctx, p.name)
		if err != nil {
			return fmt.Errorf("load cursor: %w", err)
		}
		if haveCursor {
			p.logger.Info("resuming from cursor",
				zap.String("cursor", p.name),
				zap.Uint64("block", cursorBlock),
				zap.Uint64("log_index", cursorLog),
			)
		}
	}

	pool := pond.NewPool(p.workers)
	defer pool.StopAndWait()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)

	var total, applied, stale, unknown uint64
	batch := make([]model.EventRecord, 0, p.batch)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := p.processBatch(ctx, pool, batch)
		applied += n
		if err != nil {
			return err
		}
		last := batch[len(batch)-1]
		if p.cursors != nil {
			if err := p.cursors.SaveCursor(ctx, p.name, last.BlockNumber, last.LogIndex); err != nil {
				return fmt.Errorf("save cursor: %w", err)
			}
		}
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var ev model.EventRecord
		if err := json.Unmarshal(line, &ev); err != nil {
			p.logger.Error("malformed event line, skipping",
				zap.Uint64("line", total),
				zap.Error(err),
			)
			continue
		}
		if haveCursor && (ev.BlockNumber < cursorBlock ||
			(ev.BlockNumber == cursorBlock && ev.LogIndex <= cursorLog)) {
			stale++
			continue
		}
		if !Known(ev.EventName) {
			unknown++
			p.logger.Debug("unhandled event type", zap.String("event", ev.EventName))
			continue
		}

		batch = append(batch, ev)
		if len(batch) >= p.batch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	if err := flush(); err != nil {
		return err
	}

	p.logger.Info("event stream processed",
		zap.Uint64("total", total),
		zap.Uint64("applied", applied),
		zap.Uint64("stale", stale),
		zap.Uint64("unhandled", unknown),
	)
	return nil
}

// processBatch runs collect concurrently and apply sequentially. Collect
// failures only cost the warmed cache, so they log and never stop the batch;
// apply failures are infrastructure errors and abort the run.
func (p *Processor) processBatch(ctx context.Context, pool pond.Pool, batch []model.EventRecord) (uint64, error) {
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for _, ev := range batch {
		ev := ev
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				return
			}
			if err := p.engine.Collect(groupCtx, ev); err != nil {
				p.logger.Warn("collect failed",
					zap.String("event", ev.EventName),
					zap.Uint64("block", ev.BlockNumber),
					zap.Uint64("log_index", ev.LogIndex),
					zap.Error(err),
				)
			}
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		p.logger.Warn("collect group encountered error", zap.Error(err))
	}

	var applied uint64
	for _, ev := range batch {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		if err := p.engine.Apply(ctx, ev); err != nil {
			return applied, fmt.Errorf("apply %s at block %d log %d: %w",
				ev.EventName, ev.BlockNumber, ev.LogIndex, err)
		}
		applied++
	}
	return applied, nil
}
