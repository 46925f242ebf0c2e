package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/metrics"
)

const reembedOperation = "reembed"

// Reembed replaces the vector of every stored message with a fresh embedding
// from the pipeline's embedder, in message ID order. With WithCheckpoints,
// progress is saved after each batch and a later call continues after the
// last saved message; the checkpoint is removed once every message is done.
// Returns the number of messages re-embedded by this call.
func (p *Pipeline) Reembed(ctx context.Context) (int, error) {
	var resumeAfter core.MessageID
	processed := 0
	if p.checkpoints != nil {
		checkpoint, err := p.checkpoints.LoadCheckpoint(ctx, reembedOperation)
		if err != nil {
			return 0, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if checkpoint != nil {
			resumeAfter = checkpoint.LastID
			processed = checkpoint.Processed
			p.logger.Info("resuming reembedding", "after", resumeAfter, "processed", processed)
		}
	}

	var ids []core.MessageID
	err := p.messages.ForEachMessage(ctx, func(msg *core.Message) error {
		if resumeAfter == "" || msg.ID > resumeAfter {
			ids = append(ids, msg.ID)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list messages: %w", err)
	}
	if len(ids) == 0 {
		p.logger.Info("no messages to reembed")
		return 0, p.clearCheckpoint(ctx)
	}

	var tracker *ProgressTracker
	if p.progress != nil {
		fmt.Fprintf(p.progress, "Starting reembedding of %d messages (batch size: %d)\n", len(ids), p.batchSize)
		tracker = NewProgressTracker(p.progress, "Reembedding", len(ids), p.batchSize)
		tracker.Start()
	}

	done := 0
	for start := 0; start < len(ids); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		end := min(start+p.batchSize, len(ids))

		batch, err := p.messages.GetMessages(ctx, ids[start:end]...)
		if err != nil {
			return done, fmt.Errorf("failed to load batch: %w", err)
		}
		for _, msg := range batch {
			msg.Vector = nil
		}
		if err := p.embeddingProc.process(ctx, batch); err != nil {
			return done, err
		}
		if err := p.messages.AddMessages(ctx, batch...); err != nil {
			return done, fmt.Errorf("failed to update batch: %w", err)
		}

		done += len(batch)
		metrics.IngestedTotal.WithLabelValues("reembed").Add(float64(len(batch)))
		if tracker != nil {
			tracker.Increment(len(batch))
		}

		if p.checkpoints != nil {
			checkpoint := &core.Checkpoint{
				Operation: reembedOperation,
				LastID:    ids[end-1],
				Processed: processed + done,
			}
			if err := p.checkpoints.SaveCheckpoint(ctx, checkpoint); err != nil {
				return done, fmt.Errorf("failed to save checkpoint: %w", err)
			}
		}
	}

	if tracker != nil {
		tracker.Finish()
		elapsed := tracker.Elapsed()
		fmt.Fprintf(p.progress, "Reembedding complete. Processed %d messages in %v\n", done, elapsed.Round(time.Second))
	}
	p.logger.Info("reembedded messages", "count", done)
	return done, p.clearCheckpoint(ctx)
}

func (p *Pipeline) clearCheckpoint(ctx context.Context) error {
	if p.checkpoints == nil {
		return nil
	}
	if err := p.checkpoints.DeleteCheckpoint(ctx, reembedOperation); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}
