// Package illustration generates candidate illustrations for a prompt: a
// fixed-size batch of parallel attempts with prompt-repair retries.
package illustration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/haeundev/storylab/internal/ai"
	"github.com/haeundev/storylab/internal/media"
	"github.com/haeundev/storylab/internal/metrics"
)

// batchSize is the number of parallel generation attempts per batch.
const batchSize = 2

const stylePrefix = `A soft, natural-colored storybook illustration for a children's picture book, 4:3 framing.
Absolutely no text, letters, logos, or signatures in the image.
Scene: `

const repairPrompt = `Rewrite the following sentence so it is suitable as a children's storybook
illustration description: positive, gentle, and with nothing violent or explicit.
Reply with the rewritten sentence only.

`

// Coordinator runs image batches. Saver persists raw media bytes and returns
// a servable URL.
type Coordinator struct {
	generator ai.ImageGenerator
	completer ai.Completer
	saver     Saver
}

// Saver persists media bytes. Implemented by media.Store.
type Saver interface {
	Save(data []byte, ext string) (string, error)
}

var _ Saver = (*media.Store)(nil)

// NewCoordinator creates an image coordinator.
func NewCoordinator(generator ai.ImageGenerator, completer ai.Completer, saver Saver) *Coordinator {
	return &Coordinator{generator: generator, completer: completer, saver: saver}
}

// Generate runs up to retries+1 batches of batchSize parallel attempts. When
// a batch comes back short and retries remain, the prompt is rewritten into a
// safer form and the whole batch is retried. The result carries 0 to
// batchSize URLs and is never an error: an exhausted batch with zero
// successes is a valid outcome the caller must present as an empty set.
func (c *Coordinator) Generate(ctx context.Context, prompt string, retries int) []string {
	for attempt := 0; ; attempt++ {
		urls := c.runBatch(ctx, prompt)
		if len(urls) >= batchSize || retries <= 0 || ctx.Err() != nil {
			metrics.ImageBatches.WithLabelValues(strconv.Itoa(len(urls))).Inc()
			return urls
		}

		retries--
		slog.Info("Image batch came back short, repairing prompt",
			"attempt", attempt, "successes", len(urls), "retries_left", retries)
		prompt = c.repairPrompt(ctx, prompt)
	}
}

// runBatch launches batchSize independent attempts and joins them all.
// Individual failures are logged and skipped; they never abort siblings.
func (c *Coordinator) runBatch(ctx context.Context, prompt string) []string {
	results := make([]string, batchSize)

	var wg sync.WaitGroup
	for i := 0; i < batchSize; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			url, err := c.generateOne(ctx, prompt)
			if err != nil {
				metrics.ImageAttempts.WithLabelValues("error").Inc()
				slog.Warn("Image attempt failed", "slot", slot, "error", err)
				return
			}
			metrics.ImageAttempts.WithLabelValues("ok").Inc()
			results[slot] = url
		}(i)
	}
	wg.Wait()

	urls := make([]string, 0, batchSize)
	for _, url := range results {
		if url != "" {
			urls = append(urls, url)
		}
	}
	return urls
}

func (c *Coordinator) generateOne(ctx context.Context, prompt string) (string, error) {
	data, err := c.generator.GenerateImage(ctx, stylePrefix+prompt)
	if err != nil {
		return "", err
	}
	url, err := c.saver.Save(data, ".png")
	if err != nil {
		return "", fmt.Errorf("save illustration: %w", err)
	}
	return url, nil
}

// repairPrompt asks the text capability for a safer phrasing. On failure the
// original prompt is reused; the retry still counts.
func (c *Coordinator) repairPrompt(ctx context.Context, prompt string) string {
	fixed, err := c.completer.Complete(ctx, repairPrompt+prompt)
	if err != nil || fixed == "" {
		slog.Warn("Prompt repair failed, reusing original prompt", "error", err)
		return prompt
	}
	return fixed
}
