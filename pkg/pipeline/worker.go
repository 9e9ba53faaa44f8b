package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/dtnitsch/corpus-postprocessor/models"
	"github.com/dtnitsch/corpus-postprocessor/pkg/annotate"
)

// result is a worker's answer for one document. index is the document's
// origin position and is what the duplicate filter checks.
type result struct {
	index int
	text  string
	meta  *models.Meta
	err   error
}

// worker annotates documents until jobs is closed. It owns one Annotator
// at a time and replaces it after maxTasks documents. A panic or a failure
// to build the Annotator is fatal to the run; per-document annotation
// errors travel back in the result.
func (c *Coordinator) worker(ctx context.Context, id int, logger *slog.Logger, wg *sync.WaitGroup, jobs <-chan models.Document, results chan<- result, fail context.CancelCauseFunc) {
	defer wg.Done()

	var ann *annotate.Annotator
	tasks := 0
	defer func() {
		if ann != nil {
			_ = ann.Close()
		}
	}()

	for doc := range jobs {
		if ctx.Err() != nil {
			continue
		}

		if ann != nil && tasks >= c.cfg.MaxTasksPerWorker {
			logger.Debug("Recycling annotator", "worker_id", id, "tasks", tasks)
			_ = ann.Close()
			ann = nil
		}
		if ann == nil {
			var err error
			ann, err = c.newAnnotator()
			if err != nil {
				fail(fmt.Errorf("%w: worker %d: %v", ErrWorkerFatal, id, err))
				continue
			}
			tasks = 0
		}

		r, err := annotateSafely(ctx, ann, doc)
		if err != nil {
			logger.Error("Worker crashed", "worker_id", id, "index", doc.Index, "error", err)
			fail(fmt.Errorf("%w: worker %d: %v", ErrWorkerFatal, id, err))
			continue
		}
		tasks++
		results <- r
	}
}

// newAnnotator builds a worker's Annotator, turning a panic inside the
// engine or identifier factory into an error.
func (c *Coordinator) newAnnotator() (ann *annotate.Annotator, err error) {
	defer func() {
		if p := recover(); p != nil {
			ann = nil
			err = fmt.Errorf("panic loading annotator: %v\n%s", p, debug.Stack())
		}
	}()
	return annotate.New(c.engines, c.identifiers, annotate.Options{
		Stats:         c.cfg.Stats,
		Lang:          c.cfg.Lang,
		MaxChunkBytes: c.cfg.MaxChunkBytes,
	})
}

// annotateSafely turns a panic inside the engine into an error.
func annotateSafely(ctx context.Context, ann *annotate.Annotator, doc models.Document) (r result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic annotating document %d: %v\n%s", doc.Index, p, debug.Stack())
		}
	}()

	meta, aerr := ann.Annotate(ctx, doc.Text, doc.Meta)
	if aerr != nil {
		return result{index: doc.Index, text: doc.Text, meta: doc.Meta, err: aerr}, nil
	}
	return result{index: doc.Index, text: doc.Text, meta: meta}, nil
}
