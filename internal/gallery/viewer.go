package gallery

import (
	"context"
	"sync"
	"time"

	"warmdelights/internal/analytics"
	"warmdelights/internal/logger"
)

const viewTimeout = 5 * time.Second

// ViewNotifier tells the backend an image was displayed.
type ViewNotifier interface {
	RecordView(ctx context.Context, filename string) error
}

// Viewer reports successful renders. Nothing it does can fail the caller.
type Viewer struct {
	notifier ViewNotifier
	recorder Recorder

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewViewer(notifier ViewNotifier, recorder Recorder) *Viewer {
	return &Viewer{notifier: notifier, recorder: recorder}
}

func (v *Viewer) Viewed(ctx context.Context, img Image) {
	if v.recorder != nil {
		v.recorder.Record(ctx, analytics.EventImageView, map[string]interface{}{
			"imageId":  img.Key(),
			"filename": img.Filename,
		})
	}
	if v.notifier == nil || img.IsDataURL() {
		return
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.wg.Add(1)
	v.mu.Unlock()

	go func() {
		defer v.wg.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), viewTimeout)
		defer cancel()
		if err := v.notifier.RecordView(nctx, img.Filename); err != nil {
			logger.LogInfo("View tracking failed for %s: %v", img.Filename, err)
		}
	}()
}

// Wait blocks until pending view notifications finish.
func (v *Viewer) Wait() {
	v.wg.Wait()
}

// Close stops backend notifications and waits for pending ones.
func (v *Viewer) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	v.wg.Wait()
}
