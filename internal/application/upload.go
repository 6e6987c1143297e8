package application

import (
	"context"
	"errors"
	"io"
	"path"
	"sync"

	"github.com/LeL010/project2-spork-bootcamp/internal/domain/objectstore"
)

// avatarKeyPrefix is the fixed namespace under which avatar images are
// stored. Keys are prefix + original filename, so same-named uploads
// overwrite each other (last write wins, no versioning).
const avatarKeyPrefix = "images/"

var errNoTerminalEvent = errors.New("upload finished without terminal event")

// UploadState is the lifecycle of one avatar transfer.
type UploadState int

const (
	UploadPending UploadState = iota
	UploadInProgress
	UploadCompleted
	UploadFailed
)

// UploadEvent is one observation of an upload session: repeated Progress
// observations (Percent, monotonically non-decreasing) followed by exactly
// one terminal observation carrying either Reference or Err.
type UploadEvent struct {
	State     UploadState
	Percent   int
	Reference string
	Err       error
}

// Asset is the file selected on the account form.
type Asset struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// UploadSession streams one asset to the object store. It is created per
// submission and discarded when the orchestrator finalizes. Wait resolves
// only on the terminal event; starting the upload is never "done".
type UploadSession struct {
	Key        string
	TotalBytes int64

	mu        sync.Mutex
	state     UploadState
	percent   int
	reference string
	err       error

	events chan UploadEvent
	done   chan struct{}
}

// StartUpload begins streaming asset to the object store and returns the
// running session. The destination key is derived from the original
// filename only; collisions are last-write-wins by design.
func (s *Service) StartUpload(ctx context.Context, asset *Asset) *UploadSession {
	u := &UploadSession{
		Key:        avatarKeyPrefix + path.Base(asset.Filename),
		TotalBytes: asset.Size,
		state:      UploadPending,
		events:     make(chan UploadEvent, 128),
		done:       make(chan struct{}),
	}
	go u.run(ctx, s.Objects, asset)
	return u
}

func (u *UploadSession) run(ctx context.Context, store objectstore.Store, asset *Asset) {
	defer close(u.done)

	u.setInProgress()
	err := store.Upload(ctx, u.Key, asset.ContentType, asset.Content, asset.Size, u.onProgress)
	if err != nil {
		u.fail(err)
		return
	}
	ref, err := store.ResolveURL(ctx, u.Key)
	if err != nil {
		u.fail(err)
		return
	}
	u.complete(ref)
}

// Events returns the session's event stream. The channel is closed after
// the terminal event. Progress events may be dropped under backpressure;
// the terminal event is always delivered before the close.
func (u *UploadSession) Events() <-chan UploadEvent {
	return u.events
}

// Wait blocks until the session reaches a terminal state and returns the
// resolved reference, or the failure reason.
func (u *UploadSession) Wait(ctx context.Context) (string, error) {
	select {
	case <-u.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	switch u.state {
	case UploadCompleted:
		return u.reference, nil
	case UploadFailed:
		return "", u.err
	default:
		return "", errNoTerminalEvent
	}
}

// State reports the current lifecycle state.
func (u *UploadSession) State() UploadState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Percent reports the last observed progress percentage.
func (u *UploadSession) Percent() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.percent
}

func (u *UploadSession) setInProgress() {
	u.mu.Lock()
	u.state = UploadInProgress
	u.mu.Unlock()
	u.emit(UploadEvent{State: UploadInProgress, Percent: 0})
}

// onProgress converts byte counts into percentage events. Percent never
// decreases and is held below 100 until the terminal event fires.
func (u *UploadSession) onProgress(transferred, total int64) {
	if total <= 0 {
		return
	}
	pct := int(transferred * 100 / total)
	if pct > 99 {
		pct = 99
	}
	u.mu.Lock()
	if pct <= u.percent || u.state != UploadInProgress {
		u.mu.Unlock()
		return
	}
	u.percent = pct
	u.mu.Unlock()
	u.emit(UploadEvent{State: UploadInProgress, Percent: pct})
}

func (u *UploadSession) complete(ref string) {
	u.mu.Lock()
	u.state = UploadCompleted
	u.percent = 100
	u.reference = ref
	u.mu.Unlock()
	u.emit(UploadEvent{State: UploadInProgress, Percent: 100})
	u.emitTerminal(UploadEvent{State: UploadCompleted, Percent: 100, Reference: ref})
}

func (u *UploadSession) fail(err error) {
	u.mu.Lock()
	u.state = UploadFailed
	u.err = err
	pct := u.percent
	u.mu.Unlock()
	u.emitTerminal(UploadEvent{State: UploadFailed, Percent: pct, Err: err})
}

// emit drops the event when nobody is draining the channel fast enough;
// progress observations are advisory.
func (u *UploadSession) emit(ev UploadEvent) {
	select {
	case u.events <- ev:
	default:
	}
}

// emitTerminal makes room for the terminal event if the buffer is full,
// then closes the stream.
func (u *UploadSession) emitTerminal(ev UploadEvent) {
	for {
		select {
		case u.events <- ev:
			close(u.events)
			return
		default:
			select {
			case <-u.events:
			default:
			}
		}
	}
}
