package social

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ReadReceiptSync advances the local read marker of the conversation being
// viewed and reports it to the backend without waiting for the answer.
type ReadReceiptSync struct {
	cache   *CacheStore
	backend Backend
	log     zerolog.Logger

	// visible reports whether ref is on screen: panel open, matching tab
	// active and ref selected.
	visible func(ref ConversationRef) bool
	ctx     func() context.Context
	now     func() time.Time

	inflight sync.WaitGroup
}

// NewReadReceiptSync wires a receipt syncer. ctx supplies the context of
// background calls; it is read once per call.
func NewReadReceiptSync(cache *CacheStore, backend Backend, visible func(ConversationRef) bool, ctx func() context.Context, log zerolog.Logger) *ReadReceiptSync {
	if ctx == nil {
		ctx = context.Background
	}
	return &ReadReceiptSync{
		cache:   cache,
		backend: backend,
		log:     log.With().Str("component", "read-receipts").Logger(),
		visible: visible,
		ctx:     ctx,
		now:     time.Now,
	}
}

// MarkRead marks ref as read up to its highest message id when it is
// visible. It returns true when the marker moved and a backend call was
// started; an already-read conversation is a no-op.
func (r *ReadReceiptSync) MarkRead(ref ConversationRef) bool {
	if r.visible != nil && !r.visible(ref) {
		return false
	}
	maxID, lastRead, ok := r.cache.ReadState(ref)
	if !ok || maxID <= lastRead {
		return false
	}
	at := r.now().UTC().Format(time.RFC3339Nano)
	if !r.cache.MarkConversationAsRead(ref, maxID, at, r.cache.SelfID()) {
		return false
	}

	r.report(ref, maxID)
	return true
}

// Receive adds an incoming message to ref. When ref is visible the message
// lands already read and the new marker is reported.
func (r *ReadReceiptSync) Receive(ref ConversationRef, msg Message) {
	if r.visible != nil && !r.visible(ref) {
		r.cache.AddMessage(ref, msg, StatusNone)
		return
	}
	at := r.now().UTC().Format(time.RFC3339Nano)
	if maxID, moved := r.cache.AddReadMessage(ref, msg, at); moved {
		r.report(ref, maxID)
	}
}

func (r *ReadReceiptSync) report(ref ConversationRef, maxID int64) {
	ctx := r.ctx()
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		var err error
		switch ref.Kind {
		case KindGroup:
			err = r.backend.MarkGroupRead(ctx, ref.ID, maxID)
		default:
			err = r.backend.MarkDirectRead(ctx, ref.ID, maxID)
		}
		if err != nil {
			r.log.Warn().Err(err).Str("kind", string(ref.Kind)).Str("id", ref.ID).
				Int64("message_id", maxID).Msg("read receipt not delivered")
		}
	}()
}

// Wait blocks until every started backend call has returned.
func (r *ReadReceiptSync) Wait() {
	r.inflight.Wait()
}
