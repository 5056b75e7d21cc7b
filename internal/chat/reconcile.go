package chat

import (
	"github.com/minouverse/minouchat/internal/bus"
	"github.com/minouverse/minouchat/internal/model"
	"go.uber.org/zap"
)

// Reconciler merges asynchronous send outcomes into the store, at most once
// per tempID. Confirmations can arrive from the socket ack, the HTTP
// response, or both racing; the registry claim decides the winner and the
// loser is silently discarded.
type Reconciler struct {
	store    *Store
	registry *PendingRegistry
	bus      *bus.Bus
	logger   *zap.Logger
}

// SendFailure is the payload for chat.send_failed events.
type SendFailure struct {
	TempID string
	Reason string
}

// NewReconciler creates a reconciler over the given store and registry.
func NewReconciler(store *Store, registry *PendingRegistry, b *bus.Bus, logger *zap.Logger) *Reconciler {
	return &Reconciler{store: store, registry: registry, bus: b, logger: logger}
}

// HandleConfirm applies a server confirmation for tempID. Duplicate, late,
// and unknown confirmations are logged and dropped; they never create a new
// entry.
func (r *Reconciler) HandleConfirm(tempID string, srv *model.Message) {
	if _, ok := r.registry.Claim(tempID); !ok {
		r.logger.Debug("discarding confirmation for unknown or settled send",
			zap.String("temp_id", tempID))
		return
	}
	if !r.store.Patch(tempID, srv) {
		// Claimed but gone from the store: the conversation was switched
		// between claim and patch. Nothing visible to update.
		r.logger.Debug("confirmed send no longer in store", zap.String("temp_id", tempID))
		return
	}
	r.logger.Info("message confirmed",
		zap.String("temp_id", tempID),
		zap.String("msg_id", srv.ID))
	r.bus.Publish("chat.message_confirmed", srv)
	r.bus.Publish("chat.conversation_updated", srv)
}

// HandleFailure marks the send failed. The entry stays visible; there is no
// automatic retry.
func (r *Reconciler) HandleFailure(tempID string, cause error) {
	if _, ok := r.registry.Claim(tempID); !ok {
		r.logger.Debug("discarding failure for unknown or settled send",
			zap.String("temp_id", tempID))
		return
	}
	r.store.MarkFailed(tempID)
	r.logger.Warn("message send failed",
		zap.String("temp_id", tempID),
		zap.Error(cause))
	r.bus.Publish("chat.send_failed", SendFailure{TempID: tempID, Reason: cause.Error()})
}
