// Package wsstream forwards a workspace's orchestrator phase changes live to a
// connected websocket client, the transport spec.md says routa does not
// own but must support for an IDE or CLI front end following along with a
// running orchestrator.
package wsstream

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/routa-dev/routa/internal/event"
)

type wsWriter interface {
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
}

// Handler streams a single workspace's bus events to a websocket client
// until the connection or the request context closes.
type Handler struct {
	Bus         *event.Bus
	WorkspaceID string
}

// ServeHTTP upgrades the request to a websocket connection and streams
// every OrchestratorPhaseChangedEvent whose WorkspaceID matches the
// Handler's WorkspaceID. Other event types are not forwarded.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	ctx := r.Context()
	if err := h.stream(ctx, conn); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "stream error")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "done")
}

func (h *Handler) stream(ctx context.Context, conn wsWriter) error {
	subID, ch := h.Bus.SubscribeChannel("orchestrator.phase_changed", 32)
	defer h.Bus.Unsubscribe(subID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			pe, ok := e.(event.OrchestratorPhaseChangedEvent)
			if !ok || pe.WorkspaceID != h.WorkspaceID {
				continue
			}
			payload, err := json.Marshal(pe)
			if err != nil {
				return err
			}
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				return err
			}
		}
	}
}
