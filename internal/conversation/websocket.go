package conversation

import (
	"context"
	"encoding/json"
	"net/http"

	gorillawebsocket "github.com/gorilla/websocket"

	"github.com/harborclinic/scheduling-agent/pkg/logging"
)

// wsConn abstracts a WebSocket connection for testability.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type wsInbound struct {
	Message string `json:"message"`
}

type wsOutbound struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	Phase          Phase  `json:"phase"`
	Error          string `json:"error,omitempty"`
}

// WSHandler serves a live chat session over one WebSocket connection. Each
// inbound frame is one patient message; each outbound frame is the reply.
type WSHandler struct {
	service  Service
	logger   *logging.Logger
	upgrader gorillawebsocket.Upgrader
}

// NewWSHandler creates the WebSocket chat handler. checkOrigin receives the
// request origin; nil allows all origins.
func NewWSHandler(service Service, logger *logging.Logger, checkOrigin func(r *http.Request) bool) *WSHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Chat handles GET /ws/chat.
func (h *WSHandler) Chat(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	h.serve(r.Context(), conn)
}

// serve runs the per-connection loop: start a session, then process frames
// sequentially until the peer disconnects.
func (h *WSHandler) serve(ctx context.Context, conn wsConn) {
	defer conn.Close()

	started, err := h.service.StartConversation(ctx, StartRequest{})
	if err != nil {
		h.logger.Error("failed to start websocket conversation", "error", err)
		h.write(conn, wsOutbound{Error: "failed to start conversation"})
		return
	}
	h.write(conn, wsOutbound{
		ConversationID: started.ConversationID,
		Message:        started.Message,
		Phase:          started.Phase,
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if gorillawebsocket.IsUnexpectedCloseError(err, gorillawebsocket.CloseGoingAway, gorillawebsocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "error", err.Error())
			}
			return
		}

		var in wsInbound
		if err := json.Unmarshal(data, &in); err != nil || in.Message == "" {
			h.write(conn, wsOutbound{ConversationID: started.ConversationID, Error: "expected {\"message\": \"...\"}"})
			continue
		}

		resp, err := h.service.ProcessMessage(ctx, MessageRequest{
			ConversationID: started.ConversationID,
			Message:        in.Message,
		})
		if err != nil {
			h.logger.Error("websocket turn failed", "conversation_id", started.ConversationID, "error", err)
			h.write(conn, wsOutbound{ConversationID: started.ConversationID, Error: "failed to process message"})
			continue
		}

		h.write(conn, wsOutbound{
			ConversationID: resp.ConversationID,
			Message:        resp.Message,
			Phase:          resp.Phase,
		})
	}
}

func (h *WSHandler) write(conn wsConn, out wsOutbound) {
	data, err := json.Marshal(out)
	if err != nil {
		h.logger.Error("failed to encode websocket frame", "error", err)
		return
	}
	if err := conn.WriteMessage(gorillawebsocket.TextMessage, data); err != nil {
		h.logger.Warn("websocket write failed", "error", err.Error())
	}
}
