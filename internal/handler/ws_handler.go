package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mercaline/chat-service/internal/config"
	"github.com/mercaline/chat-service/internal/hub"
	"github.com/mercaline/chat-service/internal/service"
	"github.com/mercaline/chat-service/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades connections and feeds frames to the dispatcher.
type WSHandler struct {
	dispatcher service.Dispatcher
	wsCfg      config.WebSocketConfig
}

func NewWSHandler(d service.Dispatcher, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		dispatcher: d,
		wsCfg:      wsCfg,
	}
}

func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l := log.Ctx(r.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), conn, h.wsCfg)

	go client.WritePump()
	go client.ReadPump(
		func(c *hub.Client, frame []byte) {
			h.dispatcher.HandleFrame(context.Background(), c, frame)
		},
		func(c *hub.Client) {
			h.dispatcher.HandleDisconnect(context.Background(), c)
		},
	)
}

func (h *WSHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/chat/ws", h.HandleWebSocket)
}
