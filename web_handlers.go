package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/jpeg"
	"net/http"

	"github.com/elijahnyp/station_controller/station"
	. "github.com/elijahnyp/station_controller/util"
	"github.com/gorilla/websocket"
)

const matrixMessage = "matrix"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Data interface{} `json:"data"`
	Type string      `json:"type"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn *websocket.Conn
	send chan WebSocketMessage
	hub  *WSHub
}

// WSHub maintains the set of active clients and broadcasts messages
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan WebSocketMessage
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{}
}

type apiError struct {
	Error string `json:"error"`
}

// NewHub creates a new WebSocket hub
func NewHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WebSocketMessage, 16),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is done, then disconnects every client.
func (h *WSHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			Logger.Info().Msg("Client connected to WebSocket")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				Logger.Info().Msg("Client disconnected from WebSocket")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// BroadcastUpdate sends an update to all connected clients
func (h *WSHub) BroadcastUpdate(messageType string, data interface{}) {
	select {
	case h.broadcast <- WebSocketMessage{Type: messageType, Data: data}:
	default:
		Logger.Warn().Msgf("websocket hub busy, dropping %s update", messageType)
	}
}

// readPump pumps messages from the websocket connection to the hub
func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *WSClient) writePump() {
	defer func() {
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for message := range c.send {
		if err := c.conn.WriteJSON(message); err != nil {
			return
		}
	}
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		Logger.Debug().Err(err).Msg("Error writing close message")
	}
}

// Panel serves the operator API on top of a controller.
type Panel struct {
	ctrl *station.Controller
	hub  *WSHub
}

func newPanel(ctrl *station.Controller, hub *WSHub) *Panel {
	return &Panel{ctrl: ctrl, hub: hub}
}

func (p *Panel) Register(monitor *MonitorServer) {
	monitor.AddHandler("/ws", p.ServeWebSocket)
	monitor.AddHandler("/api/state", p.APIState)
	monitor.AddHandler("/api/matrix", p.APIMatrix)
	monitor.AddHandler("/api/cell", p.APICell)
	monitor.AddHandler("/api/master_off", p.APIMasterOff)
	monitor.AddHandler("/matrix.jpg", p.MatrixImage)
}

// ServeWebSocket handles websocket requests from the peer. The current
// projection is sent first so a new panel never waits for a change.
func (p *Panel) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan WebSocketMessage, 256),
		hub:  p.hub,
	}
	client.send <- WebSocketMessage{Type: matrixMessage, Data: p.ctrl.Projection()}

	select {
	case client.hub.register <- client:
	case <-client.hub.done:
		if err := conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
		return
	}

	go client.writePump()
	go client.readPump()
}

func (p *Panel) APIState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{"Bad Request Method"})
		return
	}
	writeJSON(w, http.StatusOK, p.ctrl.State())
}

func (p *Panel) APIMatrix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{"Bad Request Method"})
		return
	}
	writeJSON(w, http.StatusOK, p.ctrl.Projection())
}

// APICell selects the cell named by the id form value.
func (p *Panel) APICell(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{"Bad Request Method"})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{"Error parsing form"})
		return
	}
	results, err := p.ctrl.Click(r.Context(), r.FormValue("id"))
	switch {
	case errors.Is(err, station.ErrUnknownCell):
		writeJSON(w, http.StatusNotFound, apiError{err.Error()})
		return
	case errors.Is(err, station.ErrCellDisabled):
		writeJSON(w, http.StatusConflict, apiError{err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, apiError{err.Error()})
		return
	}
	p.writeResults(w, results)
}

// APIMasterOff switches everything off. The request must carry confirm=yes.
func (p *Panel) APIMasterOff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{"Bad Request Method"})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{"Error parsing form"})
		return
	}
	confirmed := station.ConfirmFunc(func(context.Context, string) (bool, error) {
		return r.FormValue("confirm") == "yes", nil
	})
	sent, err := p.ctrl.MasterOff(r.Context(), confirmed)
	if !sent && err == nil {
		writeJSON(w, http.StatusPreconditionFailed, apiError{station.MasterOffPrompt + " Repeat with confirm=yes."})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadGateway, apiError{err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p.ctrl.Projection())
}

func (p *Panel) MatrixImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	img := RenderMatrix(p.ctrl.Projection())
	imgWriter := bytes.NewBuffer(nil)
	if err := jpeg.Encode(imgWriter, img, &jpeg.Options{Quality: 90}); err != nil {
		http.Error(w, "Error encoding image", http.StatusInternalServerError)
		return
	}
	w.Header().Add("Content-Type", "image/jpeg")
	if _, err := w.Write(imgWriter.Bytes()); err != nil {
		Logger.Error().Msgf("Error writing image response: %v", err)
	}
}

// writeResults answers with the projection, or 502 when the device
// rejected any command of the sequence.
func (p *Panel) writeResults(w http.ResponseWriter, results []station.Result) {
	for _, res := range results {
		if res.Err != nil {
			writeJSON(w, http.StatusBadGateway, apiError{res.Err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, p.ctrl.Projection())
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		Logger.Error().Err(err).Msg("Error encoding response")
	}
}
