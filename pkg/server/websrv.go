package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/silver-mush/gopennmush/pkg/events"
	"github.com/silver-mush/gopennmush/pkg/gamedb"
)

// WSMessage is the JSON frame exchanged over the WebSocket transport.
type WSMessage struct {
	Type string         `json:"type"`
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// WebServer provides HTTP/WebSocket transport alongside the TCP game server.
type WebServer struct {
	game     *Game
	srv      *Server
	httpSrv  *http.Server
	mux      *http.ServeMux
	upgrader websocket.Upgrader
	metrics  *Metrics
}

// NewWebServer creates a web server bound to the game. srv runs the login
// and command loops for descriptors arriving over WebSocket.
func NewWebServer(game *Game, srv *Server) *WebServer {
	ws := &WebServer{
		game: game,
		srv:  srv,
		mux:  http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	ws.metrics = NewMetrics(game)
	ws.mux.HandleFunc("GET /health", ws.handleHealth)
	ws.mux.Handle("GET /metrics", ws.metrics.Handler())
	ws.mux.HandleFunc("GET /ws", ws.handleWebSocket)

	ws.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", game.Conf.WebPort),
		Handler: ws.mux,
	}
	return ws
}

// Start serves HTTP until Shutdown.
func (ws *WebServer) Start() error {
	log.Printf("WEB: listening on %s", ws.httpSrv.Addr)
	err := ws.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP listener.
func (ws *WebServer) Shutdown() {
	ws.httpSrv.Close()
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"mud":     ws.game.Conf.MudName,
		"players": ws.game.Conns.Count(),
		"objects": ws.game.DB.Size(),
		"uptime":  ws.game.Uptime(),
	})
}

// handleWebSocket upgrades the connection and runs the normal login and
// command loop over JSON frames.
func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WEB: websocket upgrade: %v", err)
		return
	}

	wc := &wsConn{conn: conn}
	lines := make(chan string)
	now := time.Now()
	d := &Descriptor{
		ID:        ws.game.Conns.NextID(),
		State:     ConnLogin,
		Player:    gamedb.Nothing,
		Addr:      r.RemoteAddr,
		ConnTime:  now,
		LastCmd:   now,
		Retries:   3,
		Transport: TransportWebSocket,
	}
	d.SendFunc = func(msg string) {
		wc.sendJSON(WSMessage{Type: "text", Text: msg})
	}
	d.ReceiveFunc = func(ev events.Event) {
		wc.sendJSON(WSMessage{Type: ev.Type.String(), Text: ev.Text, Data: ev.Data})
	}
	d.ReadLineFunc = func() (string, error) {
		line, ok := <-lines
		if !ok {
			return "", errors.New("websocket closed")
		}
		return line, nil
	}

	// Reader goroutine feeds frames into the line channel; the command loop
	// below consumes them like telnet input.
	go func() {
		defer close(lines)
		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("WEB: ws read from %s: %v", d.Addr, err)
				}
				return
			}
			if msg.Text != "" {
				lines <- msg.Text
			}
		}
	}()

	ws.srv.HandleDescriptor(d)
	conn.Close()
}

// wsConn serializes writes to a WebSocket connection.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (wc *wsConn) sendJSON(msg WSMessage) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	wc.conn.WriteJSON(msg)
}
