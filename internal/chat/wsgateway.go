// Package chat exposes the chat protocol to WebSocket clients through an
// optional HTTP gateway.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Gateway bridges WebSocket clients into the chat server. Each text message
// carries exactly one protocol line, so a browser client performs the same
// credential handshake and sees the same broadcasts as a TCP client.
type Gateway struct {
	server   *Server
	cfg      WebSocketConfig
	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener
}

// NewGateway creates a gateway in front of server using the given WebSocket
// settings. Call Start to bind it.
func NewGateway(server *Server, cfg WebSocketConfig) *Gateway {
	oc := newOriginChecker(cfg.AllowedOrigins)
	return &Gateway{
		server: server,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     oc.check,
		},
	}
}

// Routes configures and returns the gateway's HTTP ServeMux: a plain-text
// health check on / and the WebSocket endpoint on /chat.
func (g *Gateway) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", g.healthHandler)
	mux.HandleFunc("/chat", g.chatHandler)
	return mux
}

func (g *Gateway) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := fmt.Fprint(w, "LineRelay gateway is running!"); err != nil {
		log.Printf("Error writing health response: %v", err)
	}
}

// chatHandler upgrades the connection and hands it to the chat server as a
// regular session transport. The handler goroutine drives the session
// lifecycle and returns when the session terminates.
func (g *Gateway) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	conn.SetReadLimit(int64(g.server.cfg.MaxLineBytes))
	log.Printf("New WebSocket connection from %s", conn.RemoteAddr())
	g.server.ServeTransport(newWSTransport(conn))
}

// Start binds the gateway's listener and serves in the background. Bind
// failure is returned to the caller.
func (g *Gateway) Start() error {
	ln, err := net.Listen("tcp", g.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("bind websocket gateway %s: %w", g.cfg.ListenAddr, err)
	}
	g.listener = ln
	g.httpServer = &http.Server{
		Handler:           g.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("WebSocket gateway listening on %s", ln.Addr())
	go func() {
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("WebSocket gateway error: %v", err)
		}
	}()
	return nil
}

// Addr returns the gateway's bound address, or nil before Start.
func (g *Gateway) Addr() net.Addr {
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

// Shutdown stops the HTTP listener. Live WebSocket sessions are hijacked
// connections that http.Server.Shutdown does not touch; they are closed by
// the chat server's own shutdown sweep, so call Server.Shutdown first.
func (g *Gateway) Shutdown(timeout time.Duration) error {
	if g.httpServer == nil {
		return nil
	}
	log.Println("Shutting down WebSocket gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := g.httpServer.Shutdown(ctx); err != nil {
		log.Printf("WebSocket gateway shutdown error: %v", err)
		return err
	}
	log.Println("WebSocket gateway shutdown completed")
	return nil
}

// wsTransport adapts a websocket connection to the Transport interface: one
// text message per protocol line.
type wsTransport struct {
	conn *websocket.Conn
}

func newWSTransport(conn *websocket.Conn) Transport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadLine() (string, error) {
	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			if isWSClosed(err) {
				return "", io.EOF
			}
			return "", err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
}

func (t *wsTransport) WriteLine(line string) error {
	err := t.conn.WriteMessage(websocket.TextMessage, []byte(line))
	if isWSClosed(err) {
		return net.ErrClosed
	}
	return err
}

func (t *wsTransport) Close() error {
	err := t.conn.Close()
	if isWSClosed(err) {
		return nil
	}
	return err
}

func (t *wsTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

// isWSClosed maps gorilla's close conditions onto the transport-neutral
// closed-stream classification the lifecycle expects.
func isWSClosed(err error) bool {
	if err == nil {
		return false
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, websocket.ErrCloseSent) || IsClosedConn(err)
}
