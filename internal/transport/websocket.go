// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	applog "spectra/internal/log"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	broadcastQueue = 256
	writeTimeout   = time.Second
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

type wsClient struct {
	id   uuid.UUID
	conn *websocket.Conn
}

// WebSocketTransport implements the Transport interface for WebSocket connections.
// Every message is broadcast as JSON to all connected clients.
type WebSocketTransport struct {
	addr     string
	path     string
	upgrader websocket.Upgrader

	clients   map[uuid.UUID]*wsClient
	clientsMu sync.Mutex

	broadcast chan any
	dropped   atomic.Uint64
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	server   *http.Server
	listener net.Listener
}

// NewWebSocketTransport creates a transport serving path. The broadcast loop
// runs immediately, the HTTP server only after Start, so Handler can be
// mounted elsewhere.
func NewWebSocketTransport(addr, path string) *WebSocketTransport {
	if path == "" {
		path = "/"
	}
	wst := &WebSocketTransport{
		addr: addr,
		path: path,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Visualizers are served from anywhere.
			},
		},
		clients:   make(map[uuid.UUID]*wsClient),
		broadcast: make(chan any, broadcastQueue),
		done:      make(chan struct{}),
	}

	wst.wg.Add(1)
	go wst.handleBroadcasts()
	return wst
}

// Handler returns the HTTP handler upgrading requests on the configured path.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(wst.path, wst.handleWebSocket)
	return mux
}

// Start listens on the configured address and serves in the background.
// Listen errors are returned, serve errors are logged.
func (wst *WebSocketTransport) Start() error {
	ln, err := net.Listen("tcp", wst.addr)
	if err != nil {
		return err
	}
	wst.listener = ln
	wst.server = &http.Server{
		Handler:           wst.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		applog.Infof("WebSocketTransport: Serving ws://%s%s", ln.Addr(), wst.path)
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocketTransport: Server error: %v", err)
		}
	}()
	return nil
}

// Port returns the TCP port being served, 0 before Start.
func (wst *WebSocketTransport) Port() int {
	if wst.listener == nil {
		return 0
	}
	if tcp, ok := wst.listener.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Path returns the websocket endpoint path.
func (wst *WebSocketTransport) Path() string { return wst.path }

// ClientCount returns the number of connected clients.
func (wst *WebSocketTransport) ClientCount() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Dropped returns how many messages were discarded because the queue was full.
func (wst *WebSocketTransport) Dropped() uint64 { return wst.dropped.Load() }

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	client := &wsClient{id: uuid.New(), conn: conn}
	wst.clientsMu.Lock()
	wst.clients[client.id] = client
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("WebSocketTransport: Client %s connected from %s, total: %d", client.id, r.RemoteAddr, total)

	// Clients never send anything meaningful, reading only detects the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.drop(client)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) drop(client *wsClient) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[client.id]
	delete(wst.clients, client.id)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	if ok {
		client.conn.Close()
		applog.Infof("WebSocketTransport: Client %s disconnected, total: %d", client.id, total)
	}
}

// handleBroadcasts sends messages to all connected clients
func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.wg.Done()
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			clients := make([]*wsClient, 0, len(wst.clients))
			for _, c := range wst.clients {
				clients = append(clients, c)
			}
			wst.clientsMu.Unlock()

			for _, client := range clients {
				client.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.conn.WriteJSON(data); err != nil {
					applog.Warnf("WebSocketTransport: Error sending to client %s: %v", client.id, err)
					wst.drop(client)
				}
			}
		}
	}
}

// Send queues data for broadcast. A full queue drops the message.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return ErrClosed
	default:
	}

	select {
	case wst.broadcast <- data:
	default:
		wst.dropped.Add(1)
	}
	return nil
}

// Close shuts down the WebSocket server and disconnects every client.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		applog.Infof("WebSocketTransport: Closing server")
		close(wst.done)
		wst.wg.Wait()

		if wst.server != nil {
			err = wst.server.Close()
		}

		wst.clientsMu.Lock()
		for id, client := range wst.clients {
			client.conn.Close()
			delete(wst.clients, id)
		}
		wst.clientsMu.Unlock()
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
