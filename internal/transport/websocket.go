// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Payload encodings for WebSocket messages.
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

const (
	broadcastQueue = 256
	writeWait      = time.Second
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport: closed")

// WebSocketTransport implements the Transport interface for WebSocket
// connections. Frames are broadcast to every connected client as JSON text
// messages or msgpack binary messages.
type WebSocketTransport struct {
	addr     string
	path     string
	encoding string

	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	server *http.Server
}

// NewWebSocketTransport creates a transport serving path on addr. The
// broadcast loop starts immediately; call Start to listen on addr, or mount
// Handler on an existing server.
func NewWebSocketTransport(addr, path, encoding string) (*WebSocketTransport, error) {
	switch encoding {
	case EncodingJSON, EncodingMsgpack:
	case "":
		encoding = EncodingJSON
	default:
		return nil, fmt.Errorf("unknown websocket encoding '%s'", encoding)
	}
	if path == "" {
		path = "/ws"
	}

	wst := &WebSocketTransport{
		addr:     addr,
		path:     path,
		encoding: encoding,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, broadcastQueue),
		done:      make(chan struct{}),
	}

	wst.wg.Add(1)
	go wst.handleBroadcasts()
	return wst, nil
}

// Handler returns the HTTP handler that upgrades requests on the configured path.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(wst.path, wst.handleWebSocket)
	return mux
}

// Start listens on the configured address and serves in the background.
// Listen errors are returned synchronously.
func (wst *WebSocketTransport) Start() error {
	ln, err := net.Listen("tcp", wst.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on '%s': %w", wst.addr, err)
	}

	wst.server = &http.Server{
		Handler:           wst.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("websocket server on ws://%s%s (%s)", ln.Addr(), wst.path, wst.encoding)
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("websocket server error: %v", err)
		}
	}()
	return nil
}

// ClientCount returns the number of connected clients.
func (wst *WebSocketTransport) ClientCount() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("websocket upgrade error: %v", err)
		return
	}

	select {
	case <-wst.done:
		conn.Close()
		return
	default:
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	logger.Infof("client %s connected, total: %d", conn.RemoteAddr(), total)

	// Clients only listen; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.drop(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	conn.Close()
	if ok {
		logger.Infof("client %s disconnected, total: %d", conn.RemoteAddr(), total)
	}
}

func (wst *WebSocketTransport) encode(data any) (int, []byte, error) {
	if wst.encoding == EncodingMsgpack {
		b, err := msgpack.Marshal(data)
		return websocket.BinaryMessage, b, err
	}
	return websocket.TextMessage, nil, nil
}

// handleBroadcasts sends queued messages to all connected clients.
func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.wg.Done()
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			msgType, payload, err := wst.encode(data)
			if err != nil {
				logger.Errorf("failed to encode %T: %v", data, err)
				continue
			}

			wst.clientsMu.Lock()
			for client := range wst.clients {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if msgType == websocket.TextMessage {
					err = client.WriteJSON(data)
				} else {
					err = client.WriteMessage(msgType, payload)
				}
				if err != nil {
					logger.Warnf("error sending to client %s: %v", client.RemoteAddr(), err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		}
	}
}

// Send queues data for broadcast. Frames are dropped when the queue is full.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return ErrClosed
	default:
	}

	select {
	case wst.broadcast <- data:
	default:
		logger.Debugf("broadcast queue full, dropping %T", data)
	}
	return nil
}

// Close disconnects all clients and shuts down the server. It is safe to call
// more than once.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		logger.Infof("closing websocket transport")
		close(wst.done)
		wst.wg.Wait()

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()

		if wst.server != nil {
			err = wst.server.Close()
		}
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
