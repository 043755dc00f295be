package provider

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/DeBrosOfficial/caseledger/pkg/logging"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

//go:embed bridge.html
var bridgePage []byte

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The page is served by this same listener.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://"+r.Host
	},
}

// bridgeMessage is the frame exchanged with the relay page. Requests carry
// ID and Method; responses ID with Result or Error; events Event and Data.
type bridgeMessage struct {
	ID     string            `json:"id,omitempty"`
	Method string            `json:"method,omitempty"`
	Params []json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage   `json:"result,omitempty"`
	Error  *RPCError         `json:"error,omitempty"`
	Event  string            `json:"event,omitempty"`
	Data   json.RawMessage   `json:"data,omitempty"`
}

// BridgeOptions configures a BridgeProvider.
type BridgeOptions struct {
	// ListenAddr is the local address of the relay page, e.g. 127.0.0.1:0.
	ListenAddr  string
	OpenBrowser bool
}

// BridgeProvider relays requests to a browser wallet. It serves a page on a
// local listener; the page connects back over a websocket, executes each
// request against window.ethereum and forwards the wallet's events.
// Requests block until a page is connected or ctx ends.
type BridgeProvider struct {
	emitter

	logger   *logging.ColoredLogger
	server   *http.Server
	listener net.Listener

	mu      sync.Mutex
	conn    *websocket.Conn
	ready   chan struct{}
	pending map[string]chan bridgeMessage
	closed  bool

	writeMu sync.Mutex
}

// NewBridgeProvider starts the relay server and, when asked to, opens the
// relay page in the default browser.
func NewBridgeProvider(opts BridgeOptions, logger *logging.ColoredLogger) (*BridgeProvider, error) {
	addr := opts.ListenAddr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	b := &BridgeProvider{
		logger:   logging.OrNop(logger),
		listener: listener,
		ready:    make(chan struct{}),
		pending:  make(map[string]chan bridgeMessage),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", b.handlePage)
	mux.HandleFunc("/ws", b.handleWS)
	mux.HandleFunc("/health", b.handleHealth)
	b.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := b.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			b.logger.ComponentError(logging.ComponentWallet, "bridge server stopped", zap.Error(err))
		}
	}()

	b.logger.ComponentInfo(logging.ComponentWallet, "wallet bridge listening", zap.String("url", b.URL()))
	if opts.OpenBrowser {
		if err := openBrowser(b.URL()); err != nil {
			b.logger.ComponentWarn(logging.ComponentWallet, "failed to open browser, open the bridge URL manually",
				zap.String("url", b.URL()), zap.Error(err))
		}
	}
	return b, nil
}

// URL returns the address of the relay page.
func (b *BridgeProvider) URL() string {
	return "http://" + b.listener.Addr().String() + "/"
}

// Connected reports whether a relay page is attached.
func (b *BridgeProvider) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// RequestAccounts implements Provider.
func (b *BridgeProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	raw, err := b.Request(ctx, MethodRequestAccounts)
	if err != nil {
		return nil, err
	}
	return ParseAccounts(raw)
}

// Request implements Provider.
func (b *BridgeProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	encoded, err := encodeParams(params)
	if err != nil {
		return nil, err
	}
	conn, err := b.waitConn(ctx)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	reply := make(chan bridgeMessage, 1)
	b.mu.Lock()
	b.pending[id] = reply
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	if err := b.write(conn, bridgeMessage{ID: id, Method: method, Params: encoded}); err != nil {
		return nil, NewRPCError(CodeDisconnected, "wallet bridge write failed: "+err.Error())
	}

	select {
	case msg := <-reply:
		if msg.Error != nil {
			return nil, msg.Error
		}
		if len(msg.Result) == 0 {
			return json.RawMessage("null"), nil
		}
		return msg.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the relay server and fails pending requests.
func (b *BridgeProvider) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	conn := b.conn
	b.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.server.Shutdown(ctx)
}

func (b *BridgeProvider) waitConn(ctx context.Context) (*websocket.Conn, error) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, NewRPCError(CodeDisconnected, "wallet bridge closed")
		}
		if b.conn != nil {
			conn := b.conn
			b.mu.Unlock()
			return conn, nil
		}
		ready := b.ready
		b.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (b *BridgeProvider) write(conn *websocket.Conn, msg bridgeMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (b *BridgeProvider) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(bridgePage)
}

func (b *BridgeProvider) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"connected": b.Connected(),
	})
}

func (b *BridgeProvider) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.ComponentWarn(logging.ComponentWallet, "bridge upgrade failed", zap.Error(err))
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		conn.Close()
		return
	}
	prev := b.conn
	b.conn = conn
	var orphaned map[string]chan bridgeMessage
	if prev == nil {
		// ready is replaced only in detach, so it is still open here.
		close(b.ready)
	} else {
		// Requests already written to the old page will never be answered.
		orphaned = b.pending
		b.pending = make(map[string]chan bridgeMessage)
	}
	b.mu.Unlock()
	if prev != nil {
		prev.Close()
		failPending(orphaned, "wallet page replaced")
		b.logger.ComponentInfo(logging.ComponentWallet, "wallet page replaced by a newer one")
	}
	b.logger.ComponentInfo(logging.ComponentWallet, "wallet page connected", zap.String("remote", r.RemoteAddr))

	b.readLoop(conn)
}

func (b *BridgeProvider) readLoop(conn *websocket.Conn) {
	defer b.detach(conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg bridgeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			b.logger.ComponentWarn(logging.ComponentWallet, "malformed bridge frame", zap.Error(err))
			continue
		}
		if msg.Event != "" {
			b.emit(msg.Event, msg.Data)
			continue
		}
		b.mu.Lock()
		reply, ok := b.pending[msg.ID]
		b.mu.Unlock()
		if ok {
			reply <- msg
		}
	}
}

// detach forgets conn and fails the requests that were waiting on it.
func (b *BridgeProvider) detach(conn *websocket.Conn) {
	conn.Close()

	b.mu.Lock()
	if b.conn != conn {
		b.mu.Unlock()
		return
	}
	b.conn = nil
	b.ready = make(chan struct{})
	waiting := b.pending
	b.pending = make(map[string]chan bridgeMessage)
	b.mu.Unlock()

	failPending(waiting, "wallet page disconnected")
	b.logger.ComponentWarn(logging.ComponentWallet, "wallet page disconnected")
	b.emit(EventDisconnect, NewRPCError(CodeDisconnected, "wallet page disconnected"))
}

func failPending(waiting map[string]chan bridgeMessage, reason string) {
	for _, reply := range waiting {
		select {
		case reply <- bridgeMessage{Error: NewRPCError(CodeDisconnected, reason)}:
		default:
		}
	}
}
