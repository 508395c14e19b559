package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Voice/internal/app/orch"
	"github.com/dkeye/Voice/internal/core"
	"github.com/dkeye/Voice/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second

	DefaultPingPeriod = 54 * time.Second
	DefaultReadLimit  = 32 << 10
)

type SignalWSController struct {
	Orch *orch.Orchestrator

	ReadLimit  int64
	PingPeriod time.Duration

	validate *validator.Validate
}

func NewSignalWSController(o *orch.Orchestrator, readLimit int64, pingPeriod time.Duration) *SignalWSController {
	if readLimit <= 0 {
		readLimit = DefaultReadLimit
	}
	if pingPeriod <= 0 {
		pingPeriod = DefaultPingPeriod
	}
	return &SignalWSController{
		Orch:       o,
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// pongWait is how long the read side waits for any frame before giving up on the peer.
func (ctl *SignalWSController) pongWait() time.Duration {
	return ctl.PingPeriod * 10 / 9
}

// WsSignalConn is the gorilla-backed core.SignalConnection. Writes go through send and are
// flushed by a single writePump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, sendBuffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
}

func (c *WsSignalConn) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client is one authenticated transport as seen by the handlers.
type client struct {
	who  domain.Identity
	tid  domain.TransportID
	conn *WsSignalConn
}

// HandleSignal upgrades the request and binds the transport to who. The caller has already
// resolved the credential.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, who domain.Identity) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	cl := &client{
		who:  who,
		tid:  domain.TransportID(uuid.NewString()),
		conn: newWsSignalConn(ws),
	}
	log.Info().Str("module", "signal").Str("user", string(who.ID)).Str("tid", string(cl.tid)).Msg("new WS connection")

	ctl.Orch.OnConnect(ctx, cl.who, cl.tid, cl.conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, cl)
	go ctl.readPump(ctx, cancel, cl)
}
