package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Voice/internal/app"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, cl *client) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("tid", string(cl.tid)).Msg("writePump ctx done")
			return
		case data, ok := <-cl.conn.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("tid", string(cl.tid)).Msg("writePump channel closed")
				_ = cl.conn.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
				return
			}
			if err := cl.conn.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := cl.conn.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := cl.conn.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("tid", string(cl.tid)).Msg("writePump ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, cl *client) {
	defer func() {
		log.Info().Str("module", "signal").Str("user", string(cl.who.ID)).Str("tid", string(cl.tid)).Msg("readPump closing")
		cl.conn.Close()
		ctl.Orch.OnDisconnect(cl.who, cl.tid)
		cancel()
	}()

	ws := cl.conn.conn
	ws.SetReadLimit(ctl.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	ws.SetPongHandler(func(string) error {
		ctl.Orch.Ping(cl.who.ID)
		return ws.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("tid", string(cl.tid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "signal").Str("tid", string(cl.tid)).Msg("readPump read error")
				}
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(ctl.pongWait()))
			ctl.handleSignal(ctx, cl, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, cl *client, data []byte) {
	msg, err := ctl.decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("tid", string(cl.tid)).Msg("bad inbound message")
		ctl.sendError(cl, app.EvError, err)
		return
	}

	switch m := msg.(type) {
	case requestCallMsg:
		ctl.handleRequestCall(ctx, cl, m)
	case respondMsg:
		ctl.handleRespond(ctx, cl, m)
	case endCallMsg:
		ctl.handleEndCall(ctx, cl, m)
	case joinRoomMsg:
		ctl.handleJoin(cl, m)
	case leaveRoomMsg:
		ctl.handleLeave(cl, m)
	case signalMsg:
		ctl.handleRelay(cl, m)
	case pingMsg:
		ctl.handlePing(cl, m)
	case whoamiMsg:
		ctl.handleWhoAmI(cl)
	case forceCleanupMsg:
		ctl.handleForceCleanup(ctx, cl, m)
	}
}

func (ctl *SignalWSController) sendJSON(cl *client, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := cl.conn.TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("tid", string(cl.tid)).Msg("sendJSON dropped")
	}
}

func (ctl *SignalWSController) sendError(cl *client, kind string, err error) {
	ctl.sendJSON(cl, app.NewErrorEvent(kind, err))
}
