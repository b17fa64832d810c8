package signal

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/roomrelay/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// writePump owns all writes to the socket. It exits when the send channel is
// closed or ctx is done, and closes the connection either way so readPump
// unblocks.
func (ctl *SignalWSController) writePump(ctx context.Context, id core.ConnectionID, c *WsSignalConn) {
	ping := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ping.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(id)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("writePump write error")
				return
			}
		case <-ping.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("writePump ping error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(id core.ConnectionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump closing")
		ctl.Orch.Disconnect(id)
		ctl.limiter.Forget(id)
		c.Close()
	}()

	if ctl.opts.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.opts.ReadLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			logReadError(id, err)
			return
		}
		ctl.handleSignal(id, data)
	}
}

// limited lists events subject to the per-connection chat limit. game-data
// is high frequency by nature and is not limited.
var limited = map[core.EventName]bool{
	core.EventJoinRoom:    true,
	core.EventSendMessage: true,
	core.EventTyping:      true,
	core.EventStopTyping:  true,
}

func (ctl *SignalWSController) handleSignal(id core.ConnectionID, data []byte) {
	env, err := core.DecodeEnvelope(data)
	if err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("bad json")
		return
	}
	if limited[env.Event] && !ctl.limiter.Allow(id) {
		log.Warn().Str("module", "signal").Str("conn", string(id)).Str("event", string(env.Event)).Msg("rate limited")
		return
	}
	ctl.Orch.HandleEvent(id, env)
}

func logReadError(id core.ConnectionID, err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Warn().Str("module", "signal").Str("conn", string(id)).Msg("message exceeded read limit")
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		log.Debug().Str("module", "signal").Str("conn", string(id)).Msg("client closed")
	default:
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("readPump read error")
	}
}
