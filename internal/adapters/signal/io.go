package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

func (ctl *WSController) writePump(ctx context.Context, c *wsConn) {
	ping := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump funnels every exit, error or ctx cancel, through Disconnect so
// membership and identity are always released exactly once.
func (ctl *WSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.limiter.Forget(sid)
		ctl.Coord.Disconnect(sid)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.dispatch(sid, c, data)
		}
	}
}

// dispatch decodes the envelope and routes by event name. The event set
// is closed; an unknown type is logged and dropped, never fatal.
func (ctl *WSController) dispatch(sid core.SessionID, c *wsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "join-app":
		ctl.handleJoinApp(sid, data)
	case "create-room":
		ctl.handleCreateRoom(sid, data)
	case "join-room":
		ctl.handleJoinRoom(sid, data)
	case "leave-room":
		ctl.Coord.LeaveRoom(sid)
	case "send-message":
		ctl.handleSendMessage(sid, c, data)
	case "offer", "answer", "ice-candidate", "video-offer", "video-answer":
		ctl.handleSignal(sid, env.Type, data)
	case "video-toggle":
		ctl.handleVideoToggle(sid, data)
	case "user-muted":
		ctl.handleUserMuted(sid, data)
	case "ping":
		ctl.sendJSON(c, map[string]string{"type": "pong"})
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event")
	}
}

func (ctl *WSController) handleJoinApp(sid core.SessionID, data []byte) {
	var p struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join-app payload")
		return
	}
	ctl.Coord.JoinApp(sid, p.Username)
}

func (ctl *WSController) handleCreateRoom(sid core.SessionID, data []byte) {
	var p struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad create-room payload")
		return
	}
	ctl.Coord.CreateRoom(sid, p.Name)
}

func (ctl *WSController) handleJoinRoom(sid core.SessionID, data []byte) {
	var p struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join-room payload")
		return
	}
	ctl.Coord.JoinRoom(sid, domain.RoomID(p.RoomID))
}

func (ctl *WSController) handleSendMessage(sid core.SessionID, c *wsConn, data []byte) {
	var p struct {
		Text   string `json:"text"`
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad send-message payload")
		return
	}
	if !ctl.limiter.Allow(sid) {
		ctl.sendJSON(c, map[string]string{"type": "error", "error": "rate_limited"})
		return
	}
	ctl.Coord.SendMessage(sid, domain.RoomID(p.RoomID), p.Text)
}

// handleSignal pulls out the target and hands the raw payload through
// untouched. The payload key mirrors the kind: offer, answer, candidate.
func (ctl *WSController) handleSignal(sid core.SessionID, kind string, data []byte) {
	var p struct {
		Target    string          `json:"target"`
		Offer     json.RawMessage `json:"offer"`
		Answer    json.RawMessage `json:"answer"`
		Candidate json.RawMessage `json:"candidate"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("kind", kind).Msg("bad signal payload")
		return
	}
	payload := p.Offer
	switch kind {
	case "answer", "video-answer":
		payload = p.Answer
	case "ice-candidate":
		payload = p.Candidate
	}
	ctl.Coord.Signal(sid, kind, payload, core.SessionID(p.Target))
}

func (ctl *WSController) handleVideoToggle(sid core.SessionID, data []byte) {
	var p struct {
		HasVideo bool `json:"hasVideo"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad video-toggle payload")
		return
	}
	ctl.Coord.SetVideo(sid, p.HasVideo)
}

func (ctl *WSController) handleUserMuted(sid core.SessionID, data []byte) {
	var p struct {
		IsMuted bool `json:"isMuted"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad user-muted payload")
		return
	}
	ctl.Coord.SetMuted(sid, p.IsMuted)
}

func (ctl *WSController) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
