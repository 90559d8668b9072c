package http

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/richgram/richgram-server/internal/auth"
	"github.com/richgram/richgram-server/internal/core"
	"github.com/richgram/richgram-server/internal/proto"
	"github.com/richgram/richgram-server/internal/utils"
)

const (
	wsWriteTimeout = 10 * time.Second

	// wsSendRateLimit caps chat messages per session per minute.
	wsSendRateLimit = 120
)

// WSHandler upgrades chat connections and bridges them to the hub.
type WSHandler struct {
	hub  *core.Hub
	auth *auth.Service
	log  *zerolog.Logger
}

// NewWSHandler creates a new websocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:  hub,
		auth: authService,
		log:  logger,
	}
}

// Handle serves one websocket session.
// GET /ws
func (h *WSHandler) Handle(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket accept failed")
		return
	}

	client := core.NewClient(utils.NewID())
	sess := &wsSession{
		conn:    conn,
		client:  client,
		auth:    h.auth,
		log:     h.log,
		errs:    make(chan *proto.Outbound, 8),
		limiter: newRateLimiter(wsSendRateLimit),
	}

	h.log.Debug().Str("client_id", client.ID).Msg("websocket session opened")
	h.hub.RegisterClient(client)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	go sess.writeLoop(ctx, cancel)
	sess.readLoop(ctx)

	h.hub.UnregisterClient(client)
	close(client.Commands)
	conn.Close(websocket.StatusNormalClosure, "")
	h.log.Debug().Str("client_id", client.ID).Msg("websocket session closed")
}

// wsSession owns one connection. readLoop is the only reader and
// writeLoop the only writer; mapping errors cross from the read side to
// the write side over errs.
type wsSession struct {
	conn    *websocket.Conn
	client  *core.Client
	auth    *auth.Service
	log     *zerolog.Logger
	errs    chan *proto.Outbound
	limiter *rateLimiter
}

func (s *wsSession) readLoop(ctx context.Context) {
	for {
		var in proto.Inbound
		if err := wsjson.Read(ctx, s.conn, &in); err != nil {
			if !isExpectedClose(err) {
				s.log.Debug().Err(err).Str("client_id", s.client.ID).Msg("websocket read failed")
			}
			return
		}

		if in.Type == proto.InboundTypeSend && !s.limiter.allow() {
			s.pushError(&proto.Error{Code: core.ErrCodeForbidden, Msg: "message rate limit exceeded"})
			continue
		}

		cmd, perr := commandFromInbound(s.auth, &in)
		if perr != nil {
			s.pushError(perr)
			continue
		}

		select {
		case s.client.Commands <- cmd:
		case <-ctx.Done():
			return
		}
	}
}

// writeLoop drains hub events and transport errors until the events
// channel closes (unregister) or the connection dies.
func (s *wsSession) writeLoop(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	for {
		select {
		case ev, ok := <-s.client.Events:
			if !ok {
				return
			}
			if !s.write(ctx, outboundFromEvent(ev)) {
				return
			}
		case out := <-s.errs:
			if !s.write(ctx, out) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *wsSession) write(ctx context.Context, out *proto.Outbound) bool {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, s.conn, out); err != nil {
		if !isExpectedClose(err) {
			s.log.Debug().Err(err).Str("client_id", s.client.ID).Msg("websocket write failed")
		}
		return false
	}
	return true
}

func (s *wsSession) pushError(perr *proto.Error) {
	out := &proto.Outbound{Type: proto.OutboundTypeError, Error: perr}
	select {
	case s.errs <- out:
	default:
	}
}

func isExpectedClose(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
