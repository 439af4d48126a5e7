package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ht-server/common"
	"ht-server/common/helper"
	"ht-server/common/logger"
	"ht-server/internal/ledger"
	"ht-server/internal/metrics"
	"ht-server/internal/service"
	"ht-server/internal/session"
)

// 上行事件
const EventBet = "bt"

// UserFetcher 握手时校验 token 并获取用户信息
type UserFetcher interface {
	FetchUser(ctx context.Context, token, gameID string) (*ledger.UserDetail, error)
}

// Handler /socket 连接入口：握手 -> 写会话 -> 下发 info -> 事件路由；断开时清理会话
type Handler struct {
	svc      *service.BetService
	users    UserFetcher
	upgrader websocket.Upgrader
	// BetQueue 单连接待处理下注数量上限
	BetQueue int
}

func NewHandler(svc *service.BetService, users UserFetcher) *Handler {
	return &Handler{
		svc:   svc,
		users: users,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		BetQueue: 8,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := strings.TrimSpace(q.Get("token"))
	gameID := strings.TrimSpace(q.Get("game_id"))
	if token == "" || gameID == "" {
		logger.Info("ws handshake missing parameters", zap.Bool("has_token", token != ""), zap.String("game_id", gameID))
		http.Error(w, "missing token or game_id", http.StatusBadRequest)
		return
	}

	c, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	user, err := h.users.FetchUser(c, token, gameID)
	cancel()
	if err != nil {
		logger.Warn("ws handshake invalid user", zap.String("game_id", gameID), zap.Error(err))
		http.Error(w, "invalid user", http.StatusUnauthorized)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已写回错误响应
		logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	conn := newConn(uuid.NewString(), wsConn)
	ctx := logger.WithTraceID(context.Background(), conn.ID())
	rec := &session.Record{
		UserID:     user.UserID,
		OperatorID: user.OperatorID,
		Token:      token,
		GameID:     gameID,
		Balance:    user.Balance,
	}
	if err := h.svc.StartSession(ctx, conn.ID(), rec); err != nil {
		logger.ErrorCtx(ctx, "ws store session failed", zap.String("user_id", rec.UserID), zap.Error(err))
		_ = wsConn.Close()
		return
	}

	metrics.WSConnected()
	logger.InfoCtx(ctx, "ws connected", zap.String("user_id", rec.UserID), zap.String("operator_id", rec.OperatorID))

	go conn.writePump()
	conn.Emit(service.EventInfo, service.NewInfo(rec))
	h.serve(ctx, conn, helper.GetUserIP(r))
}

// serve 读循环；下注交给单个 worker 顺序处理，读循环不被结算阻塞
func (h *Handler) serve(ctx context.Context, conn *Conn, clientIP string) {
	bets := make(chan service.WagerRequest, h.BetQueue)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		for req := range bets {
			if conn.isClosed() {
				continue
			}
			h.svc.Settle(ctx, conn.ID(), req, clientIP, conn)
		}
	}()

	defer func() {
		conn.Close()
		close(bets)
		if err := h.svc.EndSession(ctx, conn.ID()); err != nil {
			logger.WarnCtx(ctx, "ws delete session failed", zap.Error(err))
		}
		<-workerDone
		metrics.WSDisconnected()
		logger.InfoCtx(ctx, "ws disconnected")
	}()

	ws := conn.ws
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WarnCtx(ctx, "ws connection error", zap.Error(err))
			}
			return
		}
		h.route(ctx, conn, msg, bets)
	}
}

func (h *Handler) route(ctx context.Context, conn *Conn, msg []byte, bets chan<- service.WagerRequest) {
	var f Frame
	if err := common.JsonUnmarshal(msg, &f); err != nil {
		logger.DebugCtx(ctx, "ws bad frame", zap.Error(err))
		return
	}
	switch f.Event {
	case EventBet:
		var req service.WagerRequest
		if len(f.Data) > 0 {
			if err := common.JsonUnmarshal(f.Data, &req); err != nil {
				// 无法解析的 data 按空下注交给结算，先校验会话再报金额错误
				logger.DebugCtx(ctx, "ws bad bet data", zap.Error(err))
				req = service.WagerRequest{}
			}
		}
		select {
		case bets <- req:
		default:
			logger.WarnCtx(ctx, "ws bet queue full, bet dropped")
			conn.Emit(service.EventBetError, service.ErrorPayload{Message: service.MsgBetQueueFull})
		}
	default:
		logger.DebugCtx(ctx, "ws unknown event", zap.String("event", f.Event))
	}
}
