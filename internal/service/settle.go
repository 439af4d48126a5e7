package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ht-server/common/constant"
	"ht-server/common/helper"
	"ht-server/common/logger"
	"ht-server/internal/ledger"
	"ht-server/internal/metrics"
	"ht-server/internal/model"
	"ht-server/internal/outcome"
	"ht-server/internal/session"
	"ht-server/internal/state"
)

// Ledger 上游资金操作（DEBIT/CREDIT 以 round_id 幂等）
type Ledger interface {
	Operate(ctx context.Context, kind ledger.Kind, p ledger.Payload, cred ledger.Credentials) (ledger.Result, error)
}

// Resolver 开奖
type Resolver interface {
	Resolve(w outcome.Wager, multiplier decimal.Decimal) outcome.Result
}

// Recorder 结算记录落库，调用方不等待结果
type Recorder interface {
	Insert(ctx context.Context, s *model.Settlement)
}

// Deps 结算依赖，全部显式注入
type Deps struct {
	Sessions session.Store
	Ledger   Ledger
	Resolver Resolver
	Recorder Recorder
	// Limits 每次结算读取一次；为 nil 时读取当前配置
	Limits func() Limits
	// NewRoundID 为 nil 时使用 UUIDv7
	NewRoundID func() (string, error)
}

// recordSettlement 测试中替换以检查结果标签
var recordSettlement = metrics.RecordSettlement

// BetService 下注结算编排
type BetService struct {
	deps  Deps
	locks *keyLock
}

func NewBetService(deps Deps) *BetService {
	if deps.Limits == nil {
		deps.Limits = CurrentLimits
	}
	if deps.NewRoundID == nil {
		deps.NewRoundID = newRoundID
	}
	return &BetService{deps: deps, locks: newKeyLock()}
}

func newRoundID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// StartSession 连接握手成功后写入会话
func (s *BetService) StartSession(ctx context.Context, connID string, rec *session.Record) error {
	return s.deps.Sessions.Set(ctx, connID, rec, s.deps.Limits().SessionTTL)
}

// EndSession 连接断开：等待该会话进行中的结算完成后删除会话
func (s *BetService) EndSession(ctx context.Context, connID string) error {
	unlock := s.locks.Lock(connID)
	defer unlock()
	return s.deps.Sessions.Delete(context.WithoutCancel(ctx), connID)
}

// round 单局状态推进
type round struct {
	ctx   context.Context
	state string
}

func (r *round) advance(evt string) {
	next, err := state.NextState(r.state, evt)
	if err != nil {
		logger.ErrorCtx(r.ctx, "round state transition rejected", zap.Error(err))
		return
	}
	r.state = next
}

// Settle 处理一次下注：
// 加载会话 -> 校验 -> 生成局ID -> DEBIT -> 更新余额 -> 开奖 -> (赢)CREDIT -> 结果下发 -> 异步落库
// 任何异常都被捕获记录，不向客户端下发事件，连接保持
func (s *BetService) Settle(ctx context.Context, connID string, req WagerRequest, clientIP string, em Emitter) {
	start := time.Now()
	result := metrics.ResultPanic
	// 连接断开不取消进行中的上游调用
	ctx = logger.WithTraceID(context.WithoutCancel(ctx), connID)

	defer func() {
		if r := recover(); r != nil {
			result = metrics.ResultPanic
			logger.ErrorCtx(ctx, "settle panic recovered",
				zap.String("conn_id", connID), zap.Any("panic", r), zap.Stack("stack"))
		}
		recordSettlement(result, start)
	}()

	unlock := s.locks.Lock(connID)
	defer unlock()

	rd := &round{ctx: ctx, state: state.StateIdle}
	lim := s.deps.Limits()

	// ========== 1. 加载会话 ==========
	player, err := s.deps.Sessions.Get(ctx, connID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			logger.InfoCtx(ctx, "bet rejected", zap.String("conn_id", connID), zap.String("reason", ErrSessionMissing.Error()))
		} else {
			logger.ErrorCtx(ctx, "load session failed", zap.String("conn_id", connID), zap.Error(err))
		}
		rd.advance(state.EvtReject)
		result = metrics.ResultSessionError
		em.Emit(EventBetError, ErrorPayload{Message: MsgInvalidSession})
		return
	}
	rd.advance(state.EvtSessionLoaded)

	// ========== 2. 校验（无副作用） ==========
	wager, berr := ValidateWager(req, player.Balance, lim)
	if berr != nil {
		logger.InfoCtx(ctx, "bet rejected",
			zap.String("user_id", player.UserID), zap.Any("btAmt", req.BetAmount),
			zap.Any("choice", req.Choice), zap.String("reason", berr.Kind.Error()))
		rd.advance(state.EvtReject)
		result = metrics.ResultRejected
		em.Emit(EventBetError, ErrorPayload{Message: berr.Message})
		return
	}

	// ========== 3. 生成局ID ==========
	roundID, err := s.deps.NewRoundID()
	if err != nil {
		logger.ErrorCtx(ctx, "generate round id failed", zap.Error(err))
		result = metrics.ResultInternal
		return
	}
	ctx = logger.WithTraceID(ctx, roundID)
	rd.ctx = ctx

	cred := ledger.Credentials{GameID: player.GameID, OperatorID: player.OperatorID, Token: player.Token}

	// ========== 4. DEBIT ==========
	debit, err := s.deps.Ledger.Operate(ctx, ledger.KindDebit, ledger.Payload{
		RoundID:   roundID,
		BetAmount: wager.Amount,
		GameID:    player.GameID,
		IP:        clientIP,
		UserID:    player.UserID,
	}, cred)
	if err != nil || !debit.Status {
		logger.WarnCtx(ctx, "debit failed",
			zap.String("round_id", roundID), zap.String("user_id", player.UserID),
			zap.String("amount", wager.Amount.String()),
			zap.String("reason", ErrDebitRejected.Error()), zap.Error(err))
		rd.advance(state.EvtDebitFail)
		result = metrics.ResultDebitFailed
		em.Emit(EventBetError, ErrorPayload{Message: MsgDebitCancelled})
		return
	}
	rd.advance(state.EvtDebitOK)

	// ========== 5. 本地扣减余额 ==========
	player = player.Clone()
	player.Balance = player.Balance.Sub(wager.Amount)
	s.saveSession(ctx, connID, player, lim.SessionTTL)
	em.Emit(EventInfo, NewInfo(player))
	logger.InfoCtx(ctx, "bet placed",
		zap.String("round_id", roundID), zap.String("user_id", player.UserID),
		zap.String("amount", wager.Amount.String()), zap.Int("choice", int(wager.Choice)))

	// ========== 6. 开奖 ==========
	out := s.deps.Resolver.Resolve(wager, lim.Multiplier)
	logger.InfoCtx(ctx, "round resolved",
		zap.String("round_id", roundID), zap.String("status", string(out.Status)),
		zap.String("win_amount", out.WinAmount.String()), zap.String("multiplier", out.Multiplier.String()),
		zap.Int("result", out.Random))

	// ========== 7/8. 赢：CREDIT 并延迟下发余额 ==========
	creditStatus := constant.CreditNone
	if out.Status == outcome.StatusWin {
		rd.advance(state.EvtDrawWin)
		result = metrics.ResultWin
		creditStatus = s.credit(ctx, roundID, debit.TxnID, wager, out, player, cred)

		// CREDIT 失败不回滚：结果已承诺给玩家，余额照常增加，等待对账
		player.Balance = player.Balance.Add(out.WinAmount)
		s.saveSession(ctx, connID, player, lim.SessionTTL)
		em.EmitAfter(lim.NotifyDelay, EventInfo, NewInfo(player))
	} else {
		rd.advance(state.EvtDrawLoss)
		result = metrics.ResultLoss
	}

	// ========== 9. 结果下发 ==========
	em.Emit(EventResult, newResult(out))

	// ========== 10. 异步落库 ==========
	s.deps.Recorder.Insert(ctx, &model.Settlement{
		RoundID:      roundID,
		UserID:       player.UserID,
		OperatorID:   player.OperatorID,
		GameID:       player.GameID,
		BetOn:        int(wager.Choice),
		BetAmount:    wager.Amount,
		WinAmount:    out.WinAmount,
		Multiplier:   out.Multiplier,
		Status:       string(out.Status),
		Result:       out.Random,
		DebitTxnID:   debit.TxnID,
		CreditStatus: creditStatus,
		CreatedAt:    time.Now().UnixMilli(),
	})
	rd.advance(state.EvtRecord)
}

func (s *BetService) credit(ctx context.Context, roundID, debitTxnID string, w outcome.Wager, out outcome.Result,
	player *session.Record, cred ledger.Credentials) string {
	res, err := s.deps.Ledger.Operate(ctx, ledger.KindCredit, ledger.Payload{
		RoundID:   roundID,
		TxnID:     debitTxnID,
		BetAmount: w.Amount,
		WinAmount: out.WinAmount,
		GameID:    player.GameID,
		UserID:    player.UserID,
	}, cred)
	if err != nil || !res.Status {
		metrics.IncCreditFailure()
		logger.ErrorCtx(ctx, "credit failed, reconciliation required",
			zap.String("fault", "credit_failure"),
			zap.String("round_id", roundID), zap.String("debit_txn_id", debitTxnID),
			zap.String("user_id", player.UserID), zap.String("operator_id", player.OperatorID),
			zap.String("win_amount", helper.TrimDecimal(out.WinAmount)), zap.Error(err))
		return constant.CreditFailed
	}
	logger.InfoCtx(ctx, "winning credited",
		zap.String("round_id", roundID), zap.String("user_id", player.UserID),
		zap.String("amount", out.WinAmount.String()))
	return constant.CreditDone
}

// saveSession 上游已确认资金变动，本地写失败只记录日志
func (s *BetService) saveSession(ctx context.Context, connID string, rec *session.Record, ttl time.Duration) {
	if err := s.deps.Sessions.Set(ctx, connID, rec, ttl); err != nil {
		logger.ErrorCtx(ctx, "persist session failed",
			zap.String("conn_id", connID), zap.String("user_id", rec.UserID),
			zap.String("balance", rec.Balance.String()), zap.Error(err))
	}
}
