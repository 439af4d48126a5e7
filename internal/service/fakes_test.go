package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ht-server/internal/ledger"
	"ht-server/internal/model"
	"ht-server/internal/session"
)

type memStore struct {
	mu   sync.Mutex
	recs map[string]*session.Record
	ttls map[string]time.Duration
}

func newMemStore() *memStore {
	return &memStore{recs: map[string]*session.Record{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Get(_ context.Context, connID string) (*session.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[connID]
	if !ok {
		return nil, session.ErrNotFound
	}
	return r.Clone(), nil
}

func (m *memStore) Set(_ context.Context, connID string, rec *session.Record, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[connID] = rec.Clone()
	m.ttls[connID] = ttl
	return nil
}

func (m *memStore) Delete(_ context.Context, connID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, connID)
	return nil
}

func (m *memStore) balance(connID string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recs[connID].Balance
}

func (m *memStore) has(connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.recs[connID]
	return ok
}

type ledgerCall struct {
	kind    ledger.Kind
	payload ledger.Payload
	cred    ledger.Credentials
}

type fakeLedger struct {
	mu        sync.Mutex
	calls     []ledgerCall
	debit     ledger.Result
	debitErr  error
	credit    ledger.Result
	creditErr error
	// onDebit 在 DEBIT 返回前调用（阻塞、计数或 panic）
	onDebit func(p ledger.Payload)
}

func okLedger() *fakeLedger {
	return &fakeLedger{
		debit:  ledger.Result{Status: true, TxnID: "tx-debit"},
		credit: ledger.Result{Status: true, TxnID: "tx-credit"},
	}
}

func (f *fakeLedger) Operate(_ context.Context, kind ledger.Kind, p ledger.Payload, cred ledger.Credentials) (ledger.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, ledgerCall{kind: kind, payload: p, cred: cred})
	hook := f.onDebit
	f.mu.Unlock()

	if kind == ledger.KindDebit {
		if hook != nil {
			hook(p)
		}
		return f.debit, f.debitErr
	}
	return f.credit, f.creditErr
}

func (f *fakeLedger) snapshot() []ledgerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ledgerCall(nil), f.calls...)
}

type emitted struct {
	event   string
	payload interface{}
	delay   time.Duration
}

type fakeEmitter struct {
	mu      sync.Mutex
	now     []emitted
	delayed []emitted
}

func (e *fakeEmitter) Emit(event string, payload interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = append(e.now, emitted{event: event, payload: payload})
}

func (e *fakeEmitter) EmitAfter(delay time.Duration, event string, payload interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delayed = append(e.delayed, emitted{event: event, payload: payload, delay: delay})
}

func (e *fakeEmitter) events() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.now))
	for _, m := range e.now {
		out = append(out, m.event)
	}
	return out
}

type fakeRecorder struct {
	mu   sync.Mutex
	recs []*model.Settlement
}

func (r *fakeRecorder) Insert(_ context.Context, s *model.Settlement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, s)
}

func (r *fakeRecorder) all() []*model.Settlement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.Settlement(nil), r.recs...)
}

type seqSource struct {
	mu   sync.Mutex
	vals []int
}

func (s *seqSource) Intn(int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.vals) == 0 {
		return 1
	}
	v := s.vals[0]
	s.vals = s.vals[1:]
	return v
}

var errBoom = errors.New("boom")
