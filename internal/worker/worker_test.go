package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"cashledger/internal/infra"
	"cashledger/internal/model"
	"cashledger/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryBackoff(t *testing.T) {
	assert.Equal(t, 30*time.Second, retryBackoff(0))
	assert.Equal(t, 30*time.Second, retryBackoff(1))
	assert.Equal(t, time.Minute, retryBackoff(2))
	assert.Equal(t, 4*time.Minute, retryBackoff(4))
	assert.Equal(t, 30*time.Minute, retryBackoff(10))
}

func sampleClosing() model.CashClosing {
	return model.CashClosing{
		ID:           "2024-03-15_reg-1",
		TenantID:     "t1",
		RegisterID:   "reg-1",
		BusinessDay:  "2024-03-15",
		Date:         time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC),
		ClosedBy:     "Ana",
		TotalSales:   decimal.NewFromInt(300),
		AmountCash:   decimal.NewFromInt(300),
		CashExpected: decimal.NewFromInt(500),
		CashReal:     decimal.NewFromInt(480),
		Difference:   decimal.NewFromInt(-20),
		Status:       model.ClosingStatusClosed,
	}
}

func payload(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestClosingReportWorker_StoresAndQueuesMail(t *testing.T) {
	dir := t.TempDir()
	store, err := infra.NewLocalReportStore(dir)
	require.NoError(t, err)
	mail := &recordingMail{}
	w := NewClosingReportWorker(ClosingReportConfig{
		Closings:  &stubClosings{closings: []model.CashClosing{sampleClosing()}},
		Registers: stubRegisters{reg: &model.Register{ID: "reg-1", TenantID: "t1", Name: "Front desk", TimeZone: "UTC"}},
		Movements: stubMovements{movs: []model.CashMovement{{ID: uuid.New(), Type: model.MovementExpense, Amount: decimal.NewFromInt(12), Date: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)}}},
		Store:     store,
		CB:        infra.NewCircuitBreaker(infra.DefaultCBConfig("report-store")),
		Mail:      mail,
		Recipient: []string{"owner@example.com"},
		Location:  time.UTC,
	})

	err = w.Process(context.Background(), payload(t, ClosingReportPayload{TenantID: "t1", ClosingID: "2024-03-15_reg-1"}))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "closing_2024-03-15_reg-1.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(data[:5]))

	require.Len(t, mail.jobs, 1)
	assert.Equal(t, []string{"owner@example.com"}, mail.jobs[0].To)
	assert.Equal(t, "closing_2024-03-15_reg-1.pdf", mail.jobs[0].ReportName)
	assert.Contains(t, mail.jobs[0].Body, "Difference: -20.00 (short)")
}

func TestClosingReportWorker_UnknownClosingIsPermanent(t *testing.T) {
	store, err := infra.NewLocalReportStore(t.TempDir())
	require.NoError(t, err)
	w := NewClosingReportWorker(ClosingReportConfig{
		Closings:  &stubClosings{},
		Registers: stubRegisters{},
		Movements: stubMovements{},
		Store:     store,
		CB:        infra.NewCircuitBreaker(infra.DefaultCBConfig("report-store")),
	})
	err = w.Process(context.Background(), payload(t, ClosingReportPayload{TenantID: "t1", ClosingID: "nope"}))
	assert.ErrorIs(t, err, ErrPermanent)

	err = w.Process(context.Background(), json.RawMessage(`{not json`))
	assert.ErrorIs(t, err, ErrPermanent)
}

func TestEmailWorker_AttachesStoredReport(t *testing.T) {
	store, err := infra.NewLocalReportStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "closing_x.pdf", []byte("%PDF-1.3"))
	require.NoError(t, err)

	mailer := &fakeMailer{configured: true}
	w := NewEmailWorker(mailer, store, infra.NewCircuitBreaker(infra.DefaultCBConfig("smtp")))
	err = w.Process(context.Background(), payload(t, EmailJobPayload{To: []string{"a@b.c"}, Subject: "s", Body: "b", ReportName: "closing_x.pdf"}))
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "application/pdf", mailer.sent[0].ContentType)
	assert.Equal(t, []byte("%PDF-1.3"), mailer.sent[0].Data)
}

func TestEmailWorker_FailureIsRetryable(t *testing.T) {
	store, err := infra.NewLocalReportStore(t.TempDir())
	require.NoError(t, err)
	mailer := &fakeMailer{configured: true, err: errors.New("421 try later")}
	w := NewEmailWorker(mailer, store, infra.NewCircuitBreaker(infra.DefaultCBConfig("smtp")))

	err = w.Process(context.Background(), payload(t, EmailJobPayload{To: []string{"a@b.c"}, Subject: "s"}))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPermanent))
}

func TestEmailWorker_SkipsWhenUnconfigured(t *testing.T) {
	w := NewEmailWorker(&fakeMailer{}, nil, infra.NewCircuitBreaker(infra.DefaultCBConfig("smtp")))
	assert.NoError(t, w.Process(context.Background(), payload(t, EmailJobPayload{To: []string{"a@b.c"}})))
}

func TestRepairLocks_UsesRegisterDayWindow(t *testing.T) {
	c := sampleClosing()
	closings := &stubClosings{closings: []model.CashClosing{c}}
	lima, err := time.LoadLocation("America/Lima")
	require.NoError(t, err)
	contexts := service.NewContextFactory(stubRegisters{reg: &model.Register{ID: "reg-1", TenantID: "t1", TimeZone: "America/Lima"}}, time.UTC, nil)

	n := repairLocks(context.Background(), LockRepairConfig{Closings: closings, Contexts: contexts}, time.Now())
	assert.Equal(t, int64(2), n)
	require.Len(t, closings.locked, 1)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, lima), closings.locked[0].From)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, lima), closings.locked[0].To)
}

type countingSweeper struct{ calls int32 }

func (s *countingSweeper) PendingDays(context.Context, service.RegisterContext) ([]time.Time, error) {
	return nil, nil
}

func (s *countingSweeper) Sweep(context.Context, service.RegisterContext, string) (int, error) {
	atomic.AddInt32(&s.calls, 1)
	return 1, nil
}

func TestSweepScheduler_DeduplicatesPendingSweeps(t *testing.T) {
	sw := &countingSweeper{}
	s := NewSweepScheduler(context.Background(), sw, 20*time.Millisecond)
	rc := service.RegisterContext{TenantID: "t1", RegisterID: "reg-1"}

	assert.True(t, s.Schedule(rc, "Ana"))
	assert.False(t, s.Schedule(rc, "Ana"))
	assert.True(t, s.Schedule(service.RegisterContext{TenantID: "t1", RegisterID: "reg-2"}, "Bob"))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&sw.calls) == 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	assert.True(t, s.Schedule(rc, "Ana"), "a finished sweep can be scheduled again")
	s.Stop()
}

func TestSweepScheduler_StopDropsPending(t *testing.T) {
	sw := &countingSweeper{}
	s := NewSweepScheduler(context.Background(), sw, time.Hour)
	s.Schedule(service.RegisterContext{TenantID: "t1", RegisterID: "reg-1"}, "Ana")
	s.Stop()
	assert.Equal(t, int32(0), atomic.LoadInt32(&sw.calls))
}
