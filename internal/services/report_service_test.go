package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"financify/internal/core"
	"financify/internal/reports"
	sheetsmem "financify/internal/sheets/memory"
	"financify/internal/storage/memory"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*reports.RunResult
	err    error
}

func (f *fakePublisher) PublishReportsCreated(_ context.Context, res *reports.RunResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, res)
	return nil
}

type fakeQueue struct {
	requestedBy int64
	trigger     string
	err         error
}

func (f *fakeQueue) EnqueueReportRun(_ context.Context, requestedBy int64, trigger string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.requestedBy, f.trigger = requestedBy, trigger
	return "req-1", nil
}

func seedStatements(t *testing.T, store *memory.Store) {
	t.Helper()
	svc := NewStatementService(store)
	ctx := context.Background()
	for _, c := range []struct {
		table  string
		userID int64
		date   string
		value  string
	}{
		{core.TableAssets, 1, "2021-01-05", "1000.00"},
		{core.TableAssets, 1, "2021-01-20", "1234.56"},
		{core.TableLiabilities, 2, "2021-02-01", "1205.09"},
	} {
		if _, err := svc.Create(ctx, c.table, c.userID, newStatement(c.date, c.value)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestReportService_Generate(t *testing.T) {
	store := memory.New()
	seedStatements(t, store)
	pub := &fakePublisher{}
	exp := sheetsmem.New()
	svc := NewReportService(reports.NewPipeline(store), store,
		WithEventPublisher(pub), WithExporter(exp))
	ctx := context.Background()

	res, err := svc.Generate(ctx, reports.TriggerAPI)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Reports) != 2 {
		t.Fatalf("created %d reports, want 2", len(res.Reports))
	}
	if len(pub.events) != 1 || pub.events[0].RunID != res.RunID {
		t.Errorf("expected one event for run %s, got %d", res.RunID, len(pub.events))
	}
	if len(exp.Exported()) != 2 {
		t.Errorf("exported %d reports, want 2", len(exp.Exported()))
	}

	again, err := svc.Generate(ctx, reports.TriggerAPI)
	if err != nil {
		t.Fatal(err)
	}
	if !again.NoOp {
		t.Error("second run should be a no-op")
	}
	if len(pub.events) != 1 || exp.Batches() != 1 {
		t.Error("no-op runs must not publish or export")
	}

	mine, err := svc.List(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].Date != "2021-01" {
		t.Errorf("List(1) = %+v", mine)
	}

	if _, err := svc.Get(ctx, 1, mine[0].ID); err != nil {
		t.Errorf("Get own report: %v", err)
	}
	if _, err := svc.Get(ctx, 2, mine[0].ID); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Get(ctx, 1, 999); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReportService_SideEffectFailuresDoNotFailRun(t *testing.T) {
	store := memory.New()
	seedStatements(t, store)
	exp := sheetsmem.New()
	exp.FailWith(errors.New("quota exceeded"))
	svc := NewReportService(reports.NewPipeline(store), store,
		WithEventPublisher(&fakePublisher{err: errors.New("broker down")}),
		WithExporter(exp))

	res, err := svc.Generate(context.Background(), reports.TriggerAPI)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Reports) != 2 {
		t.Errorf("created %d reports, want 2", len(res.Reports))
	}
}

func TestReportService_GenerateError(t *testing.T) {
	store := memory.New()
	seedStatements(t, store)
	store.FailOn("commit", "", errors.New("disk full"))
	svc := NewReportService(reports.NewPipeline(store), store)

	_, err := svc.Generate(context.Background(), reports.TriggerAPI)
	var se *core.StoreError
	if !errors.As(err, &se) {
		t.Fatalf("expected StoreError, got %v", err)
	}
}

type blockingRunner struct {
	calls   atomic.Int32
	release chan struct{}
	started chan struct{}
}

func (b *blockingRunner) Run(context.Context) (*reports.RunResult, error) {
	if b.calls.Add(1) == 1 {
		close(b.started)
	}
	<-b.release
	return &reports.RunResult{RunID: "shared", NoOp: true}, nil
}

func TestReportService_ConcurrentGenerateSharesRun(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{}), started: make(chan struct{})}
	svc := NewReportService(runner, memory.New())

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*reports.RunResult, callers)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = svc.Generate(context.Background(), reports.TriggerAPI)
	}()
	<-runner.started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = svc.Generate(context.Background(), reports.TriggerAPI)
		}(i)
	}
	// let the followers join the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(runner.release)
	wg.Wait()

	if n := runner.calls.Load(); n != 1 {
		t.Errorf("runner called %d times, want 1", n)
	}
	for i, r := range results {
		if r == nil || r.RunID != "shared" {
			t.Errorf("caller %d got %+v", i, r)
		}
	}
}

// cancellableRunner fails with the context error if its context ends
// before release.
type cancellableRunner struct {
	started chan struct{}
	release chan struct{}
}

func (c *cancellableRunner) Run(ctx context.Context) (*reports.RunResult, error) {
	close(c.started)
	select {
	case <-c.release:
		return &reports.RunResult{RunID: "detached", NoOp: true}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestReportService_CancelledCallerDoesNotAbortSharedRun(t *testing.T) {
	runner := &cancellableRunner{started: make(chan struct{}), release: make(chan struct{})}
	svc := NewReportService(runner, memory.New())

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.Generate(leaderCtx, reports.TriggerAPI)
		leaderErr <- err
	}()
	<-runner.started

	type outcome struct {
		res *reports.RunResult
		err error
	}
	follower := make(chan outcome, 1)
	go func() {
		res, err := svc.Generate(context.Background(), reports.TriggerSchedule)
		follower <- outcome{res, err}
	}()
	// let the follower join the in-flight call
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	select {
	case err := <-leaderErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("leader err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled leader kept waiting")
	}

	close(runner.release)
	select {
	case got := <-follower:
		if got.err != nil {
			t.Fatalf("follower err = %v", got.err)
		}
		if got.res.RunID != "detached" {
			t.Fatalf("follower got %+v", got.res)
		}
	case <-time.After(time.Second):
		t.Fatal("follower never received the run result")
	}
}

func TestReportService_Enqueue(t *testing.T) {
	svc := NewReportService(nil, memory.New())
	if svc.CanEnqueue() {
		t.Error("CanEnqueue without queue")
	}
	if _, err := svc.Enqueue(context.Background(), 1, reports.TriggerAPI); !errors.Is(err, ErrNoQueue) {
		t.Errorf("expected ErrNoQueue, got %v", err)
	}

	q := &fakeQueue{}
	svc = NewReportService(nil, memory.New(), WithRunQueue(q))
	id, err := svc.Enqueue(context.Background(), 4, reports.TriggerAPI)
	if err != nil {
		t.Fatal(err)
	}
	if id != "req-1" || q.requestedBy != 4 || q.trigger != reports.TriggerAPI {
		t.Errorf("unexpected enqueue id=%s queue=%+v", id, q)
	}

	q.err = errors.New("circuit breaker is open")
	if _, err := svc.Enqueue(context.Background(), 4, reports.TriggerAPI); err == nil {
		t.Error("expected enqueue error")
	}
}
