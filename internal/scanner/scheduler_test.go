package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whale-tracker/internal/chain"
	"github.com/whale-tracker/internal/types"
)

func testEngine(events *collector) *Engine {
	source := &fakeSource{
		price: decimal.NewFromFloat(0.0001),
		holders: []chain.Holder{
			{WalletAddress: addrA, Balance: decimal.NewFromInt(500000)},
		},
	}
	return NewEngine(testConfig(), source, newFakeWhaleStore(), nil, nil, events)
}

func cycleCount(events *collector) int {
	return len(events.byType(types.EventStatsUpdate))
}

func TestSchedulerRunsImmediateCycle(t *testing.T) {
	events := &collector{}
	scheduler := NewScheduler(testEngine(events), time.Hour)

	scheduler.Start(context.Background())
	defer scheduler.Stop()

	deadline := time.After(2 * time.Second)
	for cycleCount(events) == 0 {
		select {
		case <-deadline:
			t.Fatal("no scan cycle ran after Start")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSchedulerStartTwiceIsNoop(t *testing.T) {
	events := &collector{}
	scheduler := NewScheduler(testEngine(events), time.Hour)

	scheduler.Start(context.Background())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	if !scheduler.IsRunning() {
		t.Fatal("scheduler not running after Start")
	}

	time.Sleep(100 * time.Millisecond)
	if got := cycleCount(events); got != 1 {
		t.Errorf("cycle count = %d, want 1 after double Start with long interval", got)
	}
}

func TestSchedulerStopIdempotent(t *testing.T) {
	events := &collector{}
	scheduler := NewScheduler(testEngine(events), time.Hour)

	scheduler.Start(context.Background())
	scheduler.Stop()
	scheduler.Stop()

	if scheduler.IsRunning() {
		t.Error("scheduler still running after Stop")
	}
}

// blockingSource parks inside ListHolders until released and records the
// context state it observed on the way out
type blockingSource struct {
	entered chan struct{}
	release chan struct{}
	ctxErr  error
}

func (b *blockingSource) ListHolders(ctx context.Context, threshold decimal.Decimal) []chain.Holder {
	close(b.entered)
	<-b.release
	b.ctxErr = ctx.Err()
	return nil
}

func (b *blockingSource) GetTokenPrice(ctx context.Context) decimal.Decimal { return decimal.Zero }

func (b *blockingSource) RecentSignature(ctx context.Context, wallet string) string { return "" }

func TestSchedulerStopDoesNotCancelInFlightCycle(t *testing.T) {
	source := &blockingSource{entered: make(chan struct{}), release: make(chan struct{})}
	engine := NewEngine(testConfig(), source, newFakeWhaleStore(), nil, nil)
	scheduler := NewScheduler(engine, time.Hour)

	scheduler.Start(context.Background())
	<-source.entered

	stopped := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(stopped)
	}()

	// Stop waits for the cycle instead of aborting it
	select {
	case <-stopped:
		t.Fatal("Stop returned while a cycle was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(source.release)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the cycle finished")
	}

	if source.ctxErr != nil {
		t.Errorf("in-flight cycle context error = %v, want nil", source.ctxErr)
	}
}

func TestSchedulerTicks(t *testing.T) {
	events := &collector{}
	scheduler := NewScheduler(testEngine(events), 30*time.Millisecond)

	scheduler.Start(context.Background())
	time.Sleep(110 * time.Millisecond)
	scheduler.Stop()

	if got := cycleCount(events); got < 2 {
		t.Errorf("cycle count = %d, want at least 2 with ticking interval", got)
	}

	// No further cycles after Stop
	settled := cycleCount(events)
	time.Sleep(80 * time.Millisecond)
	if got := cycleCount(events); got != settled {
		t.Errorf("cycle count grew after Stop: %d -> %d", settled, got)
	}
}
