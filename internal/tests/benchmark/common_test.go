package benchmark

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"testing"
	"time"

	"github.com/yndnr/sfsb-go/internal/beans/cart"
	"github.com/yndnr/sfsb-go/internal/core/bean"
	"github.com/yndnr/sfsb-go/internal/core/service"
	"github.com/yndnr/sfsb-go/internal/core/settings"
	"github.com/yndnr/sfsb-go/pkg/clock"
)

// SessionCounts are the container sizes benchmarks run at.
var SessionCounts = []int{100, 1000, 5000}

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newCart returns a cart holding items lines.
func newCart(items int) *cart.Cart {
	c := cart.New()
	c.Owner = "bench-user"
	for i := range items {
		_ = c.Add(fmt.Sprintf("sku-%04d", i), 1+i%5, int64(100+i), epoch)
	}
	return c
}

func newWrapper(id string, items int) *bean.Wrapper {
	w, _ := bean.Snapshot(id, epoch, epoch.Add(time.Hour), newCart(items))
	return w
}

func addItem(b bean.Bean, sku string, now time.Time) error {
	c, ok := b.(*cart.Cart)
	if !ok {
		return fmt.Errorf("bean %T is not a cart", b)
	}
	return c.Add(sku, 1, 100, now)
}

// newContainer returns a container over a temporary directory on a fake
// clock. Daemons are not started; benchmarks drive them directly.
func newContainer(b *testing.B, backend, compression string) (*service.Container, *clock.FakeClock) {
	b.Helper()
	st := settings.Default()
	st.SessionSavePath = b.TempDir()
	st.Backend = backend
	st.Compression = compression
	// Passivated sessions must outlive the inactivity timeout.
	st.SessionMaximumAge = 24 * 3600
	types := bean.NewTypes()
	cart.Register(types)
	clk := clock.Fake(epoch)
	c, err := service.New(service.Options{Settings: st, Types: types, Clock: clk, Logger: discard()})
	if err != nil {
		b.Fatalf("service.New: %v", err)
	}
	b.Cleanup(func() { _ = c.Stop(b.Context()) })
	return c, clk
}

// prefill adds count carts to c.
func prefill(b *testing.B, c *service.Container, count int) []string {
	b.Helper()
	ids := make([]string, count)
	for i := range ids {
		ids[i] = service.NewSessionID()
		if err := c.Add(ids[i], newCart(3)); err != nil {
			b.Fatalf("Add: %v", err)
		}
	}
	return ids
}

// reportMemory reports heap usage after a forced GC.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
}

func runWithSessionCounts(b *testing.B, fn func(b *testing.B, count int)) {
	for _, count := range SessionCounts {
		b.Run(fmt.Sprintf("sessions_%d", count), func(b *testing.B) {
			fn(b, count)
		})
	}
}
