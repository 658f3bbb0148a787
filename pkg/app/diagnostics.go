package app

import (
	"context"
	"time"

	"github.com/womat/debug"
	"golang.org/x/time/rate"

	"gpioisr/pkg/pulse"
)

const (
	// rejectLogInterval and rejectLogBurst limit the rejection messages of one line.
	rejectLogInterval = time.Second
	rejectLogBurst    = 5
)

// lineLog throttles the rejection messages of one line.
type lineLog struct {
	limiter    *rate.Limiter
	suppressed uint64
}

// logDiagnostics writes the classification results to the debug log until
// ctx is cancelled. Rejections are rate limited per line so a noise burst
// cannot flood the log.
func (app *App) logDiagnostics(ctx context.Context) {
	lines := map[int]*lineLog{}

	for {
		select {
		case <-ctx.Done():
			return
		case res := <-app.diag:
			switch res.Reason {
			case pulse.Accepted:
				debug.DebugLog.Printf("GPIO%d: pulse accepted, width %v, totalCount %d, lastPeriod %dms, ignore budget %d",
					res.Pin, res.Width, res.TotalCount, res.Period, res.Budget)
			case pulse.Ignored:
				debug.TraceLog.Printf("GPIO%d: edge on a line which is not monitored", res.Pin)
			default:
				l, ok := lines[res.Pin]
				if !ok {
					l = &lineLog{limiter: rate.NewLimiter(rate.Every(rejectLogInterval), rejectLogBurst)}
					lines[res.Pin] = l
				}
				if !l.limiter.Allow() {
					l.suppressed++
					continue
				}
				debug.DebugLog.Printf("GPIO%d: edge rejected (%s), width %v, expected %dms, ignore budget %d, %d messages suppressed",
					res.Pin, res.Reason, res.Width, res.Expected, res.Budget, l.suppressed)
				l.suppressed = 0
			}
		}
	}
}
