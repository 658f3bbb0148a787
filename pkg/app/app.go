package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/womat/debug"

	"gpioisr/pkg/app/config"
	"gpioisr/pkg/metrics"
	"gpioisr/pkg/pulse"
	"gpioisr/pkg/raspberry"
	"gpioisr/pkg/store"
	"gpioisr/pkg/tick"
)

const (
	// LoopDelay is the pause between two drain passes.
	LoopDelay = 20 * time.Millisecond
	// diagBuffer is the capacity of the classification results channel.
	diagBuffer = 256
	// defaultEmulatedWidth is the generated pulse width for lines without an
	// expected period.
	defaultEmulatedWidth = 50 * time.Millisecond
)

// App is the main application struct.
// App is where the application is wired up.
type App struct {
	// config is the application configuration
	config *config.Config

	// clock is the monotonic tick source used for setup and the dump interval
	clock tick.Source

	// counter holds the state of all monitored lines
	counter *pulse.Counter

	// gpio is the handler to the edge delivery backend
	gpio raspberry.GPIO

	// engine persists the counters, nil in monitor mode
	engine *store.Engine

	// textfile is the optional metrics export
	textfile *metrics.Textfile

	// diag receives the classification results of falling edges
	diag chan pulse.Result

	// started is the wall clock start time, used for status reports
	started time.Time

	// snaps is reused across drain passes
	snaps []pulse.Snapshot

	// loopDelay is the pause between two drain passes
	loopDelay time.Duration
}

// Option configures an App.
type Option func(*App)

// WithClock replaces the system tick source.
func WithClock(clock tick.Source) Option {
	return func(app *App) {
		app.clock = clock
	}
}

// WithGPIO uses gpio instead of opening the configured backend.
func WithGPIO(gpio raspberry.GPIO) Option {
	return func(app *App) {
		app.gpio = gpio
	}
}

// New creates the line counters and the storage engine for config.
// No hardware or file is touched before Run.
func New(config *config.Config, opts ...Option) (*App, error) {
	app := &App{
		config:    config,
		clock:     tick.System(),
		diag:      make(chan pulse.Result, diagBuffer),
		loopDelay: LoopDelay,
	}
	for _, o := range opts {
		o(app)
	}

	var err error
	if app.counter, err = pulse.New(config.Lines(), app.clock.Now(), pulse.WithDiagnostics(app.diag)); err != nil {
		debug.ErrorLog.Printf("can't configure lines: %v", err)
		return nil, err
	}

	if !config.Monitor {
		app.engine = store.NewEngine(
			store.NewDir(config.DurableDir, true),
			store.NewDir(config.VolatileDir, false),
		)
	}

	if config.MetricsFile != "" {
		if app.textfile, err = metrics.NewTextfile(config.MetricsFile, app.counter); err != nil {
			debug.ErrorLog.Printf("can't create metrics textfile: %v", err)
			return nil, err
		}
		debug.InfoLog.Printf("will write metrics to %s", app.textfile.Path())
	}

	return app, nil
}

// Run restores the counters, starts edge delivery and drains pending events
// until ctx is cancelled. A final durable dump is written before Run returns.
// Any durable storage failure ends Run with an error.
func (app *App) Run(ctx context.Context) error {
	if err := app.init(); err != nil {
		return err
	}

	// the diagnostics logger outlives ctx so the final dump is still logged
	logCtx, stopLog := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.logDiagnostics(logCtx)
	}()
	defer func() {
		stopLog()
		wg.Wait()
	}()

	ticker := time.NewTicker(app.loopDelay)
	defer ticker.Stop()

	return app.runLoop(ctx, ticker.C)
}

// init restores the counters from the durable tier and starts watching the lines.
func (app *App) init() (err error) {
	app.started = time.Now()

	if app.engine != nil {
		if err = app.engine.Prepare(); err != nil {
			debug.ErrorLog.Printf("can't prepare storage: %v", err)
			return err
		}
		if err = app.engine.Load(app.counter, app.counter.Pins()); err != nil {
			debug.ErrorLog.Printf("can't load counters: %v", err)
			return err
		}
	} else {
		debug.InfoLog.Print("monitor mode, counters are not persisted")
	}

	if app.gpio == nil {
		if app.gpio, err = raspberry.Open(app.config.Backend, app.config.Chip, app.clock); err != nil {
			debug.ErrorLog.Printf("can't open gpio: %v", err)
			return err
		}
	}

	for _, p := range app.config.Pins {
		if err = app.gpio.Watch(p.Pin, p.PullOf(), app.counter.OnEdge); err != nil {
			debug.ErrorLog.Printf("can't watch GPIO%d: %v", p.Pin, err)
			return fmt.Errorf("watch GPIO%d: %w", p.Pin, err)
		}
		debug.InfoLog.Printf("monitoring GPIO%d (inverse %v, expected period %dms, pull %s)",
			p.Pin, p.Inverse, p.ExpectedPeriod, p.PullOf())
	}

	return app.emulate()
}

// emulate starts a pulse generator on every line if the emulator backend
// is configured with a period.
func (app *App) emulate() error {
	emu, ok := app.gpio.(*raspberry.Emulator)
	if !ok || app.config.EmulatePeriod <= 0 {
		return nil
	}

	for _, p := range app.config.Pins {
		width := defaultEmulatedWidth
		if p.ExpectedPeriod > 0 {
			width = time.Duration(p.ExpectedPeriod) * time.Millisecond
		}
		if err := emu.Generate(p.Pin, width, app.config.EmulatePeriod); err != nil {
			debug.ErrorLog.Printf("can't emulate GPIO%d: %v", p.Pin, err)
			return err
		}
		debug.InfoLog.Printf("emulating a %v pulse on GPIO%d every %v", width, p.Pin, app.config.EmulatePeriod)
	}
	return nil
}

// runLoop is the drain loop. Each pass writes the durable tier when the dump
// interval has elapsed, then drains the pending event count into volatile
// dumps, then waits for the next tick of wait.
func (app *App) runLoop(ctx context.Context, wait <-chan time.Time) error {
	lastDump := app.clock.Now()

	for {
		shutdown := ctx.Err() != nil

		if now := app.clock.Now(); shutdown || tick.Elapsed(now, lastDump) >= app.config.DumpInterval {
			if err := app.dumpDurable(); err != nil {
				return err
			}
			lastDump = now
		}
		if shutdown {
			debug.InfoLog.Print("final dump done, terminating")
			return nil
		}

		for app.counter.TakePending() {
			if app.engine == nil {
				continue
			}
			app.snaps = app.counter.Snapshots(app.snaps[:0])
			app.engine.DumpVolatile(app.snaps)
		}

		select {
		case <-ctx.Done():
		case <-wait:
		}
	}
}

// dumpDurable writes the durable tier and refreshes the metrics textfile
// and the status log.
func (app *App) dumpDurable() error {
	app.snaps = app.counter.Snapshots(app.snaps[:0])

	if app.engine != nil {
		if err := app.engine.DumpDurable(app.snaps); err != nil {
			debug.ErrorLog.Printf("can't write durable counters: %v", err)
			return err
		}
	}

	if app.textfile != nil {
		if err := app.textfile.Write(); err != nil {
			debug.ErrorLog.Print(err)
		}
	}

	app.logStatus(app.snaps)
	return nil
}

// Close releases the gpio lines.
func (app *App) Close() error {
	if app.gpio == nil {
		return nil
	}
	return app.gpio.Close()
}
