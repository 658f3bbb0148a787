package main

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"gpioisr/pkg/app"
	"gpioisr/pkg/app/config"

	"github.com/urfave/cli/v2"
	"github.com/womat/debug"
)

func main() {
	exitCode := 1
	defer func() {
		os.Exit(exitCode)
	}()

	// cfg holds the application configuration
	cfg := config.NewConfig()
	cliApp := newCLI(cfg, run)

	err := cliApp.Run(os.Args)
	if err != nil {
		debug.FatalLog.Print(err)
		exitCode = 1
		return
	}

	exitCode = 0
}

// newCLI returns the command line application. Its action loads cfg and
// hands it to run.
func newCLI(cfg *config.Config, run func(*config.Config) error) *cli.App {
	cliApp := &cli.App{
		Name:    app.MODULE,
		Usage:   "count pulses on GPIO lines and persist the counters",
		Version: app.VERSION,
		Description: "Count the pulses of slow periodic signals (utility meters, rotation sensors) on Raspberry Pi GPIO lines." +
			"\n The total count survives restarts in the durable directory, the current count and the time between" +
			"\n the last two pulses are published in the volatile directory." +
			"\n\n -w, -U and -D are not positional: they apply to every pin given on the command line and to" +
			"\n the pins of the configuration file without their own value, wherever they appear." +
			"\n Per pin pulse widths and pull resistors are set in the configuration file.",
		UsageText: "gpioisr [--config <file>] [-t <secs>] [-w <ms>] [-U|-D] -p <pin> [-p <pin>] [-P <pin>]" +
			"\n\nEXAMPLE:" +
			"\n\tcount the pulses of an S0 meter on GPIO17 and an inverted line on GPIO27" +
			"\n\t\tgpioisr -p 17 -P 27 -t 60",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Destination: &cfg.Flag.ConfigFile, Usage: "load configuration from `FILE`"},
			&cli.StringFlag{Name: "log", Aliases: []string{"l"}, Destination: &cfg.Flag.LogLevel, Usage: "`LEVEL` defines the log level (standard|debug|trace)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Destination: &cfg.Flag.Debug, Usage: "enable debug logging"},
			&cli.BoolFlag{Name: "monitor", Aliases: []string{"m"}, Destination: &cfg.Flag.Monitor, Usage: "log the classified edges, don't read or write counters"},
			&cli.IntFlag{Name: "dump-interval", Aliases: []string{"t"}, Destination: &cfg.Flag.DumpInterval, Usage: "write the durable counters every `SECS` seconds (1..3600)"},
			&cli.IntFlag{Name: "pulse-width", Aliases: []string{"w"}, Destination: &cfg.Flag.PulseWidth, Usage: "expected pulse width in `MS` (1..120), +/-2ms, for all pins"},
			&cli.BoolFlag{Name: "pull-up", Aliases: []string{"U"}, Destination: &cfg.Flag.PullUp, Usage: "enable the pull-up resistor of all pins"},
			&cli.BoolFlag{Name: "pull-down", Aliases: []string{"D"}, Destination: &cfg.Flag.PullDown, Usage: "enable the pull-down resistor of all pins"},
			&cli.IntSliceFlag{Name: "pin", Aliases: []string{"p"}, Usage: "count pulses on normal low line `N`"},
			&cli.IntSliceFlag{Name: "inverse-pin", Aliases: []string{"P"}, Usage: "count pulses on normal high line `N`"},
			&cli.StringFlag{Name: "backend", Destination: &cfg.Flag.Backend, Usage: "edge delivery `BACKEND` (cdev|mem|emu)"},
			&cli.StringFlag{Name: "chip", Destination: &cfg.Flag.Chip, Usage: "GPIO character device `NAME`"},
			&cli.StringFlag{Name: "durable-dir", Destination: &cfg.Flag.DurableDir, Usage: "`DIR` of the durable counters"},
			&cli.StringFlag{Name: "volatile-dir", Destination: &cfg.Flag.VolatileDir, Usage: "`DIR` of the volatile counters"},
			&cli.StringFlag{Name: "metrics-file", Destination: &cfg.Flag.MetricsFile, Usage: "write prometheus metrics to `FILE`"},
		},
		Action: func(ctx *cli.Context) error {
			cfg.Flag.Pins = ctx.IntSlice("pin")
			cfg.Flag.InversePins = ctx.IntSlice("inverse-pin")

			if err := cfg.LoadConfig(); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	// we expect to have more command line flags in the future - sort them
	sort.Sort(cli.FlagsByName(cliApp.Flags))
	return cliApp
}

// run starts the application and blocks until SIGINT or SIGTERM.
func run(cfg *config.Config) error {
	debug.SetDebug(cfg.Debug.File, cfg.Debug.Flag)
	defer func() {
		debug.InfoLog.Printf("closing debug file %s", cfg.Debug.FileString)
		_ = cfg.Close()
	}()

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		debug.InfoLog.Printf("closing app %s", app.Version())
		_ = a.Close()
	}()

	// capture exit signals to ensure the counters are written on exit.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	signal.Ignore(syscall.SIGCONT)

	debug.InfoLog.Printf("starting app %s", app.Version())
	return a.Run(ctx)
}
