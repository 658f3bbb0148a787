package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/womat/debug"
	"gopkg.in/yaml.v2"

	"gpioisr/pkg/port"
	"gpioisr/pkg/pulse"
	"gpioisr/pkg/raspberry"
	"gpioisr/pkg/store"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrDuplicatePin  = errors.New("pin listed twice")
	ErrNoPins        = errors.New("no pins configured")
)

// Config defines the struct of global config and the struct of the configuration file.
// Fields tagged `yaml:"-"` are derived from the file values or set from command line flags.
type Config struct {
	DurableDir       string        `yaml:"durable_dir" validate:"required"`
	VolatileDir      string        `yaml:"volatile_dir" validate:"required"`
	DumpIntervalInt  int           `yaml:"dump_interval" validate:"min=1,max=3600"`
	DumpInterval     time.Duration `yaml:"-"`
	Monitor          bool          `yaml:"monitor"`
	Backend          string        `yaml:"backend" validate:"oneof=cdev mem emu"`
	Chip             string        `yaml:"chip" validate:"required"`
	MetricsFile      string        `yaml:"metrics_file"`
	EmulatePeriodInt int           `yaml:"emulate_period" validate:"min=0"`
	EmulatePeriod    time.Duration `yaml:"-"`
	Pins             []PinConfig   `yaml:"pins" validate:"dive"`
	Debug            DebugConfig   `yaml:"debug"`
	Flag             FlagConfig    `yaml:"-"`
}

// PinConfig defines the configuration of a single monitored line.
type PinConfig struct {
	Pin int `yaml:"pin" validate:"min=0,max=53"`
	// Inverse marks a normal-high line: the pulse is a falling then a rising edge.
	Inverse bool `yaml:"inverse"`
	// ExpectedPeriod is the nominal pulse width in ms, 0 selects the default window.
	ExpectedPeriod int    `yaml:"expected_period" validate:"min=0,max=120"`
	Pull           string `yaml:"pull" validate:"omitempty,oneof=none up down"`
}

// FlagConfig defines the configured flags (parameters).
// Zero values mean "not set on the command line".
type FlagConfig struct {
	ConfigFile   string
	LogLevel     string
	Debug        bool
	Monitor      bool
	DumpInterval int
	PulseWidth   int
	PullUp       bool
	PullDown     bool
	Pins         []int
	InversePins  []int
	Backend      string
	Chip         string
	DurableDir   string
	VolatileDir  string
	MetricsFile  string
}

// DebugConfig defines the struct of the debug configuration and configuration file.
type DebugConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag" validate:"oneof=standard debug trace full"`
	FileString string         `yaml:"file"`
}

var validate = validator.New()

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return &Config{
		DurableDir:      store.DefaultDurableDir,
		VolatileDir:     store.DefaultVolatileDir,
		DumpIntervalInt: 300,
		Backend:         raspberry.BackendCdev,
		Chip:            raspberry.DefaultChip,
		Flag:            FlagConfig{},
		Debug: DebugConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
	}
}

// LoadConfig reads the configuration file (if one is given), applies the
// command line flags, and validates the result.
func (c *Config) LoadConfig() error {
	if c.Flag.ConfigFile != "" {
		if err := c.readConfigFile(); err != nil {
			return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
		}
	}

	if err := c.applyFlags(); err != nil {
		return err
	}

	if err := c.Validate(); err != nil {
		return err
	}

	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open debug file %q: %w", c.Debug.FileString, err)
	}

	c.DumpInterval = time.Duration(c.DumpIntervalInt) * time.Second
	c.EmulatePeriod = time.Duration(c.EmulatePeriodInt) * time.Millisecond

	return nil
}

// readConfigFile decodes the config file over the defaults. Unknown keys are
// rejected so a misspelt option does not silently keep its default.
func (c *Config) readConfigFile() error {
	b, err := os.ReadFile(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(b, c)
}

// applyFlags overlays the command line flags onto the file configuration.
func (c *Config) applyFlags() error {
	f := c.Flag

	if f.PullUp && f.PullDown {
		return fmt.Errorf("%w: pull-up and pull-down are mutually exclusive", ErrInvalidConfig)
	}
	if f.PulseWidth != 0 && (f.PulseWidth < 1 || f.PulseWidth > pulse.MaxExpectedPeriod) {
		return fmt.Errorf("%w: pulse width %dms out of range 1..%d", ErrInvalidConfig, f.PulseWidth, pulse.MaxExpectedPeriod)
	}

	for _, p := range f.Pins {
		c.Pins = append(c.Pins, PinConfig{Pin: p})
	}
	for _, p := range f.InversePins {
		c.Pins = append(c.Pins, PinConfig{Pin: p, Inverse: true})
	}

	for i := range c.Pins {
		if f.PulseWidth != 0 && c.Pins[i].ExpectedPeriod == 0 {
			c.Pins[i].ExpectedPeriod = f.PulseWidth
		}
		if c.Pins[i].Pull == "" {
			switch {
			case f.PullUp:
				c.Pins[i].Pull = "up"
			case f.PullDown:
				c.Pins[i].Pull = "down"
			}
		}
	}

	if f.Monitor {
		c.Monitor = true
	}
	if f.DumpInterval != 0 {
		c.DumpIntervalInt = f.DumpInterval
	}
	if f.Backend != "" {
		c.Backend = f.Backend
	}
	if f.Chip != "" {
		c.Chip = f.Chip
	}
	if f.DurableDir != "" {
		c.DurableDir = f.DurableDir
	}
	if f.VolatileDir != "" {
		c.VolatileDir = f.VolatileDir
	}
	if f.MetricsFile != "" {
		c.MetricsFile = f.MetricsFile
	}

	if f.LogLevel != "" {
		c.Debug.FlagString = f.LogLevel
	}
	// monitor mode implies debug logging
	if (f.Debug || c.Monitor) && c.Debug.FlagString == "standard" {
		c.Debug.FlagString = "debug"
	}

	return nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if len(c.Pins) == 0 {
		return ErrNoPins
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	seen := map[int]bool{}
	for _, p := range c.Pins {
		if seen[p.Pin] {
			return fmt.Errorf("%w: GPIO%d", ErrDuplicatePin, p.Pin)
		}
		seen[p.Pin] = true
	}
	return nil
}

// Lines returns the classifier configuration of all pins.
func (c *Config) Lines() []pulse.Config {
	lines := make([]pulse.Config, 0, len(c.Pins))
	for _, p := range c.Pins {
		lines = append(lines, pulse.Config{
			Pin:            p.Pin,
			Inverse:        p.Inverse,
			ExpectedPeriod: uint32(p.ExpectedPeriod),
		})
	}
	return lines
}

// PullOf returns the requested bias of a pin.
func (p PinConfig) PullOf() port.Pull {
	switch p.Pull {
	case "up":
		return port.PullUp
	case "down":
		return port.PullDown
	default:
		return port.PullNone
	}
}

// Close closes the debug file if it was opened by LoadConfig.
func (c *Config) Close() error {
	if c.Debug.File == nil || c.Debug.File == os.Stderr || c.Debug.File == os.Stdout {
		return nil
	}
	return c.Debug.File.Close()
}

// logLevels maps the log level names to womat/debug flags.
var logLevels = map[string]int{
	"standard": debug.Standard,
	"debug":    debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug,
	"trace":    debug.Full,
	"full":     debug.Full,
}

// setDebugConfig resolves the log level and opens the log destination.
func (c *Config) setDebugConfig() error {
	c.Debug.Flag = logLevels[c.Debug.FlagString]

	w, err := openLog(c.Debug.FileString)
	if err != nil {
		return err
	}
	c.Debug.File = w
	return nil
}

// openLog returns the standard stream named by dest or a file opened for
// appending.
func openLog(dest string) (io.WriteCloser, error) {
	switch dest {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}
