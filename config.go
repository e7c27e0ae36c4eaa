package tailglow

import (
	"encoding"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"libdb.so/tailglow/internal/animation"
	"libdb.so/tailglow/internal/command"
	"libdb.so/tailglow/internal/mode"
	"libdb.so/tailglow/internal/output"
	"libdb.so/tailglow/internal/task"
	"libdb.so/tailglow/internal/transport/mqtt"
)

// Config is the configuration for the tailglow daemon.
type Config struct {
	// Strip describes the LED strip and the animation geometry.
	Strip StripConfig `toml:"strip"`
	// Output selects the driver that frames are flushed to.
	Output OutputConfig `toml:"output"`
	// Tasks configures the periodic task of each animation mode, keyed by
	// mode name.
	Tasks map[string]TaskConfig `toml:"task"`
	// Command configures the command task.
	Command CommandConfig `toml:"command"`
	// MQTT enables the MQTT adapter when present.
	MQTT *MQTTConfig `toml:"mqtt"`
	// Control enables the WebSocket control server when present.
	Control *ControlConfig `toml:"control"`
}

// StripConfig is the configuration for the LED strip.
type StripConfig struct {
	// Length is the number of LEDs on the strip.
	Length int `toml:"length"`
	// Brightness is the global brightness from 0 to 255.
	Brightness *int `toml:"brightness"`
	// Region is the number of LEDs lit at each end of the strip by the end
	// animations.
	Region *int `toml:"region"`
	// ChaseWidth is the number of LEDs lit by the chase animations.
	ChaseWidth int `toml:"chase_width"`
}

// OutputConfig is the configuration for the output driver.
type OutputConfig struct {
	Driver output.Kind `toml:"driver"`
	// Pin is the SPI port name. It is only used by the spi driver.
	Pin        string `toml:"pin"`
	SPIFreqKHz int    `toml:"spi_freq_khz"`
	// Device is the path to the serial device, usually /dev/ttyUSB0 or
	// /dev/ttyACM0. It is only used by the serial driver.
	Device     string       `toml:"device"`
	Baud       int          `toml:"baud"`
	AckTimeout TOMLDuration `toml:"ack_timeout"`
}

// TaskConfig is the scheduling configuration of a periodic task.
type TaskConfig struct {
	Period TOMLDuration `toml:"period"`
	// Priority is the task priority from 0 to 7. Higher runs first.
	Priority *int `toml:"priority"`
	// Core is the CPU core the task is pinned to, or -1 to leave it
	// unpinned.
	Core *int `toml:"core"`
}

// CommandConfig is the configuration for the command task.
type CommandConfig struct {
	// Queue is the number of commands that can wait to be applied.
	Queue    int          `toml:"queue"`
	Period   TOMLDuration `toml:"period"`
	Priority *int         `toml:"priority"`
	Core     *int         `toml:"core"`
}

func (c CommandConfig) taskConfig() TaskConfig {
	return TaskConfig{Period: c.Period, Priority: c.Priority, Core: c.Core}
}

// MQTTConfig is the configuration for the MQTT adapter.
type MQTTConfig struct {
	// Broker is the broker URL, such as tcp://broker.hivemq.com:1883.
	Broker            string       `toml:"broker"`
	ClientID          string       `toml:"client_id"`
	CommandTopic      string       `toml:"command_topic"`
	StatusTopic       string       `toml:"status_topic"`
	Username          string       `toml:"username"`
	Password          string       `toml:"password"`
	QoS               int          `toml:"qos"`
	ReconnectInterval TOMLDuration `toml:"reconnect_interval"`
	PublishTimeout    TOMLDuration `toml:"publish_timeout"`
}

// ControlConfig is the configuration for the WebSocket control server.
type ControlConfig struct {
	// Listen is the address to listen on, such as :8080.
	Listen string `toml:"listen"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Strip: StripConfig{
			Length:     30,
			Brightness: ptr(100),
			Region:     ptr(animation.DefaultOptions.Region),
			ChaseWidth: animation.DefaultOptions.ChaseWidth,
		},
		Output: OutputConfig{
			Driver:     output.NoDriver,
			SPIFreqKHz: output.DefaultSPIFreqKHz,
			Device:     "/dev/ttyUSB0",
			Baud:       115200,
			AckTimeout: TOMLDuration(output.DefaultAckTimeout),
		},
		Tasks: map[string]TaskConfig{
			string(mode.Default):      taskConfig(50*time.Millisecond, 1, 1),
			string(mode.Reverse):      taskConfig(500*time.Millisecond, 2, 1),
			string(mode.Intermittent): taskConfig(300*time.Millisecond, 2, 1),
			string(mode.Left):         taskConfig(100*time.Millisecond, 2, 1),
			string(mode.Right):        taskConfig(100*time.Millisecond, 2, 1),
			string(mode.Stop):         taskConfig(100*time.Millisecond, 2, 1),
		},
		Command: CommandConfig{
			Queue:    command.DefaultQueueSize,
			Period:   TOMLDuration(10 * time.Millisecond),
			Priority: ptr(3),
			Core:     ptr(0),
		},
	}
}

func defaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		ClientID:          "tailglow",
		CommandTopic:      "led_control",
		StatusTopic:       "led_status",
		ReconnectInterval: TOMLDuration(5 * time.Second),
		PublishTimeout:    TOMLDuration(mqtt.DefaultPublishTimeout),
	}
}

func taskConfig(period time.Duration, priority, core int) TaskConfig {
	return TaskConfig{
		Period:   TOMLDuration(period),
		Priority: ptr(priority),
		Core:     ptr(core),
	}
}

func ptr[T any](v T) *T { return &v }

// setDefaults fills every field left unset by the configuration file.
func (c *Config) setDefaults() {
	def := DefaultConfig()

	if c.Strip.Length == 0 {
		c.Strip.Length = def.Strip.Length
	}
	if c.Strip.Brightness == nil {
		c.Strip.Brightness = def.Strip.Brightness
	}
	if c.Strip.Region == nil {
		c.Strip.Region = def.Strip.Region
	}
	if c.Strip.ChaseWidth == 0 {
		c.Strip.ChaseWidth = def.Strip.ChaseWidth
	}

	if c.Output.Driver == "" {
		c.Output.Driver = def.Output.Driver
	}
	if c.Output.SPIFreqKHz == 0 {
		c.Output.SPIFreqKHz = def.Output.SPIFreqKHz
	}
	if c.Output.Device == "" {
		c.Output.Device = def.Output.Device
	}
	if c.Output.Baud == 0 {
		c.Output.Baud = def.Output.Baud
	}
	if c.Output.AckTimeout == 0 {
		c.Output.AckTimeout = def.Output.AckTimeout
	}

	if c.Tasks == nil {
		c.Tasks = make(map[string]TaskConfig, len(def.Tasks))
	}
	for name, d := range def.Tasks {
		c.Tasks[name] = c.Tasks[name].withDefaults(d)
	}

	if c.Command.Queue == 0 {
		c.Command.Queue = def.Command.Queue
	}
	cmd := c.Command.taskConfig().withDefaults(def.Command.taskConfig())
	c.Command.Period = cmd.Period
	c.Command.Priority = cmd.Priority
	c.Command.Core = cmd.Core

	if c.MQTT != nil {
		d := defaultMQTTConfig()
		if c.MQTT.ClientID == "" {
			c.MQTT.ClientID = d.ClientID
		}
		if c.MQTT.CommandTopic == "" {
			c.MQTT.CommandTopic = d.CommandTopic
		}
		if c.MQTT.StatusTopic == "" {
			c.MQTT.StatusTopic = d.StatusTopic
		}
		if c.MQTT.ReconnectInterval == 0 {
			c.MQTT.ReconnectInterval = d.ReconnectInterval
		}
		if c.MQTT.PublishTimeout == 0 {
			c.MQTT.PublishTimeout = d.PublishTimeout
		}
	}
}

func (t TaskConfig) withDefaults(def TaskConfig) TaskConfig {
	if t.Period == 0 {
		t.Period = def.Period
	}
	if t.Priority == nil {
		t.Priority = def.Priority
	}
	if t.Core == nil {
		t.Core = def.Core
	}
	return t
}

// Validate validates the configuration. It expects defaults to have been
// applied, which ParseConfig and DefaultConfig both do.
func (c *Config) Validate() error {
	if c.Strip.Length < 1 || c.Strip.Length > 65535 {
		return fmt.Errorf("strip length %d out of range [1, 65535]", c.Strip.Length)
	}
	if c.Strip.Brightness == nil || *c.Strip.Brightness < 0 || *c.Strip.Brightness > 255 {
		return errors.New("strip brightness must be within [0, 255]")
	}
	if c.Strip.Region == nil || *c.Strip.Region < 0 {
		return errors.New("strip region must not be negative")
	}
	if c.Strip.ChaseWidth < 1 {
		return fmt.Errorf("chase width %d must be at least 1", c.Strip.ChaseWidth)
	}

	if !isKnownDriver(c.Output.Driver) {
		return fmt.Errorf("unknown output driver %q", c.Output.Driver)
	}

	for _, name := range sortedKeys(c.Tasks) {
		m, err := mode.ParseName(name)
		if err != nil {
			return errors.Wrap(err, "invalid task")
		}
		if err := c.AnimationTask(m).ValidateSchedule(); err != nil {
			return err
		}
	}

	if c.Command.Queue < 1 {
		return fmt.Errorf("command queue size %d must be at least 1", c.Command.Queue)
	}
	if err := c.CommandTask().ValidateSchedule(); err != nil {
		return err
	}

	if c.MQTT != nil {
		if c.MQTT.Broker == "" {
			return errors.New("mqtt broker is required")
		}
		if c.MQTT.PublishTimeout < 0 {
			return errors.New("mqtt publish timeout must not be negative")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt qos %d out of range [0, 2]", c.MQTT.QoS)
		}
	}

	if c.Control != nil && c.Control.Listen == "" {
		return errors.New("control listen address is required")
	}

	return nil
}

func isKnownDriver(kind output.Kind) bool {
	for _, k := range output.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AnimationOptions returns the animation geometry.
func (c *Config) AnimationOptions() animation.Options {
	return animation.Options{
		Region:     *c.Strip.Region,
		ChaseWidth: c.Strip.ChaseWidth,
	}
}

// OutputOptions returns the options for opening the output driver.
func (c *Config) OutputOptions() output.Options {
	return output.Options{
		Kind:       c.Output.Driver,
		NumLEDs:    c.Strip.Length,
		Pin:        c.Output.Pin,
		SPIFreqKHz: c.Output.SPIFreqKHz,
		Device:     c.Output.Device,
		Baud:       c.Output.Baud,
		AckTimeout: time.Duration(c.Output.AckTimeout),
	}
}

// AnimationTask returns the scheduling of the task animating the given mode.
// The returned task has no Step.
func (c *Config) AnimationTask(m mode.Name) task.Task {
	return c.Tasks[string(m)].task(string(m))
}

// CommandTask returns the scheduling of the command task. The returned task
// has no Step.
func (c *Config) CommandTask() task.Task {
	return c.Command.taskConfig().task("command")
}

func (t TaskConfig) task(name string) task.Task {
	tk := task.Task{
		Name:   name,
		Period: time.Duration(t.Period),
		Core:   task.NoCore,
	}
	if t.Priority != nil {
		tk.Priority = *t.Priority
	}
	if t.Core != nil {
		tk.Core = *t.Core
	}
	return tk
}

// ClientConfig returns the MQTT client configuration.
func (c *MQTTConfig) ClientConfig() mqtt.Config {
	return mqtt.Config{
		Broker:            c.Broker,
		ClientID:          c.ClientID,
		CommandTopic:      c.CommandTopic,
		StatusTopic:       c.StatusTopic,
		Username:          c.Username,
		Password:          c.Password,
		QoS:               byte(c.QoS),
		ReconnectInterval: time.Duration(c.ReconnectInterval),
		PublishTimeout:    time.Duration(c.PublishTimeout),
	}
}

// TOMLDuration is a duration that can be parsed from TOML.
type TOMLDuration time.Duration

var (
	_ encoding.TextUnmarshaler = (*TOMLDuration)(nil)
	_ encoding.TextMarshaler   = (*TOMLDuration)(nil)
)

func (d *TOMLDuration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = TOMLDuration(duration)
	return nil
}

func (d TOMLDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ParseConfig parses a configuration from a reader, applies defaults to
// every field it leaves unset and validates the result.
func ParseConfig(r io.Reader) (*Config, error) {
	var config Config
	if err := toml.NewDecoder(r).Decode(&config); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}

	config.setDefaults()

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &config, nil
}
