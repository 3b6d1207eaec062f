// Package config loads the charger's host configuration: committed
// settings, the battery profile, calibration overrides and the options of
// the host services. Sources are layered defaults < file < environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"chargecode-go/core/calib"
	"chargecode-go/core/settings"
	"chargecode-go/errcode"
)

// EnvPrefix prefixes every environment override, e.g. CHARGER_BATTERY_CELLS.
const EnvPrefix = "CHARGER"

// DefaultName is the config file name searched for when no path is given.
const DefaultName = "charger"

type Config struct {
	Settings    settings.Settings     `mapstructure:"settings"`
	Battery     settings.Battery      `mapstructure:"battery"`
	Calibration map[string]calib.Pair `mapstructure:"calibration"`
	Telemetry   TelemetryConfig       `mapstructure:"telemetry"`
	MQTT        MQTTConfig            `mapstructure:"mqtt"`
	Serial      SerialConfig          `mapstructure:"serial"`
	Modbus      ModbusConfig          `mapstructure:"modbus"`
	Log         LogConfig             `mapstructure:"log"`

	// Table is the factory calibration with Calibration applied.
	Table calib.Table `mapstructure:"-"`
}

type TelemetryConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"` // empty disables the bridge
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Prefix   string `mapstructure:"prefix"`
	QoS      byte   `mapstructure:"qos"`
}

type SerialConfig struct {
	Port string `mapstructure:"port"` // empty writes to stdout
}

type ModbusConfig struct {
	Listen string `mapstructure:"listen"` // empty disables the server
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Loader reads configuration through fs.
type Loader struct {
	fs  afero.Fs
	hw  settings.Hardware
	log logrus.FieldLogger
}

// NewLoader returns a loader for a board with ceilings hw.
func NewLoader(fs afero.Fs, hw settings.Hardware, log logrus.FieldLogger) *Loader {
	return &Loader{fs: fs, hw: hw, log: log}
}

func (l *Loader) viper() *viper.Viper {
	v := viper.New()
	v.SetFs(l.fs)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for k, val := range flatten(settings.Default(l.hw)) {
		v.SetDefault("settings."+k, val)
	}
	for k, val := range flatten(settings.DefaultBattery()) {
		v.SetDefault("battery."+k, val)
	}
	v.SetDefault("telemetry.interval", time.Second)
	v.SetDefault("mqtt.client_id", "chargecode")
	v.SetDefault("mqtt.prefix", "")
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("serial.port", "")
	v.SetDefault("modbus.listen", "")
	v.SetDefault("log.level", "info")
	return v
}

// Load reads path, or searches DefaultName in the working directory and
// /etc/chargecode when path is empty. A missing file yields the defaults.
// The result is committed: settings checked against the hardware, the
// calibration table validated and the battery validated against settings.
func (l *Loader) Load(path string) (*Config, error) {
	v := l.viper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultName)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/chargecode")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		l.log.WithField("path", path).Info("config file not found, using defaults")
	} else {
		l.log.WithField("path", v.ConfigFileUsed()).Debug("config loaded")
	}

	var c Config
	if err := v.Unmarshal(&c, viper.DecodeHook(DecodeHook())); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.commit(l.hw); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) commit(hw settings.Hardware) error {
	c.Table = calib.DefaultIMaxB6()
	for name, p := range c.Calibration {
		ch, ok := calib.Lookup(name)
		if !ok {
			return errcode.Wrap(errcode.InvalidCalibration, "config.Load", "unknown channel "+name)
		}
		c.Table[ch] = p
	}
	if err := c.Table.Validate(); err != nil {
		return err
	}
	if err := c.Settings.Check(hw); err != nil {
		return err
	}
	return c.Battery.Validate(&c.Settings)
}

// Save writes the settings, battery and calibration overrides of c to path.
// The format follows the file extension.
func (l *Loader) Save(path string, c *Config) error {
	v := viper.New()
	v.SetFs(l.fs)
	v.Set("settings", flatten(c.Settings))
	v.Set("battery", flatten(c.Battery))
	if len(c.Calibration) > 0 {
		v.Set("calibration", c.Calibration)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

var (
	chemistryType = reflect.TypeOf(settings.Chemistry(0))
	uartModeType  = reflect.TypeOf(settings.UARTMode(0))
)

// DecodeHook turns names into charger enums and strings into durations.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		enumHook,
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

func enumHook(f, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String {
		return data, nil
	}
	s := data.(string)
	switch t {
	case chemistryType:
		c, ok := settings.ParseChemistry(s)
		if !ok {
			return nil, errcode.Wrap(errcode.InvalidBattery, "config.Load", "unknown chemistry "+s)
		}
		return c, nil
	case uartModeType:
		m, ok := settings.ParseUARTMode(strings.ToLower(s))
		if !ok {
			return nil, errcode.Wrap(errcode.InvalidLimits, "config.Load", "unknown uart mode "+s)
		}
		return m, nil
	}
	return data, nil
}

// flatten turns a flat tagged struct into a key map with enums by name.
func flatten(in interface{}) map[string]interface{} {
	m := map[string]interface{}{}
	if err := mapstructure.Decode(in, &m); err != nil {
		panic(err)
	}
	for k, v := range m {
		if s, ok := v.(fmt.Stringer); ok {
			m[k] = s.String()
		}
	}
	return m
}
