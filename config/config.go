package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"

	"github.com/sigdec/tmc/decoder"
)

//go:embed tmc.toml
var defaultConfigData []byte

// Global state variables for the loaded configuration
var (
	Radix      decoder.Radix
	SampleRate float64
	ClkColumn  int
	DioColumn  int
	StbColumn  int // -1 when the capture has no strobe column
	DevPort    string
	DevBaud    int
	DevSamples int
)

// Config represents the entire TOML configuration structure
type Config struct {
	Radix      string   `toml:"radix"`
	SampleRate float64  `toml:"samplerate"`
	Channels   Channels `toml:"channels"`
	Device     Device   `toml:"device"`
}

// Channels maps bus lines to capture columns
type Channels struct {
	Clk int `toml:"clk"`
	Dio int `toml:"dio"`
	Stb int `toml:"stb"`
}

// Device holds live capture device settings
type Device struct {
	Port    string `toml:"port"`
	Baud    int    `toml:"baud"`
	Samples int    `toml:"samples"`
}

// configPath determines the config file path based on the operating system
func configPath() (string, error) {
	var configDir string
	var err error

	switch runtime.GOOS {
	case "windows":
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "tmc")
	default:
		configDir, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user home directory: %w", err)
		}
	}

	return filepath.Join(configDir, ".tmc"), nil
}

// Initialize loads and validates the configuration file.
// If the config file doesn't exist, it creates it from the embedded default.
func Initialize() error {
	configPath, err := configPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configDir := filepath.Dir(configPath)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
		}
		if err := os.WriteFile(configPath, defaultConfigData, 0644); err != nil {
			return fmt.Errorf("failed to create default config file at %s: %w", configPath, err)
		}
	}

	var conf Config
	if _, err := toml.DecodeFile(configPath, &conf); err != nil {
		return fmt.Errorf("failed to parse TOML config at %s: %w", configPath, err)
	}

	return apply(&conf)
}

// apply validates a parsed configuration and stores it in the package
// globals.
func apply(conf *Config) error {
	radix, err := decoder.ParseRadix(conf.Radix)
	if err != nil {
		return fmt.Errorf("invalid radix in config: %w", err)
	}

	if conf.SampleRate < 0 {
		return fmt.Errorf("invalid samplerate: %v (must not be negative)", conf.SampleRate)
	}

	if conf.Channels.Clk < 0 {
		return fmt.Errorf("invalid clk column: %d (must not be negative)", conf.Channels.Clk)
	}
	if conf.Channels.Dio < 0 {
		return fmt.Errorf("invalid dio column: %d (must not be negative)", conf.Channels.Dio)
	}
	if conf.Channels.Clk == conf.Channels.Dio ||
		conf.Channels.Clk == conf.Channels.Stb ||
		conf.Channels.Dio == conf.Channels.Stb {
		return fmt.Errorf("channel columns must be distinct: clk=%d dio=%d stb=%d",
			conf.Channels.Clk, conf.Channels.Dio, conf.Channels.Stb)
	}

	if conf.Device.Baud <= 0 {
		return fmt.Errorf("invalid device baud: %d (must be positive)", conf.Device.Baud)
	}
	if conf.Device.Samples <= 0 {
		return fmt.Errorf("invalid device samples: %d (must be positive)", conf.Device.Samples)
	}

	Radix = radix
	SampleRate = conf.SampleRate
	ClkColumn = conf.Channels.Clk
	DioColumn = conf.Channels.Dio
	StbColumn = conf.Channels.Stb
	DevPort = conf.Device.Port
	DevBaud = conf.Device.Baud
	DevSamples = conf.Device.Samples
	return nil
}
