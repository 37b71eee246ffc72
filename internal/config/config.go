// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/gesture_lock/internal/gyro"
)

// DefaultPath is the configuration file the commands read when no -config
// flag is given.
const DefaultPath = "gesture_lock_config.txt"

// Config holds all application configuration values.
type Config struct {
	// MQTT (empty broker disables the bridge)
	MQTTBroker          string
	MQTTClientIDLock    string
	MQTTClientIDConsole string

	// Topics
	TopicStatus  string
	TopicResult  string
	TopicCommand string

	// Gyro hardware
	GyroSPIDevice  string
	GyroSPISpeedHz int64
	GyroDRDYPin    string
	GyroODR        gyro.Rate
	GyroScale      gyro.Scale
	UseMockSensor  bool

	// Panel and buttons
	DisplayEnabled  bool
	DisplayI2CBus   string // "" selects the first bus; the panel answers at 0x3C
	ButtonRecordPin string
	ButtonUnlockPin string
	LampLockedPin   string
	LampUnlockedPin string

	// Timing, milliseconds
	RecordWindowMS     int
	SampleIntervalMS   int
	CalibrationDelayMS int
	PromptDelayMS      int
	TouchPollMS        int
	DebounceMS         int

	// Matching
	MatchStrategy  string // "correlation" or "dtw"
	MatchThreshold float64
	DTWMaxDistance float64

	// Reference persistence and session log
	PersistReference bool
	StorePath        string
	StoreAddress     uint32

	// Web server (0 disables)
	WebServerPort int
}

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		MQTTClientIDLock:    "gesture_lock",
		MQTTClientIDConsole: "gesture_console",
		TopicStatus:         "gesture_lock/status",
		TopicResult:         "gesture_lock/result",
		TopicCommand:        "gesture_lock/command",

		GyroSPIDevice:  "/dev/spidev0.0",
		GyroSPISpeedHz: 1_000_000,
		GyroDRDYPin:    "GPIO25",
		GyroODR:        gyro.ODR200Cutoff50,
		GyroScale:      gyro.Scale500DPS,

		ButtonRecordPin: "GPIO17",
		ButtonUnlockPin: "GPIO27",
		LampLockedPin:   "GPIO22",
		LampUnlockedPin: "GPIO23",

		RecordWindowMS:     5000,
		SampleIntervalMS:   50,
		CalibrationDelayMS: 10,
		PromptDelayMS:      1000,
		TouchPollMS:        10,
		DebounceMS:         1000,

		MatchStrategy:  "correlation",
		MatchThreshold: 0.3,

		StorePath:    "gesture_lock.db",
		StoreAddress: 0x08040000,

		WebServerPort: 8080,
	}
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines from r on top of Default.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

func parseMillis(key, value string) (int, error) {
	ms, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if ms < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, value)
	}
	return ms, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID", "MQTT_CLIENT_ID_LOCK":
		c.MQTTClientIDLock = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_STATUS":
		c.TopicStatus = value
	case "TOPIC_RESULT":
		c.TopicResult = value
	case "TOPIC_COMMAND":
		c.TopicCommand = value

	// Gyro
	case "GYRO_SPI_DEVICE":
		c.GyroSPIDevice = value
	case "GYRO_SPI_SPEED_HZ":
		hz, err := strconv.ParseInt(value, 10, 64)
		if err != nil || hz <= 0 {
			return fmt.Errorf("invalid GYRO_SPI_SPEED_HZ %q", value)
		}
		c.GyroSPISpeedHz = hz
	case "GYRO_DRDY_PIN":
		c.GyroDRDYPin = value
	case "GYRO_ODR":
		if c.GyroODR, err = gyro.ParseRate(value); err != nil {
			return fmt.Errorf("invalid GYRO_ODR %q: %w", value, err)
		}
	case "GYRO_SCALE":
		dps, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GYRO_SCALE %q: %w", value, err)
		}
		if c.GyroScale, err = gyro.ParseScale(dps); err != nil {
			return fmt.Errorf("invalid GYRO_SCALE %q: %w", value, err)
		}
	case "USE_MOCK_SENSOR":
		c.UseMockSensor, err = parseBool(key, value)

	// Panel and buttons
	case "DISPLAY_ENABLED":
		c.DisplayEnabled, err = parseBool(key, value)
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "BUTTON_RECORD_PIN":
		c.ButtonRecordPin = value
	case "BUTTON_UNLOCK_PIN":
		c.ButtonUnlockPin = value
	case "LAMP_LOCKED_PIN":
		c.LampLockedPin = value
	case "LAMP_UNLOCKED_PIN":
		c.LampUnlockedPin = value

	// Timing
	case "RECORD_WINDOW_MS":
		c.RecordWindowMS, err = parseMillis(key, value)
	case "SAMPLE_INTERVAL_MS":
		c.SampleIntervalMS, err = parseMillis(key, value)
	case "CALIBRATION_DELAY_MS":
		c.CalibrationDelayMS, err = parseMillis(key, value)
	case "PROMPT_DELAY_MS":
		c.PromptDelayMS, err = parseMillis(key, value)
	case "TOUCH_POLL_MS":
		c.TouchPollMS, err = parseMillis(key, value)
	case "DEBOUNCE_MS":
		c.DebounceMS, err = parseMillis(key, value)

	// Matching
	case "MATCH_STRATEGY":
		c.MatchStrategy = strings.ToLower(value)
	case "MATCH_THRESHOLD":
		t, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid MATCH_THRESHOLD %q: %w", value, err)
		}
		c.MatchThreshold = t
	case "DTW_MAX_DISTANCE":
		d, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid DTW_MAX_DISTANCE %q: %w", value, err)
		}
		c.DTWMaxDistance = d

	// Persistence
	case "PERSIST_REFERENCE":
		c.PersistReference, err = parseBool(key, value)
	case "STORE_PATH":
		c.StorePath = value
	case "STORE_ADDRESS":
		addr, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return fmt.Errorf("invalid STORE_ADDRESS %q: %w", value, err)
		}
		c.StoreAddress = uint32(addr)

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks cross-field constraints.
func (c *Config) validate() error {
	if !c.UseMockSensor {
		if c.GyroSPIDevice == "" {
			return fmt.Errorf("GYRO_SPI_DEVICE is required unless USE_MOCK_SENSOR=true")
		}
		if c.GyroDRDYPin == "" {
			return fmt.Errorf("GYRO_DRDY_PIN is required unless USE_MOCK_SENSOR=true")
		}
	}
	if c.RecordWindowMS == 0 {
		return fmt.Errorf("RECORD_WINDOW_MS must be positive")
	}
	if c.TouchPollMS == 0 {
		return fmt.Errorf("TOUCH_POLL_MS must be positive")
	}
	switch c.MatchStrategy {
	case "correlation":
		if c.MatchThreshold < -1 || c.MatchThreshold >= 1 {
			return fmt.Errorf("MATCH_THRESHOLD must be in [-1, 1), got %v", c.MatchThreshold)
		}
	case "dtw":
		if c.DTWMaxDistance <= 0 {
			return fmt.Errorf("DTW_MAX_DISTANCE must be positive when MATCH_STRATEGY=dtw")
		}
	default:
		return fmt.Errorf("unknown MATCH_STRATEGY %q", c.MatchStrategy)
	}
	if c.PersistReference && c.StorePath == "" {
		return fmt.Errorf("STORE_PATH is required when PERSIST_REFERENCE=true")
	}
	if c.WebServerPort < 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT out of range: %d", c.WebServerPort)
	}
	return nil
}

// RecordWindow is the length of one capture.
func (c *Config) RecordWindow() time.Duration {
	return time.Duration(c.RecordWindowMS) * time.Millisecond
}

// SampleInterval is the pause after each captured sample.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.SampleIntervalMS) * time.Millisecond
}

// CalibrationDelay is the pause between calibration readings. Zero disables it.
func (c *Config) CalibrationDelay() time.Duration {
	if c.CalibrationDelayMS == 0 {
		return -1
	}
	return time.Duration(c.CalibrationDelayMS) * time.Millisecond
}

func (c *Config) PromptDelay() time.Duration {
	return time.Duration(c.PromptDelayMS) * time.Millisecond
}

func (c *Config) TouchPoll() time.Duration {
	return time.Duration(c.TouchPollMS) * time.Millisecond
}

func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
