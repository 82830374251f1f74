// Package mpu9150 is only implemented for Linux systems.
package mpu9150

import (
	"github.com/pkg/errors"
	"go.viam.com/rdk/components/movementsensor"
	"go.viam.com/rdk/resource"
)

// Model for viam supported tdk-invensense mpu9150 movement sensor.
var Model = resource.NewModel("viam", "tdk-invensense", "mpu9150")

// Config is used to configure the attributes of the chip. Everything but the
// bus name is optional; zero values fall back to the power-on defaults
// (16 g, 2000 dps, 184 Hz, divider 0, fused magnetometer).
type Config struct {
	I2cBus                 string `json:"i2c_bus"`
	UseAlternateI2CAddress bool   `json:"use_alt_i2c_address,omitempty"`
	MagPassthrough         bool   `json:"mag_passthrough,omitempty"`
	AccelRangeG            int    `json:"accel_range_g,omitempty"`
	GyroRangeDPS           int    `json:"gyro_range_dps,omitempty"`
	LowPassBandwidthHz     int    `json:"lpf_bandwidth_hz,omitempty"`
	SampleRateDivider      int    `json:"sample_rate_divider,omitempty"`
}

// Validate ensures all parts of the config are valid, and then returns the
// list of things we depend on.
func (conf *Config) Validate(path string) ([]string, error) {
	if conf.I2cBus == "" {
		return nil, resource.NewConfigValidationFieldRequiredError(path, "i2c_bus")
	}
	if _, err := conf.accelRange(); err != nil {
		return nil, resource.NewConfigValidationError(path, err)
	}
	if _, err := conf.gyroRange(); err != nil {
		return nil, resource.NewConfigValidationError(path, err)
	}
	if _, err := conf.bandwidth(); err != nil {
		return nil, resource.NewConfigValidationError(path, err)
	}
	if conf.SampleRateDivider < 0 || conf.SampleRateDivider > 255 {
		return nil, resource.NewConfigValidationError(path,
			errors.Errorf("sample_rate_divider must be 0-255, got %d", conf.SampleRateDivider))
	}

	var deps []string
	return deps, nil
}

func (conf *Config) accelRange() (AccelRange, error) {
	switch conf.AccelRangeG {
	case 0, 16:
		return AccelRange16G, nil
	case 2:
		return AccelRange2G, nil
	case 4:
		return AccelRange4G, nil
	case 8:
		return AccelRange8G, nil
	default:
		return 0, errors.Errorf("accel_range_g must be 2, 4, 8 or 16, got %d", conf.AccelRangeG)
	}
}

func (conf *Config) gyroRange() (GyroRange, error) {
	switch conf.GyroRangeDPS {
	case 0, 2000:
		return GyroRange2000DPS, nil
	case 250:
		return GyroRange250DPS, nil
	case 500:
		return GyroRange500DPS, nil
	case 1000:
		return GyroRange1000DPS, nil
	default:
		return 0, errors.Errorf("gyro_range_dps must be 250, 500, 1000 or 2000, got %d", conf.GyroRangeDPS)
	}
}

func (conf *Config) bandwidth() (Bandwidth, error) {
	switch conf.LowPassBandwidthHz {
	case 0, 184:
		return Bandwidth184Hz, nil
	case 92:
		return Bandwidth92Hz, nil
	case 41:
		return Bandwidth41Hz, nil
	case 20:
		return Bandwidth20Hz, nil
	case 10:
		return Bandwidth10Hz, nil
	case 5:
		return Bandwidth5Hz, nil
	default:
		return 0, errors.Errorf("lpf_bandwidth_hz must be 5, 10, 20, 41, 92 or 184, got %d",
			conf.LowPassBandwidthHz)
	}
}

func (conf *Config) magMode() MagMode {
	if conf.MagPassthrough {
		return MagPassthrough
	}
	return MagFused
}

func init() {
	resource.RegisterComponent(movementsensor.API, Model, resource.Registration[movementsensor.MovementSensor, *Config]{
		Constructor: newMpu9150,
	})
}
