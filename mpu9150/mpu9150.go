//go:build linux

// The MPU-9150 is a 9-axis motion tracking device combining a gyroscope, an
// accelerometer and an AK8975 magnetometer. A datasheet for this chip is at
// https://invensense.tdk.com/wp-content/uploads/2015/02/PS-MPU-9150A-01v4_3.pdf
// and a description of the I2C registers is at
// https://invensense.tdk.com/wp-content/uploads/2015/02/RM-MPU-9150A-00v4_2.pdf
//
// We support reading the accelerometer, gyroscope, and thermometer data off
// of the chip. We do not yet support reading the magnetometer; pass-through
// mode only connects it onto the host bus for other components to use.
//
// The chip has two possible I2C addresses, which can be selected by wiring
// the AD0 pin to either hot or ground:
//   - if AD0 is wired to ground, it uses the default I2C address of 0x68
//   - if AD0 is wired to hot, it uses the alternate I2C address of 0x69
//
// If you use the alternate address, your config file for this component must
// set its "use_alt_i2c_address" boolean to true.
package mpu9150

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	geo "github.com/kellydunn/golang-geo"
	"github.com/pkg/errors"
	"go.viam.com/rdk/components/board/genericlinux/buses"
	"go.viam.com/rdk/components/movementsensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"
	goutils "go.viam.com/utils"
)

const (
	expectedDefaultAddress = 0x68
	alternateAddress       = 0x69
)

type mpu9150 struct {
	resource.Named
	resource.AlwaysRebuild
	dev *Device
	mu  sync.Mutex

	// The 3 things we can measure: lock the mutex before reading or writing these.
	angularVelocity    spatialmath.AngularVelocity
	temperature        float64
	linearAcceleration r3.Vector
	// Stores the most recent error from the background goroutine
	err movementsensor.LastError

	workers *goutils.StoppableWorkers
	logger  logging.Logger
}

func initializationError(err error, address byte, bus string) error {
	msg := fmt.Sprintf("can't initialize MPU9150 at I2C address %d on bus %s", address, bus)
	return errors.Wrap(err, msg)
}

// newMpu9150 constructs a new Mpu9150 object.
func newMpu9150(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (movementsensor.MovementSensor, error) {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}

	bus, err := buses.NewI2cBus(newConf.I2cBus)
	if err != nil {
		return nil, err
	}
	return makeMpu9150(ctx, deps, conf, logger, bus)
}

// NewMpu9150 constructs the sensor outside of a robot, for local testing.
func NewMpu9150(
	ctx context.Context,
	logger logging.Logger,
	name string,
	busName string,
	useAlternateI2CAddress bool,
) (movementsensor.MovementSensor, error) {
	bus, err := buses.NewI2cBus(busName)
	if err != nil {
		return nil, err
	}
	conf := resource.Config{
		Name: name,
		API:  movementsensor.API,
		ConvertedAttributes: &Config{
			I2cBus:                 busName,
			UseAlternateI2CAddress: useAlternateI2CAddress,
		},
	}
	return makeMpu9150(ctx, nil, conf, logger, bus)
}

// This function is separated from newMpu9150 solely so you can inject a mock I2C bus in tests.
func makeMpu9150(
	ctx context.Context,
	_ resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
	bus buses.I2C,
) (movementsensor.MovementSensor, error) {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}

	var address byte
	if newConf.UseAlternateI2CAddress {
		address = alternateAddress
	} else {
		address = expectedDefaultAddress
	}
	logger.CDebugf(ctx, "Using address %d for MPU9150 sensor", address)

	sensor := &mpu9150{
		Named:  conf.ResourceName().AsNamed(),
		dev:    NewDevice(bus, address, logger),
		logger: logger,
		// On overloaded boards, the I2C bus can become flaky. Only report errors if at least 5 of
		// the last 10 attempts to talk to the device have failed.
		err: movementsensor.NewLastError(10, 5),
	}

	if err := sensor.dev.Initialize(ctx, newConf.magMode()); err != nil {
		return nil, initializationError(err, address, newConf.I2cBus)
	}
	if err := sensor.applyConfiguredTuning(ctx, newConf); err != nil {
		return nil, initializationError(err, address, newConf.I2cBus)
	}

	// Now, turn on the background goroutine that constantly reads from the chip and stores data in
	// the object we created.
	sensor.workers = goutils.NewBackgroundStoppableWorkers(func(cancelCtx context.Context) {
		// Reading data a thousand times per second is probably fast enough.
		timer := time.NewTicker(time.Millisecond)
		defer timer.Stop()

		for {
			select {
			case <-timer.C:
				sample, ready, err := sensor.dev.ReadSample(cancelCtx)
				// Record `err` no matter what: even if it's nil, that's useful information.
				sensor.err.Set(err)
				if err != nil {
					sensor.logger.CErrorf(cancelCtx, "error reading MPU9150 sensor: '%s'", err)
					continue
				}
				if !ready {
					continue
				}

				// Lock the mutex before modifying the state within the object. By keeping the mutex
				// unlocked for everything else, we maximize the time when another thread can read the
				// values.
				sensor.mu.Lock()
				sensor.linearAcceleration = sample.Accel
				sensor.temperature = sample.Temperature
				// rdk convention is degrees per second.
				sensor.angularVelocity = spatialmath.AngularVelocity{
					X: sample.Gyro.X / degToRad,
					Y: sample.Gyro.Y / degToRad,
					Z: sample.Gyro.Z / degToRad,
				}
				sensor.mu.Unlock()
			case <-cancelCtx.Done():
				return
			}
		}
	})

	return sensor, nil
}

// applyConfiguredTuning moves the chip off the power-on defaults for any
// tuning field set in the config. Validate already vetted the values, so a
// failure here is a bus failure.
func (sensor *mpu9150) applyConfiguredTuning(ctx context.Context, conf *Config) error {
	if conf.AccelRangeG != 0 {
		accelRange, err := conf.accelRange()
		if err != nil {
			return err
		}
		if err := sensor.dev.SetAccelRange(ctx, accelRange); err != nil {
			return err
		}
	}
	if conf.GyroRangeDPS != 0 {
		gyroRange, err := conf.gyroRange()
		if err != nil {
			return err
		}
		if err := sensor.dev.SetGyroRange(ctx, gyroRange); err != nil {
			return err
		}
	}
	if conf.LowPassBandwidthHz != 0 {
		bw, err := conf.bandwidth()
		if err != nil {
			return err
		}
		if err := sensor.dev.SetLowPassBandwidth(ctx, bw); err != nil {
			return err
		}
	}
	if conf.SampleRateDivider != 0 {
		if err := sensor.dev.SetSampleRateDivider(ctx, byte(conf.SampleRateDivider)); err != nil {
			return err
		}
	}
	return nil
}

func (sensor *mpu9150) AngularVelocity(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error) {
	sensor.mu.Lock()
	defer sensor.mu.Unlock()
	return sensor.angularVelocity, sensor.err.Get()
}

func (sensor *mpu9150) LinearVelocity(ctx context.Context, extra map[string]interface{}) (r3.Vector, error) {
	return r3.Vector{}, movementsensor.ErrMethodUnimplementedLinearVelocity
}

func (sensor *mpu9150) LinearAcceleration(ctx context.Context, extra map[string]interface{}) (r3.Vector, error) {
	sensor.mu.Lock()
	defer sensor.mu.Unlock()

	lastError := sensor.err.Get()
	if lastError != nil {
		return r3.Vector{}, lastError
	}
	return sensor.linearAcceleration, nil
}

func (sensor *mpu9150) Orientation(ctx context.Context, extra map[string]interface{}) (spatialmath.Orientation, error) {
	return spatialmath.NewOrientationVector(), movementsensor.ErrMethodUnimplementedOrientation
}

func (sensor *mpu9150) CompassHeading(ctx context.Context, extra map[string]interface{}) (float64, error) {
	return 0, movementsensor.ErrMethodUnimplementedCompassHeading
}

func (sensor *mpu9150) Position(ctx context.Context, extra map[string]interface{}) (*geo.Point, float64, error) {
	return geo.NewPoint(0, 0), 0, movementsensor.ErrMethodUnimplementedPosition
}

func (sensor *mpu9150) Accuracy(ctx context.Context, extra map[string]interface{}) (*movementsensor.Accuracy, error) {
	return movementsensor.UnimplementedOptionalAccuracies(), nil
}

func (sensor *mpu9150) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	sensor.mu.Lock()
	defer sensor.mu.Unlock()

	readings := make(map[string]interface{})
	readings["linear_acceleration"] = sensor.linearAcceleration
	readings["temperature_celsius"] = sensor.temperature
	readings["angular_velocity"] = sensor.angularVelocity

	return readings, sensor.err.Get()
}

func (sensor *mpu9150) Properties(ctx context.Context, extra map[string]interface{}) (*movementsensor.Properties, error) {
	return &movementsensor.Properties{
		AngularVelocitySupported:    true,
		LinearAccelerationSupported: true,
	}, nil
}

func (sensor *mpu9150) Close(ctx context.Context) error {
	sensor.workers.Stop()

	sensor.mu.Lock()
	defer sensor.mu.Unlock()
	// Put the chip back into standby.
	err := sensor.dev.Sleep(ctx)
	if err != nil {
		sensor.logger.CError(ctx, err)
	}
	return err
}
