//go:build linux

package mpu9150

import (
	"context"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/components/board/genericlinux/buses"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/utils"
	goutils "go.viam.com/utils"
)

// The single-sample frame starts at the interrupt status register:
// [status][6 bytes accel][2 bytes temp][6 bytes gyro], all 16-bit fields
// big-endian.
const sampleFrameLen = 15

// resetSettleDelay is how long the chip needs to come back up after a
// hardware reset.
const resetSettleDelay = 100 * time.Millisecond

// Sample is one decoded measurement in SI units, already rotated into the
// host output frame.
type Sample struct {
	Accel       r3.Vector // m/s²
	Gyro        r3.Vector // rad/s
	Temperature float64   // °C
}

// SensorUnitsSample is a decoded measurement in the chip's native units:
// acceleration in g and angular rate in degrees per second, with the same
// axis rotation as Sample. Its temperature uses the offset-referenced formula
// rather than Sample's absolute one; both forms are kept because existing
// consumers of the two read paths expect different conventions.
type SensorUnitsSample struct {
	Accel       r3.Vector // g
	Gyro        r3.Vector // deg/s
	Temperature float64   // °C
}

// RawSample holds the signed 16-bit counts exactly as they arrive on the
// bus: sensor axis order, no rotation, no scaling. Intended for diagnostics.
type RawSample struct {
	Accel       [3]int16
	Temperature int16
	Gyro        [3]int16
}

// Device drives an MPU-9150 over an I2C bus. It is synchronous and not safe
// for concurrent use; callers needing shared access must serialize around it.
type Device struct {
	bus        buses.I2C
	i2cAddress byte
	logger     logging.Logger

	settleDelay time.Duration

	magMode MagMode

	// Requested values are validated before the register write; the active
	// value and its derived scale only move once the write succeeds, so the
	// device never reports a configuration it did not apply.
	requestedAccelRange AccelRange
	requestedAccelScale float64
	accelRange          AccelRange
	accelScale          float64
	requestedGyroRange  GyroRange
	requestedGyroScale  float64
	gyroRange           GyroRange
	gyroScale           float64
	requestedBandwidth  Bandwidth
	bandwidth           Bandwidth
	srd                 byte

	// Most recent decoded sample; left untouched when a read reports no new
	// data.
	sample Sample

	fifoOverflowed bool
	fifoCount      int
}

// NewDevice wraps an I2C bus with an MPU-9150 driver. It does not touch the
// hardware; call Initialize before reading.
func NewDevice(bus buses.I2C, address byte, logger logging.Logger) *Device {
	return &Device{
		bus:         bus,
		i2cAddress:  address,
		logger:      logger,
		settleDelay: resetSettleDelay,
	}
}

func unexpectedDeviceError(address, whoAmI byte) error {
	return errors.Errorf("unexpected non-MPU9150 device at address %d: response '%d'",
		address, whoAmI)
}

// Initialize resets the chip and programs the power-on configuration. The
// steps run in dependency order and the first failing bus operation aborts
// the sequence; registers already written stay written, so the caller's only
// recovery is to Initialize again.
func (d *Device) Initialize(ctx context.Context, mode MagMode) error {
	d.magMode = mode
	if err := d.writeByte(ctx, regPowerManagement1, hardReset); err != nil {
		return errors.Wrap(err, "resetting device")
	}
	// Wait for the chip to come back up.
	if !goutils.SelectContextOrWait(ctx, d.settleDelay) {
		return ctx.Err()
	}
	// Select the gyro PLL as clock source.
	if err := d.writeByte(ctx, regPowerManagement1, clockSelectPLL); err != nil {
		return errors.Wrap(err, "selecting clock source")
	}
	whoAmI, err := d.readByte(ctx, regWhoAmI)
	if err != nil {
		return errors.Wrap(err, "reading WHO_AM_I")
	}
	if whoAmI != whoAmIExpected {
		return unexpectedDeviceError(d.i2cAddress, whoAmI)
	}
	if mode == MagPassthrough {
		// Connect the magnetometer onto the host bus.
		if err := d.writeByte(ctx, regIntPinConfig, i2cBypassEnable); err != nil {
			return errors.Wrap(err, "enabling magnetometer pass-through")
		}
	}
	// Reassert the clock source.
	if err := d.writeByte(ctx, regPowerManagement1, clockSelectPLL); err != nil {
		return errors.Wrap(err, "selecting clock source")
	}
	if err := d.SetAccelRange(ctx, AccelRange16G); err != nil {
		return err
	}
	if err := d.SetGyroRange(ctx, GyroRange2000DPS); err != nil {
		return err
	}
	if err := d.SetLowPassBandwidth(ctx, Bandwidth184Hz); err != nil {
		return err
	}
	return d.SetSampleRateDivider(ctx, 0)
}

// Sleep sets the sleep bit in the power management register, putting the
// chip back into standby.
func (d *Device) Sleep(ctx context.Context) error {
	return d.writeByte(ctx, regPowerManagement1, sleepBit)
}

// SetAccelRange selects the accelerometer full-scale range. An
// out-of-enumeration range is rejected before any bus traffic.
func (d *Device) SetAccelRange(ctx context.Context, r AccelRange) error {
	scale := accelScaleFor(r)
	if scale == 0 {
		return errors.Errorf("invalid accelerometer range 0x%02X", byte(r))
	}
	d.requestedAccelRange = r
	d.requestedAccelScale = scale
	if err := d.writeByte(ctx, regAccelConfig, byte(r)); err != nil {
		return errors.Wrap(err, "writing accelerometer range")
	}
	d.accelRange = d.requestedAccelRange
	d.accelScale = d.requestedAccelScale
	return nil
}

// SetGyroRange selects the gyroscope full-scale range. An out-of-enumeration
// range is rejected before any bus traffic.
func (d *Device) SetGyroRange(ctx context.Context, r GyroRange) error {
	scale := gyroScaleFor(r)
	if scale == 0 {
		return errors.Errorf("invalid gyroscope range 0x%02X", byte(r))
	}
	d.requestedGyroRange = r
	d.requestedGyroScale = scale
	if err := d.writeByte(ctx, regGyroConfig, byte(r)); err != nil {
		return errors.Wrap(err, "writing gyroscope range")
	}
	d.gyroRange = d.requestedGyroRange
	d.gyroScale = d.requestedGyroScale
	return nil
}

// SetLowPassBandwidth selects the digital low-pass filter cutoff. The chip
// keeps separate filter registers for the accelerometer and the gyro path;
// both get the same selector.
func (d *Device) SetLowPassBandwidth(ctx context.Context, bw Bandwidth) error {
	if !validBandwidth(bw) {
		return errors.Errorf("invalid low-pass bandwidth 0x%02X", byte(bw))
	}
	d.requestedBandwidth = bw
	if err := d.writeByte(ctx, regAccelConfig2, byte(bw)); err != nil {
		return errors.Wrap(err, "writing accelerometer filter bandwidth")
	}
	if err := d.writeByte(ctx, regConfig, byte(bw)); err != nil {
		return errors.Wrap(err, "writing gyro filter bandwidth")
	}
	d.bandwidth = d.requestedBandwidth
	return nil
}

// SetSampleRateDivider programs the sample-rate divider. Any byte is a valid
// divider.
func (d *Device) SetSampleRateDivider(ctx context.Context, srd byte) error {
	if err := d.writeByte(ctx, regSampleRateDivider, srd); err != nil {
		return errors.Wrap(err, "writing sample rate divider")
	}
	d.srd = srd
	return nil
}

// EnableDataReadyInterrupt raises the interrupt pin on each new sample. The
// pin configuration depends on the magnetometer mode: in pass-through the
// bypass bit has to stay set or the magnetometer drops off the host bus.
func (d *Device) EnableDataReadyInterrupt(ctx context.Context) error {
	pinCfg := byte(intPulse50us)
	if d.magMode == MagPassthrough {
		pinCfg |= i2cBypassEnable
	}
	if err := d.writeByte(ctx, regIntPinConfig, pinCfg); err != nil {
		return errors.Wrap(err, "writing interrupt pin config")
	}
	if err := d.writeByte(ctx, regIntEnable, intRawReadyEn); err != nil {
		return errors.Wrap(err, "enabling data ready interrupt")
	}
	return nil
}

// DisableDataReadyInterrupt turns the data ready interrupt off.
func (d *Device) DisableDataReadyInterrupt(ctx context.Context) error {
	if err := d.writeByte(ctx, regIntEnable, intDisable); err != nil {
		return errors.Wrap(err, "disabling data ready interrupt")
	}
	return nil
}

// EnableFifo turns on the hardware FIFO and routes gyro and accel samples
// into it.
func (d *Device) EnableFifo(ctx context.Context) error {
	if err := d.writeByte(ctx, regUserControl, fifoEnableBit); err != nil {
		return errors.Wrap(err, "enabling FIFO")
	}
	if err := d.writeByte(ctx, regFifoEnable, fifoGyroSources|fifoAccelSource); err != nil {
		return errors.Wrap(err, "selecting FIFO sources")
	}
	return nil
}

// DisableFifo turns the hardware FIFO off.
func (d *Device) DisableFifo(ctx context.Context) error {
	if err := d.writeByte(ctx, regUserControl, fifoDisableAll); err != nil {
		return errors.Wrap(err, "disabling FIFO")
	}
	if err := d.writeByte(ctx, regFifoEnable, fifoDisableAll); err != nil {
		return errors.Wrap(err, "deselecting FIFO sources")
	}
	return nil
}

// AccelRange returns the active accelerometer range.
func (d *Device) AccelRange() AccelRange { return d.accelRange }

// GyroRange returns the active gyroscope range.
func (d *Device) GyroRange() GyroRange { return d.gyroRange }

// AccelScale returns the active accelerometer scale in g per count.
func (d *Device) AccelScale() float64 { return d.accelScale }

// GyroScale returns the active gyroscope scale in deg/s per count.
func (d *Device) GyroScale() float64 { return d.gyroScale }

// LowPassBandwidth returns the active filter bandwidth selector.
func (d *Device) LowPassBandwidth() Bandwidth { return d.bandwidth }

// SampleRateDivider returns the active sample-rate divider.
func (d *Device) SampleRateDivider() byte { return d.srd }

// MagMode returns the magnetometer interconnect mode set at Initialize.
func (d *Device) MagMode() MagMode { return d.magMode }

// remap rotates a sensor-frame triple into the host frame and scales it:
// host X is the sensor Y axis, host Y the sensor X axis, host Z the negated
// sensor Z axis.
func remap(x, y, z int16, scale float64) r3.Vector {
	return r3.Vector{
		X: float64(y) * scale,
		Y: float64(x) * scale,
		Z: float64(z) * -scale,
	}
}

// readFrame fetches one sample frame and unpacks it, reporting whether the
// data ready bit was set.
func (d *Device) readFrame(ctx context.Context) (RawSample, bool, error) {
	var raw RawSample
	buf, err := d.readBlock(ctx, regIntStatus, sampleFrameLen)
	if err != nil {
		return raw, false, errors.Wrap(err, "reading sample frame")
	}
	if len(buf) < sampleFrameLen {
		return raw, false, errors.Errorf("short sample frame: %d bytes", len(buf))
	}
	if buf[0]&rawDataReadyBit == 0 {
		return raw, false, nil
	}
	raw.Accel[0] = utils.Int16FromBytesBE(buf[1:3])
	raw.Accel[1] = utils.Int16FromBytesBE(buf[3:5])
	raw.Accel[2] = utils.Int16FromBytesBE(buf[5:7])
	raw.Temperature = utils.Int16FromBytesBE(buf[7:9])
	raw.Gyro[0] = utils.Int16FromBytesBE(buf[9:11])
	raw.Gyro[1] = utils.Int16FromBytesBE(buf[11:13])
	raw.Gyro[2] = utils.Int16FromBytesBE(buf[13:15])
	return raw, true, nil
}

// ReadSample fetches and decodes one measurement in SI units. The second
// return value reports whether new data was ready; when it is false the
// previous decoded sample is returned unchanged.
func (d *Device) ReadSample(ctx context.Context) (Sample, bool, error) {
	raw, ready, err := d.readFrame(ctx)
	if err != nil || !ready {
		return d.sample, false, err
	}
	d.sample = Sample{
		Accel:       remap(raw.Accel[0], raw.Accel[1], raw.Accel[2], d.accelScale*gravity),
		Gyro:        remap(raw.Gyro[0], raw.Gyro[1], raw.Gyro[2], d.gyroScale*degToRad),
		Temperature: float64(raw.Temperature)/tempCountsPerDeg + 35.0,
	}
	return d.sample, true, nil
}

// ReadSampleSensorUnits fetches and decodes one measurement in g and deg/s.
// It shares the decode path with ReadSample but keeps its own unit and
// temperature conventions; see SensorUnitsSample.
func (d *Device) ReadSampleSensorUnits(ctx context.Context) (SensorUnitsSample, bool, error) {
	raw, ready, err := d.readFrame(ctx)
	if err != nil || !ready {
		s := SensorUnitsSample{
			Accel:       d.sample.Accel.Mul(1 / gravity),
			Gyro:        d.sample.Gyro.Mul(1 / degToRad),
			Temperature: d.sample.Temperature,
		}
		return s, false, err
	}
	temperature := (float64(raw.Temperature)-21.0)/tempCountsPerDeg + 21.0
	d.sample = Sample{
		Accel:       remap(raw.Accel[0], raw.Accel[1], raw.Accel[2], d.accelScale*gravity),
		Gyro:        remap(raw.Gyro[0], raw.Gyro[1], raw.Gyro[2], d.gyroScale*degToRad),
		Temperature: temperature,
	}
	s := SensorUnitsSample{
		Accel:       remap(raw.Accel[0], raw.Accel[1], raw.Accel[2], d.accelScale),
		Gyro:        remap(raw.Gyro[0], raw.Gyro[1], raw.Gyro[2], d.gyroScale),
		Temperature: temperature,
	}
	return s, true, nil
}

// ReadRawCounts fetches one measurement as signed counts in transport order.
// It bypasses scaling and axis rotation and leaves the decoded sample state
// alone.
func (d *Device) ReadRawCounts(ctx context.Context) (RawSample, bool, error) {
	return d.readFrame(ctx)
}

func (d *Device) readByte(ctx context.Context, register byte) (byte, error) {
	result, err := d.readBlock(ctx, register, 1)
	if err != nil {
		return 0, err
	}
	return result[0], err
}

func (d *Device) readBlock(ctx context.Context, register byte, length uint8) ([]byte, error) {
	handle, err := d.bus.OpenHandle(d.i2cAddress)
	if err != nil {
		return nil, err
	}
	defer func() {
		err := handle.Close()
		if err != nil {
			d.logger.CError(ctx, err)
		}
	}()

	results, err := handle.ReadBlockData(ctx, register, length)
	return results, err
}

func (d *Device) writeByte(ctx context.Context, register, value byte) error {
	handle, err := d.bus.OpenHandle(d.i2cAddress)
	if err != nil {
		return err
	}
	defer func() {
		err := handle.Close()
		if err != nil {
			d.logger.CError(ctx, err)
		}
	}()

	return handle.WriteByteData(ctx, register, value)
}
