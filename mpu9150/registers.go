package mpu9150

import "math"

// Register addresses for the MPU-9150, from the register map at
// https://invensense.tdk.com/wp-content/uploads/2015/02/RM-MPU-9150A-00v4_2.pdf
const (
	regSampleRateDivider = 0x19
	regConfig            = 0x1A
	regGyroConfig        = 0x1B
	regAccelConfig       = 0x1C
	regAccelConfig2      = 0x1D
	regFifoEnable        = 0x23
	regIntPinConfig      = 0x37
	regIntEnable         = 0x38
	regIntStatus         = 0x3A
	regUserControl       = 0x6A
	regPowerManagement1  = 0x6B
	regFifoCountHigh     = 0x72
	regFifoReadWrite     = 0x74
	regWhoAmI            = 0x75
)

// Register values.
const (
	hardReset       = 0x80
	clockSelectPLL  = 0x01
	sleepBit        = 0x40
	whoAmIExpected  = 0x68
	i2cBypassEnable = 0x02
	intPulse50us    = 0x00
	intRawReadyEn   = 0x01
	intDisable      = 0x00
	rawDataReadyBit = 0x01
	fifoOverflowBit = 0x10
	fifoEnableBit   = 0x40
	fifoDisableAll  = 0x00
	fifoGyroSources = 0x70
	fifoAccelSource = 0x08
)

// AccelRange selects the accelerometer full-scale range. The values are the
// ACCEL_CONFIG register encodings.
type AccelRange byte

// Supported accelerometer full-scale ranges.
const (
	AccelRange2G  AccelRange = 0x00
	AccelRange4G  AccelRange = 0x08
	AccelRange8G  AccelRange = 0x10
	AccelRange16G AccelRange = 0x18
)

// GyroRange selects the gyroscope full-scale range. The values are the
// GYRO_CONFIG register encodings.
type GyroRange byte

// Supported gyroscope full-scale ranges.
const (
	GyroRange250DPS  GyroRange = 0x00
	GyroRange500DPS  GyroRange = 0x08
	GyroRange1000DPS GyroRange = 0x10
	GyroRange2000DPS GyroRange = 0x18
)

// Bandwidth selects the digital low-pass filter cutoff. The same selector is
// written to both the ACCEL_CONFIG2 and CONFIG registers.
type Bandwidth byte

// Supported low-pass filter bandwidths.
const (
	Bandwidth184Hz Bandwidth = 0x01
	Bandwidth92Hz  Bandwidth = 0x02
	Bandwidth41Hz  Bandwidth = 0x03
	Bandwidth20Hz  Bandwidth = 0x04
	Bandwidth10Hz  Bandwidth = 0x05
	Bandwidth5Hz   Bandwidth = 0x06
)

// MagMode selects how the onboard AK8975 magnetometer is reached. In
// pass-through mode the chip connects the magnetometer onto the host I2C bus;
// in fused mode the chip's internal I2C master owns it.
type MagMode int

// Magnetometer interconnect modes.
const (
	MagPassthrough MagMode = iota
	MagFused
)

// Conversion constants. Full-scale ranges map to counts-per-unit divisors over
// half the signed 16-bit span.
const (
	gravity          = 9.80665
	degToRad         = math.Pi / 180.0
	halfScaleCounts  = 32767.5
	tempCountsPerDeg = 340.0
)

// accelScaleFor returns the g-per-count scale for a valid range, or 0 for an
// out-of-enumeration value.
func accelScaleFor(r AccelRange) float64 {
	switch r {
	case AccelRange2G:
		return 2.0 / halfScaleCounts
	case AccelRange4G:
		return 4.0 / halfScaleCounts
	case AccelRange8G:
		return 8.0 / halfScaleCounts
	case AccelRange16G:
		return 16.0 / halfScaleCounts
	default:
		return 0
	}
}

// gyroScaleFor returns the dps-per-count scale for a valid range, or 0 for an
// out-of-enumeration value.
func gyroScaleFor(r GyroRange) float64 {
	switch r {
	case GyroRange250DPS:
		return 250.0 / halfScaleCounts
	case GyroRange500DPS:
		return 500.0 / halfScaleCounts
	case GyroRange1000DPS:
		return 1000.0 / halfScaleCounts
	case GyroRange2000DPS:
		return 2000.0 / halfScaleCounts
	default:
		return 0
	}
}

func validBandwidth(bw Bandwidth) bool {
	switch bw {
	case Bandwidth184Hz, Bandwidth92Hz, Bandwidth41Hz, Bandwidth20Hz, Bandwidth10Hz, Bandwidth5Hz:
		return true
	default:
		return false
	}
}
