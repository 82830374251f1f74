//go:build linux

package mpu9150

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/utils"
)

// FIFO records carry 6 bytes of accel followed by 6 bytes of gyro; no status
// byte and no temperature, unlike the single-sample frame.
const fifoRecordLen = 12

// The block read length on the bus is a uint8, so larger drains go out in
// chunks.
const maxBlockRead = 255

// DrainFifo polls the hardware FIFO and drains up to len(buf) bytes into
// buf, returning how many bytes were read. A zero fill level returns 0 with
// no error. When the FIFO holds more than len(buf) bytes the remainder stays
// queued for the next poll. Each call relatches the overflow flag from the
// interrupt status register; see FifoOverflowed.
func (d *Device) DrainFifo(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, errors.New("nil or empty FIFO drain buffer")
	}
	status, err := d.readByte(ctx, regIntStatus)
	if err != nil {
		return 0, errors.Wrap(err, "reading interrupt status")
	}
	d.fifoOverflowed = status&fifoOverflowBit != 0
	countBuf, err := d.readBlock(ctx, regFifoCountHigh, 2)
	if err != nil {
		return 0, errors.Wrap(err, "reading FIFO count")
	}
	if len(countBuf) < 2 {
		return 0, errors.Errorf("short FIFO count read: %d bytes", len(countBuf))
	}
	d.fifoCount = int(uint16(countBuf[0])<<8 | uint16(countBuf[1]))
	if d.fifoCount == 0 {
		return 0, nil
	}
	n := d.fifoCount
	if len(buf) < n {
		n = len(buf)
	}
	for read := 0; read < n; {
		chunk := n - read
		if chunk > maxBlockRead {
			chunk = maxBlockRead
		}
		data, err := d.readBlock(ctx, regFifoReadWrite, uint8(chunk))
		if err != nil {
			return 0, errors.Wrap(err, "reading FIFO data")
		}
		if len(data) < chunk {
			return 0, errors.Errorf("short FIFO data read: %d of %d bytes", len(data), chunk)
		}
		copy(buf[read:], data[:chunk])
		read += chunk
	}
	return n, nil
}

// DecodeFifoBatch decodes drained FIFO bytes into the parallel accel and
// gyro output slices, applying the same axis rotation and active scales as
// ReadSample. It returns the number of complete records decoded; a trailing
// partial record is dropped.
func (d *Device) DecodeFifoBatch(data []byte, accel, gyro []r3.Vector) (int, error) {
	if data == nil || accel == nil || gyro == nil {
		return 0, errors.New("nil FIFO decode argument")
	}
	n := len(data) / fifoRecordLen
	if len(accel) < n {
		n = len(accel)
	}
	if len(gyro) < n {
		n = len(gyro)
	}
	for i := 0; i < n; i++ {
		rec := data[i*fifoRecordLen : (i+1)*fifoRecordLen]
		ax := utils.Int16FromBytesBE(rec[0:2])
		ay := utils.Int16FromBytesBE(rec[2:4])
		az := utils.Int16FromBytesBE(rec[4:6])
		gx := utils.Int16FromBytesBE(rec[6:8])
		gy := utils.Int16FromBytesBE(rec[8:10])
		gz := utils.Int16FromBytesBE(rec[10:12])
		accel[i] = remap(ax, ay, az, d.accelScale*gravity)
		gyro[i] = remap(gx, gy, gz, d.gyroScale*degToRad)
	}
	return n, nil
}

// FifoOverflowed reports whether the last DrainFifo observed the overflow
// flag. It stays valid until the next poll.
func (d *Device) FifoOverflowed() bool { return d.fifoOverflowed }

// FifoCount returns the FIFO fill level in bytes observed by the last
// DrainFifo, before draining.
func (d *Device) FifoCount() int { return d.fifoCount }
