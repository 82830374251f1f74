//go:build linux

package mpu9150

import (
	"bytes"
	"context"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func fifoCountBytes(count int) []byte {
	return []byte{byte(count >> 8), byte(count)}
}

// fifoRecord builds one 12-byte FIFO record with big-endian counts in
// transport order.
func fifoRecord(ax, ay, az, gx, gy, gz int16) []byte {
	var rec []byte
	for _, v := range []int16{ax, ay, az, gx, gy, gz} {
		hi, lo := be16(v)
		rec = append(rec, hi, lo)
	}
	return rec
}

func TestDrainFifoZeroCount(t *testing.T) {
	ctx := context.Background()
	dev, handle := newTestDevice(t)
	handle.blocks[regIntStatus] = [][]byte{{0x00}}
	handle.blocks[regFifoCountHigh] = [][]byte{fifoCountBytes(0)}

	buf := make([]byte, 64)
	n, err := dev.DrainFifo(ctx, buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 0)
	test.That(t, dev.FifoCount(), test.ShouldEqual, 0)
	// No data read was issued: just the status and count reads.
	test.That(t, handle.ops, test.ShouldEqual, 2)
}

func TestDrainFifoCapsAtBufferLength(t *testing.T) {
	ctx := context.Background()
	dev, handle := newTestDevice(t)
	handle.blocks[regIntStatus] = [][]byte{{0x00}}
	handle.blocks[regFifoCountHigh] = [][]byte{fifoCountBytes(100)}

	data := bytes.Repeat([]byte{0xAB}, 24)
	handle.blocks[regFifoReadWrite] = [][]byte{data}

	buf := make([]byte, 24)
	n, err := dev.DrainFifo(ctx, buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 24)
	test.That(t, buf, test.ShouldResemble, data)
	test.That(t, dev.FifoCount(), test.ShouldEqual, 100)
}

func TestDrainFifoReadsFullCount(t *testing.T) {
	ctx := context.Background()
	dev, handle := newTestDevice(t)
	handle.blocks[regIntStatus] = [][]byte{{0x00}}
	handle.blocks[regFifoCountHigh] = [][]byte{fifoCountBytes(36)}
	handle.blocks[regFifoReadWrite] = [][]byte{bytes.Repeat([]byte{0x11}, 36)}

	buf := make([]byte, 512)
	n, err := dev.DrainFifo(ctx, buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 36)
}

func TestDrainFifoChunksLargeDrains(t *testing.T) {
	ctx := context.Background()
	dev, handle := newTestDevice(t)
	handle.blocks[regIntStatus] = [][]byte{{0x00}}
	handle.blocks[regFifoCountHigh] = [][]byte{fifoCountBytes(600)}
	handle.blocks[regFifoReadWrite] = [][]byte{
		bytes.Repeat([]byte{0x01}, 255),
		bytes.Repeat([]byte{0x02}, 255),
		bytes.Repeat([]byte{0x03}, 90),
	}

	buf := make([]byte, 600)
	n, err := dev.DrainFifo(ctx, buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 600)
	test.That(t, buf[0], test.ShouldEqual, byte(0x01))
	test.That(t, buf[255], test.ShouldEqual, byte(0x02))
	test.That(t, buf[510], test.ShouldEqual, byte(0x03))
	// Status, count, and three chunked data reads.
	test.That(t, handle.ops, test.ShouldEqual, 5)
}

func TestDrainFifoOverflowLatch(t *testing.T) {
	ctx := context.Background()
	dev, handle := newTestDevice(t)
	handle.blocks[regIntStatus] = [][]byte{{fifoOverflowBit}, {0x00}}
	handle.blocks[regFifoCountHigh] = [][]byte{fifoCountBytes(0), fifoCountBytes(0)}

	buf := make([]byte, 64)
	_, err := dev.DrainFifo(ctx, buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dev.FifoOverflowed(), test.ShouldBeTrue)

	// The flag is sticky only until the next poll.
	_, err = dev.DrainFifo(ctx, buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dev.FifoOverflowed(), test.ShouldBeFalse)
}

func TestDrainFifoNilBuffer(t *testing.T) {
	ctx := context.Background()
	dev, handle := newTestDevice(t)

	_, err := dev.DrainFifo(ctx, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, handle.ops, test.ShouldEqual, 0)
}

func TestDrainFifoTransportFailure(t *testing.T) {
	ctx := context.Background()
	dev, handle := newTestDevice(t)
	handle.failAtOp = 2

	buf := make([]byte, 64)
	n, err := dev.DrainFifo(ctx, buf)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, n, test.ShouldEqual, 0)
}

func TestDecodeFifoBatch(t *testing.T) {
	ctx := context.Background()
	dev, _ := newTestDevice(t)
	test.That(t, dev.SetAccelRange(ctx, AccelRange4G), test.ShouldBeNil)
	test.That(t, dev.SetGyroRange(ctx, GyroRange500DPS), test.ShouldBeNil)

	var data []byte
	data = append(data, fifoRecord(100, 200, 300, -100, 50, 25)...)
	data = append(data, fifoRecord(-1, -2, -3, 1, 2, 3)...)

	accel := make([]r3.Vector, 4)
	gyro := make([]r3.Vector, 4)
	n, err := dev.DecodeFifoBatch(data, accel, gyro)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 2)

	accelScale := 4.0 / 32767.5
	gyroScale := 500.0 / 32767.5
	test.That(t, accel[0].X, test.ShouldAlmostEqual, 200*accelScale*gravity)
	test.That(t, accel[0].Y, test.ShouldAlmostEqual, 100*accelScale*gravity)
	test.That(t, accel[0].Z, test.ShouldAlmostEqual, -300*accelScale*gravity)
	test.That(t, gyro[0].X, test.ShouldAlmostEqual, 50*gyroScale*degToRad)
	test.That(t, gyro[0].Y, test.ShouldAlmostEqual, -100*gyroScale*degToRad)
	test.That(t, gyro[0].Z, test.ShouldAlmostEqual, -25*gyroScale*degToRad)
	test.That(t, accel[1].X, test.ShouldAlmostEqual, -2*accelScale*gravity)
	test.That(t, gyro[1].Z, test.ShouldAlmostEqual, -3*gyroScale*degToRad)
}

func TestDecodeFifoBatchDropsPartialRecord(t *testing.T) {
	dev, _ := newTestDevice(t)

	// 30 bytes is two complete records plus half a third.
	data := make([]byte, 30)
	accel := make([]r3.Vector, 8)
	gyro := make([]r3.Vector, 8)
	n, err := dev.DecodeFifoBatch(data, accel, gyro)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 2)
}

func TestDecodeFifoBatchCapsAtOutputLength(t *testing.T) {
	dev, _ := newTestDevice(t)

	data := make([]byte, 5*fifoRecordLen)
	accel := make([]r3.Vector, 3)
	gyro := make([]r3.Vector, 8)
	n, err := dev.DecodeFifoBatch(data, accel, gyro)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 3)
}

func TestDecodeFifoBatchNilArguments(t *testing.T) {
	dev, _ := newTestDevice(t)

	vectors := make([]r3.Vector, 1)
	_, err := dev.DecodeFifoBatch(nil, vectors, vectors)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = dev.DecodeFifoBatch([]byte{}, nil, vectors)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = dev.DecodeFifoBatch([]byte{}, vectors, nil)
	test.That(t, err, test.ShouldNotBeNil)
}
