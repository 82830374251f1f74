//go:build !linux
// +build !linux

package mpu9150

import (
	"context"
	"errors"

	"go.viam.com/rdk/components/movementsensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
)

// NewMpu9150 is only supported on Linux.
func NewMpu9150(
	ctx context.Context,
	logger logging.Logger,
	name string,
	busName string,
	useAlternateI2CAddress bool,
) (movementsensor.MovementSensor, error) {
	return nil, errors.New("mpu9150 only supported on linux")
}

func newMpu9150(
	ctx context.Context,
	_ resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (movementsensor.MovementSensor, error) {
	return nil, errors.New("mpu9150 only supported on linux")
}
