package gpu

import (
	"go.uber.org/zap"
)

// Platform is a vendor runtime grouping devices.
type Platform interface {
	Name() string
	Devices() ([]Device, error)
}

// PlatformSource lists the compute platforms installed on the host.
type PlatformSource interface {
	Platforms() ([]Platform, error)
}

// ListDevices flattens every device of every platform into one ordered list.
// There is no filtering by device type and no deduplication. A platform that
// fails to report devices contributes none; it does not stop the walk.
func ListDevices(src PlatformSource, logger *zap.Logger) []Device {
	platforms, err := src.Platforms()
	if err != nil {
		logger.Warn("failed to list compute platforms", zap.Error(err))
		return nil
	}

	var devices []Device
	for _, platform := range platforms {
		found, err := platform.Devices()
		if err != nil {
			logger.Warn("failed to list platform devices",
				zap.String("platform", platform.Name()),
				zap.Error(err))
			continue
		}
		logger.Debug("platform enumerated",
			zap.String("platform", platform.Name()),
			zap.Int("devices", len(found)))
		devices = append(devices, found...)
	}
	return devices
}

// Enumerate runs fn once for every (platform, device) pair, in enumeration
// order. Each call completes before the next starts.
func Enumerate(src PlatformSource, logger *zap.Logger, fn func(Device)) int {
	devices := ListDevices(src, logger)
	for _, dev := range devices {
		fn(dev)
	}
	return len(devices)
}
