package app

import "github.com/vk/chgresrun/internal/driver"

// coreDrivers is the definitive list of all drivers that are compiled into
// the chgresrun binary.
var coreDrivers = map[string]driver.Factory{
	driver.ChgresCubeName: driver.NewChgresCube,
}

// DefaultDrivers returns a registry holding every core driver.
func DefaultDrivers() *driver.Registry {
	reg := driver.NewRegistry()
	for name, factory := range coreDrivers {
		reg.Register(name, factory)
	}
	return reg
}
