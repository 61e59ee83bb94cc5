package packagemanager

import "fmt"

type UnsupportedDistributionError struct {
	distro string
}

func NewUnsupportedDistributionError(distro string) *UnsupportedDistributionError {
	return &UnsupportedDistributionError{
		distro: distro,
	}
}

func (e *UnsupportedDistributionError) Error() string {
	return fmt.Sprintf("unsupported distribution '%s'", e.distro)
}
