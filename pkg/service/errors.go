package service

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrInactiveService = errors.New("service is inactive")
var ErrServiceManagerNotFound = errors.New("systemctl not found, only systemd hosts are supported")

type NotFoundError struct {
	ServiceName string
}

func NewNotFoundError(serviceName string) *NotFoundError {
	return &NotFoundError{
		ServiceName: serviceName,
	}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("service %s not found", e.ServiceName)
}
