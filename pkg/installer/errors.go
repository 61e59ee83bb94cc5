package installer

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var ErrUserAborted = errors.New("aborted by user")

type PrivilegeError struct {
	User   string
	Reason string
}

func NewPrivilegeError(user, reason string) *PrivilegeError {
	return &PrivilegeError{
		User:   user,
		Reason: reason,
	}
}

func (e *PrivilegeError) Error() string {
	return fmt.Sprintf("invalid privileges for user '%s': %s", e.User, e.Reason)
}

type PackageError struct {
	Packages []string
	Err      error
}

func NewPackageError(err error, packages ...string) *PackageError {
	return &PackageError{
		Packages: packages,
		Err:      err,
	}
}

func (e *PackageError) Error() string {
	if len(e.Packages) == 0 {
		return "package operation failed: " + e.Err.Error()
	}

	return fmt.Sprintf("failed to install packages %s: %s", strings.Join(e.Packages, ", "), e.Err)
}

func (e *PackageError) Unwrap() error {
	return e.Err
}

type FilesystemError struct {
	Path string
	Err  error
}

func NewFilesystemError(path string, err error) *FilesystemError {
	return &FilesystemError{
		Path: path,
		Err:  err,
	}
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("filesystem error at '%s': %s", e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// DependencyError is a failure to prepare the bot runtime environment.
type DependencyError struct {
	Err error
}

func NewDependencyError(err error) *DependencyError {
	return &DependencyError{
		Err: err,
	}
}

func (e *DependencyError) Error() string {
	return "failed to set up runtime environment: " + e.Err.Error()
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

type ServiceError struct {
	ServiceName string
	Err         error
}

func NewServiceError(serviceName string, err error) *ServiceError {
	return &ServiceError{
		ServiceName: serviceName,
		Err:         err,
	}
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("failed to register service '%s': %s", e.ServiceName, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// ServiceStartError means the service is registered but not running.
type ServiceStartError struct {
	ServiceName string
	State       string
	EnvFile     string
}

func NewServiceStartError(serviceName, state, envFile string) *ServiceStartError {
	return &ServiceStartError{
		ServiceName: serviceName,
		State:       state,
		EnvFile:     envFile,
	}
}

func (e *ServiceStartError) Error() string {
	return fmt.Sprintf("service '%s' is not running (state: %s)", e.ServiceName, e.State)
}

// Hints are the commands an operator should run to find the cause.
func (e *ServiceStartError) Hints() []string {
	return []string{
		"Check the logs: journalctl -u " + e.ServiceName + " -f",
		"Check the configuration: " + e.EnvFile,
		"Restart after fixing: sudo systemctl restart " + e.ServiceName,
	}
}
