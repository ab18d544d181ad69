package main

import "fmt"

// ServiceError carries service and operation context for a failure.
type ServiceError struct {
	Service   string
	Operation string
	Err       error
}

// Error formats as [Service.Operation] message.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("[%s.%s] %v", e.Service, e.Operation, e.Err)
}

// Unwrap supports errors.Is / errors.As chains.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WrapError creates a service-context error. Returns nil when err is nil.
func WrapError(service, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Service: service, Operation: operation, Err: err}
}
