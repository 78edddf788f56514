package grpc

import (
	"strings"

	"github.com/pkg/errors"
)

const healthServicePrefix = "/grpc.health.v1.Health/"

var errInvalidMethodName = errors.New("invalid full method name")

// MethodName is a parsed "/package.Service/Method" string.
type MethodName struct {
	Package string
	Service string
	Method  string
}

// ParseFullMethodName splits a gRPC full method name into its package,
// service and method parts. The package is required.
func ParseFullMethodName(fullMethodName string) (MethodName, error) {
	rest, ok := strings.CutPrefix(fullMethodName, "/")
	if !ok {
		return MethodName{}, errInvalidMethodName
	}

	qualifiedService, method, ok := strings.Cut(rest, "/")
	if !ok || !isIdentifier(method) {
		return MethodName{}, errInvalidMethodName
	}

	dot := strings.LastIndexByte(qualifiedService, '.')
	if dot < 0 {
		return MethodName{}, errInvalidMethodName
	}

	name := MethodName{
		Package: qualifiedService[:dot],
		Service: qualifiedService[dot+1:],
		Method:  method,
	}
	if !isIdentifier(name.Service) {
		return MethodName{}, errInvalidMethodName
	}
	for _, part := range strings.Split(name.Package, ".") {
		if !isIdentifier(part) {
			return MethodName{}, errInvalidMethodName
		}
	}
	return name, nil
}

// IsHealthCheckEndpoint reports whether the method belongs to the standard
// gRPC health service.
func IsHealthCheckEndpoint(fullMethodName string) bool {
	return strings.HasPrefix(fullMethodName, healthServicePrefix)
}

func isIdentifier(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
