package database

import (
	"strconv"
	"strings"

	"github.com/koustreak/empdb/internal/errs"
)

// Target is a parsed "//host[:port]/service" descriptor.
type Target struct {
	Host    string
	Port    int // 0 when the descriptor names none
	Service string
}

// ParseTarget splits a network target descriptor. The leading "//" is
// optional.
func ParseTarget(s string) (Target, error) {
	rest := strings.TrimPrefix(strings.TrimSpace(s), "//")

	hostPort, service, ok := strings.Cut(rest, "/")
	if !ok || hostPort == "" || service == "" {
		return Target{}, errs.Newf(errs.CodeConnErr, "target %q is not of the form //host[:port]/service", s)
	}

	t := Target{Host: hostPort, Service: service}
	if h, p, found := strings.Cut(hostPort, ":"); found {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Target{}, errs.Newf(errs.CodeConnErr, "target %q has an invalid port", s)
		}
		t.Host, t.Port = h, port
	}
	if t.Host == "" {
		return Target{}, errs.Newf(errs.CodeConnErr, "target %q has no host", s)
	}
	return t, nil
}

// PortOr returns the descriptor's port, or def when it named none.
func (t Target) PortOr(def int) int {
	if t.Port == 0 {
		return def
	}
	return t.Port
}
