//go:build !linux && !windows

package api

import "net"

// ReuseAddrListenConfig returns the default listen config.
func ReuseAddrListenConfig() net.ListenConfig {
	return net.ListenConfig{}
}
