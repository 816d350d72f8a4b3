// Package netaddr resolves the bind and display forms of a server
// address: a server binds to all interfaces but its own log and status
// output should show a reachable loopback address, and the port is
// omitted when it is the protocol's default.
package netaddr

import "fmt"

// BindHost is always used for listening.
const BindHost = "0.0.0.0"

// DisplayHost is shown to operators in place of BindHost.
const DisplayHost = "127.0.0.1"

// Bind returns the host:port a listener should bind to.
func Bind(port int) string {
	return fmt.Sprintf("%s:%d", BindHost, port)
}

// Display returns the host[:port] an operator should be told to use,
// omitting the port when it equals defaultPort.
func Display(port, defaultPort int, https bool) string {
	scheme := "http"
	if https {
		scheme = "https"
	}
	if port == defaultPort {
		return fmt.Sprintf("%s://%s", scheme, DisplayHost)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, DisplayHost, port)
}
