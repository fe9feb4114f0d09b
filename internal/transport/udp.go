// Package transport implements the resolver's outbound UDP request/
// response primitive: one query out, one datagram in, per-call
// ephemeral socket, fixed per-attempt deadline. No retries - the
// resolver decides whether to try another server.
package transport

import (
	"net"
	"strconv"
	"time"

	"github.com/dnsscience/resolverd/internal/pool"
)

// DefaultTimeout is the per-hop deadline used when a caller does not
// override it.
const DefaultTimeout = 3 * time.Second

// dnsPort is the well-known port every upstream server is contacted on.
const dnsPort = 53

// MaxDatagramSize bounds a single UDP read, matching the classic
// DNS/UDP datagram ceiling; larger replies are silently truncated by
// the kernel before they reach us.
const MaxDatagramSize = 512

// SendQuery sends query to serverIP:53 over a fresh UDP socket and
// waits up to timeout for a single reply. It returns the received
// datagram and the measured round-trip time, or ok=false if the
// attempt failed for any reason (timeout, unreachable host, socket
// error). The socket is closed on every exit path.
func SendQuery(serverIP string, query []byte, timeout time.Duration) (response []byte, rtt time.Duration, ok bool) {
	return sendQueryTo(serverIP, dnsPort, query, timeout)
}

func sendQueryTo(host string, port int, query []byte, timeout time.Duration) (response []byte, rtt time.Duration, ok bool) {
	conn, err := net.Dial("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, 0, false
	}
	defer conn.Close()

	start := time.Now()
	if err := conn.SetDeadline(start.Add(timeout)); err != nil {
		return nil, 0, false
	}

	if _, err := conn.Write(query); err != nil {
		return nil, 0, false
	}

	buf := pool.GetDatagramBuffer()
	defer pool.PutDatagramBuffer(buf)

	n, err := conn.Read(buf)
	elapsed := time.Since(start)
	if err != nil {
		return nil, 0, false
	}

	out := make([]byte, n)
	copy(out, buf[:n])
	return out, elapsed, true
}
