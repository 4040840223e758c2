package netutil

import (
	"context"
	"net"
	"strconv"
	"time"
)

// probeDialTimeout bounds a single connection attempt.
const probeDialTimeout = time.Second

// ProbeTCP reports whether something accepts TCP connections on host:port.
// A refused or timed-out connection is reported as (false, nil) so the
// result can drive a polling loop; only a canceled ctx is an error.
func ProbeTCP(ctx context.Context, host string, port int) (bool, error) {
	dialCtx, cancel := context.WithTimeout(ctx, probeDialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	_ = conn.Close()
	return true, nil
}
