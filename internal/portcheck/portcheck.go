// Package portcheck implements the server side of the checkport
// command: confirming whether a peer's advertised fileserver_port is
// actually reachable. It probes by listening on the port locally
// (the caller has usually just stopped its own listener, or is
// checking a port it does not yet own) and, on Linux, logs a debug
// snapshot of the checking process's own resource usage, the way src/minimega/proc.go in this module's teacher reports
// proc stats via the same library.
package portcheck

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	proc "github.com/c9s/goprocinfo/linux"

	"github.com/sandia-minimega/zeromesh/internal/mlog"
)

// Result is the outcome of a single checkport probe.
type Result struct {
	Port uint16
	Open bool
	Err  error
}

// Check reports whether port can be bound on all interfaces within
// timeout. A successful bind means nothing else on the host is
// already listening there; it does not by itself prove the port is
// reachable from outside a NAT, which is the caller's responsibility
// to verify (e.g. by asking a peer to dial back).
func Check(port uint16, timeout time.Duration) Result {
	logProcSnapshot()

	addr := net.JoinHostPort("", strconv.Itoa(int(port)))
	lc := net.ListenConfig{}

	dctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ln, err := lc.Listen(dctx, "tcp", addr)
	if err != nil {
		return Result{Port: port, Open: false, Err: err}
	}
	ln.Close()
	return Result{Port: port, Open: true}
}

// logProcSnapshot logs a one-line resource snapshot of the current
// process, when /proc is available. It is a best-effort diagnostic,
// not part of the checkport result: goprocinfo's Linux-only readers
// simply return an error on other platforms, which we swallow.
func logProcSnapshot() {
	stat, err := proc.ReadProcessStat(fmt.Sprintf("/proc/%d/stat", os.Getpid()))
	if err != nil {
		return
	}
	mlog.Debug("portcheck: pid %d utime=%d stime=%d threads=%d", os.Getpid(), stat.Utime, stat.Stime, stat.NumThreads)
}
