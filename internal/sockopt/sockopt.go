// Package sockopt applies per-connection socket tuning: window size, TOS,
// TTL, congestion algorithm, device binding, and pacing rate (the -w -S
// -T -Z -B%dev CLI options). It generalizes a fixed
// QUICKACK/CORK/REUSEPORT setsockopt pattern into the broader option set
// this tool's connections need tuned.
package sockopt

import (
    "fmt"
    "net"
    "syscall"

    "github.com/golang/glog"
    "golang.org/x/sys/unix"
)

// Options is the resolved set of socket tunables a traffic thread asks
// its socket adapter to apply. A zero value of any field means "leave at
// the OS default".
type Options struct {
    WindowSize  int
    TOS         int
    TTL         int
    CongAlgo    string
    BindDevice  string
    McastTTL    int
    FQPacingRate uint32
}

// rawConner is satisfied by *net.TCPConn, *net.UDPConn and their
// PacketConn counterparts; it is the minimal surface sockopt needs.
type rawConner interface {
    SyscallConn( )( syscall.RawConn, error )
}

// Apply tunes conn per opts. Every individual setsockopt failure is
// logged as a warning and the remaining options are still attempted,
// never returned as a fatal error.
func Apply( conn rawConner, opts Options )( error ) {
    rc, err := conn.SyscallConn( )
    if err != nil {
        return fmt.Errorf( "sockopt: SyscallConn: %w", err )
    }

    ctrlErr := rc.Control( func( fd uintptr ) {
        applyWindow( fd, opts.WindowSize )
        applyTOS( fd, opts.TOS )
        applyTTL( fd, opts.TTL, opts.McastTTL )
        applyCongestion( fd, opts.CongAlgo )
        applyBindDevice( fd, opts.BindDevice )
        applyPacing( fd, opts.FQPacingRate )
    } )

    if ctrlErr != nil {
        return fmt.Errorf( "sockopt: Control: %w", ctrlErr )
    }

    return nil
}

func applyWindow( fd uintptr, size int ) {
    if size <= 0 {
        return
    }

    if err := unix.SetsockoptInt( int( fd ), unix.SOL_SOCKET, unix.SO_SNDBUF, size ); err != nil {
        glog.Errorf( "sockopt: SO_SNDBUF %d: %v", size, err )
    }
    if err := unix.SetsockoptInt( int( fd ), unix.SOL_SOCKET, unix.SO_RCVBUF, size ); err != nil {
        glog.Errorf( "sockopt: SO_RCVBUF %d: %v", size, err )
    }
}

func applyTOS( fd uintptr, tos int ) {
    if tos == 0 {
        return
    }

    if err := unix.SetsockoptInt( int( fd ), unix.IPPROTO_IP, unix.IP_TOS, tos ); err != nil {
        glog.Errorf( "sockopt: IP_TOS %d: %v", tos, err )
    }
}

func applyTTL( fd uintptr, ttl, mcastTTL int ) {
    if ttl > 0 {
        if err := unix.SetsockoptInt( int( fd ), unix.IPPROTO_IP, unix.IP_TTL, ttl ); err != nil {
            glog.Errorf( "sockopt: IP_TTL %d: %v", ttl, err )
        }
    }

    if mcastTTL > 0 {
        if err := unix.SetsockoptInt( int( fd ), unix.IPPROTO_IP, unix.IP_MULTICAST_TTL, mcastTTL ); err != nil {
            glog.Errorf( "sockopt: IP_MULTICAST_TTL %d: %v", mcastTTL, err )
        }
    }
}

func applyCongestion( fd uintptr, algo string ) {
    if len( algo ) == 0 {
        return
    }

    if err := unix.SetsockoptString( int( fd ), unix.SOL_TCP, unix.TCP_CONGESTION, algo ); err != nil {
        glog.Errorf( "sockopt: TCP_CONGESTION %q: %v", algo, err )
    }
}

func applyBindDevice( fd uintptr, dev string ) {
    if len( dev ) == 0 {
        return
    }

    if err := unix.BindToDevice( int( fd ), dev ); err != nil {
        glog.Errorf( "sockopt: SO_BINDTODEVICE %q: %v", dev, err )
    }
}

func applyPacing( fd uintptr, rate uint32 ) {
    if rate == 0 {
        return
    }

    if err := unix.SetsockoptUint64( int( fd ), unix.SOL_SOCKET, unix.SO_MAX_PACING_RATE, uint64( rate ) ); err != nil {
        glog.Errorf( "sockopt: SO_MAX_PACING_RATE %d: %v", rate, err )
    }
}

// ReuseAddrAndPort is the net.ListenConfig.Control callback that sets
// SO_REUSEADDR and SO_REUSEPORT on a listening socket before bind, the
// same pattern as reuseport.go's Control - used by the server role to
// survive a quick restart without waiting out TIME_WAIT.
func ReuseAddrAndPort( network, address string, c syscall.RawConn )( error ) {
    var setErr error

    ctrlErr := c.Control( func( fd uintptr ) {
        if err := unix.SetsockoptInt( int( fd ), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1 ); err != nil {
            setErr = err
            return
        }
        if err := unix.SetsockoptInt( int( fd ), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1 ); err != nil {
            setErr = err
            return
        }
    } )

    if ctrlErr != nil {
        return ctrlErr
    }
    return setErr
}

// ListenConfig is a net.ListenConfig preconfigured with ReuseAddrAndPort,
// for servers that bind TCP/UDP listeners.
var ListenConfig = net.ListenConfig{ Control: ReuseAddrAndPort }
