package main

import (
    "flag"
    "os"
    "strconv"
    "time"

    "github.com/golang/glog"
    "gopkg.in/yaml.v3"

    "github.com/camelinx/netperfd/internal/engine"
)

var (
    version string

    server = flag.Bool( "server", false, "Run in server mode" )
    client = flag.String( "client", "", "Run in client mode, connecting to the given host" )

    bindHost = flag.String( "bind", "", "Local address to bind (server) or source from (client)" )
    port     = flag.Int( "port", 5001, "Port to listen on / connect to" )

    udp = flag.Bool( "udp", false, "Use UDP rather than TCP" )

    parallel = flag.Int( "parallel", 1, "Number of parallel client flows" )

    bufLen    = flag.Int( "len", 0, "I/O buffer size, bytes (0 selects the transport default)" )
    tcpWindow = flag.Int( "window", 0, "TCP window size, bytes" )
    mss       = flag.Int( "mss", 0, "TCP maximum segment size, bytes" )

    duration  = flag.Duration( "time", 10 * time.Second, "Test duration" )
    amount    = flag.String( "num", "", "Number of bytes to transfer instead of a duration, e.g. 100M" )

    interval = flag.Duration( "interval", 0, "Reporting interval; 0 disables periodic reports" )
    enhanced = flag.Bool( "enhanced", false, "Enable the enhanced report columns" )

    bitrate    = flag.String( "bandwidth", "1M", "Offered send rate, bits/sec (UDP) or pps with a trailing 'pps'" )

    dual     = flag.Bool( "dualtest", false, "Negotiate a concurrent reverse test" )
    tradeoff = flag.Bool( "tradeoff", false, "Negotiate a sequential reverse test" )
    reverse  = flag.Bool( "reverse", false, "Reverse the direction of the test" )
    bidir    = flag.Bool( "bidir", false, "Negotiate a bidirectional test" )

    tos          = flag.Int( "tos", 0, "IP_TOS value" )
    ttl          = flag.Int( "ttl", 0, "IP_TTL / multicast TTL value" )
    congestion   = flag.String( "congestion", "", "TCP_CONGESTION algorithm name" )
    bindDevice   = flag.String( "bind-device", "", "SO_BINDTODEVICE interface name" )
    fqPacingRate = flag.Uint( "fq-rate", 0, "SO_MAX_PACING_RATE, bytes/sec" )

    csvOutput   = flag.Bool( "csv", false, "Emit reports as CSV" )
    outputFile  = flag.String( "output", "", "Write reports to this file instead of stdout" )
    metricsAddr = flag.String( "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9110" )

    rxHistogram = flag.String( "rx-histogram", "", "Latency histogram spec: binwidth[u],bins,lo,hi" )

    isochFPS      = flag.Int( "isoch-fps", 0, "Isochronous frames per second; 0 disables isochronous mode" )
    isochMeanSize = flag.Int( "isoch-mean", 0, "Isochronous mean frame size, bytes" )
    isochVariance = flag.Float64( "isoch-variance", 0, "Isochronous frame size variance" )

    configFile = flag.String( "config-file", "", "Optional YAML file overlaying these settings" )
)

// yamlOverlay mirrors the subset of engine.Settings a --config-file may
// override; zero values are left for the flag/env layer to resolve.
type yamlOverlay struct {
    Server      *bool    `yaml:"server"`
    Client      *string  `yaml:"client"`
    Port        *int     `yaml:"port"`
    UDP         *bool    `yaml:"udp"`
    Parallel    *int     `yaml:"parallel"`
    Bandwidth   *string  `yaml:"bandwidth"`
    Duration    *string  `yaml:"time"`
    MetricsAddr *string  `yaml:"metrics_addr"`
}

func main( ) {
    flag.Parse( )

    if err := flag.Lookup( "logtostderr" ).Value.Set( "true" ); err != nil {
        glog.Fatalf( "Error setting logtostderr to true: %v", err )
    }

    glog.Infof( "Starting netperfd %v", version )

    overlay := loadOverlay( *configFile )

    settings := engine.NewSettings( )

    isServer := *server
    setupBool( &isServer, server, "NETPERFD_SERVER" )
    if overlay.Server != nil {
        isServer = *overlay.Server
    }
    if isServer {
        settings.Role = engine.RoleServer
    } else {
        settings.Role = engine.RoleClient
    }

    setupString( &settings.Host, client, "NETPERFD_CLIENT" )
    if overlay.Client != nil && len( settings.Host ) == 0 {
        settings.Host = *overlay.Client
    }
    if settings.Role == engine.RoleClient && len( settings.Host ) == 0 {
        glog.Fatalf( "Client mode requires -client <host>" )
    }

    setupString( &settings.BindHost, bindHost, "NETPERFD_BIND" )
    setupInt( &settings.Port, port, "NETPERFD_PORT" )
    if overlay.Port != nil {
        settings.Port = *overlay.Port
    }

    isUDP := *udp
    setupBool( &isUDP, udp, "NETPERFD_UDP" )
    if overlay.UDP != nil {
        isUDP = *overlay.UDP
    }
    if isUDP {
        settings.Transport = engine.TransportUDP
    } else {
        settings.Transport = engine.TransportTCP
    }

    setupInt( &settings.Threads, parallel, "NETPERFD_PARALLEL" )
    if overlay.Parallel != nil {
        settings.Threads = *overlay.Parallel
    }

    if *bufLen > 0 {
        settings.BufLen = *bufLen
    } else if settings.Transport == engine.TransportUDP {
        settings.BufLen = 1470
    }

    setupInt( &settings.TCPWindow, tcpWindow, "NETPERFD_WINDOW" )
    setupInt( &settings.MSS, mss, "NETPERFD_MSS" )

    setupDuration( &settings.Duration, duration, "NETPERFD_TIME" )
    if overlay.Duration != nil {
        if d, err := time.ParseDuration( *overlay.Duration ); err == nil {
            settings.Duration = d
        }
    }
    if len( *amount ) > 0 {
        if n, err := parseByteCount( *amount ); err == nil {
            settings.ByteLimit = n
            settings.Duration = 0
        }
    }

    setupDuration( &settings.IntervalLength, interval, "NETPERFD_INTERVAL" )
    setupBool( &settings.Enhanced, enhanced, "NETPERFD_ENHANCED" )
    if settings.IntervalLength > 0 && settings.IntervalLength < 500 * time.Millisecond {
        settings.Enhanced = true
    }

    rateStr := *bitrate
    if overlay.Bandwidth != nil {
        rateStr = *overlay.Bandwidth
    }
    if rate, pps, err := parseRate( rateStr ); err == nil {
        settings.OfferedRate = rate
        settings.OfferedRatePPS = pps
    }

    setupBool( &settings.Dual, dual, "NETPERFD_DUALTEST" )
    setupBool( &settings.TradeOff, tradeoff, "NETPERFD_TRADEOFF" )
    setupBool( &settings.Reverse, reverse, "NETPERFD_REVERSE" )
    setupBool( &settings.Bidir, bidir, "NETPERFD_BIDIR" )

    setupInt( &settings.TOS, tos, "NETPERFD_TOS" )
    setupInt( &settings.TTL, ttl, "NETPERFD_TTL" )
    setupString( &settings.CongAlgo, congestion, "NETPERFD_CONGESTION" )
    setupString( &settings.BindDevice, bindDevice, "NETPERFD_BIND_DEVICE" )
    settings.FQPacingRate = uint32( *fqPacingRate )

    setupBool( &settings.CSVOutput, csvOutput, "NETPERFD_CSV" )
    setupString( &settings.OutputFile, outputFile, "NETPERFD_OUTPUT" )

    setupString( &settings.MetricsAddr, metricsAddr, "NETPERFD_METRICS_ADDR" )
    if overlay.MetricsAddr != nil && len( settings.MetricsAddr ) == 0 {
        settings.MetricsAddr = *overlay.MetricsAddr
    }

    setupString( &settings.RxHistogramSpec, rxHistogram, "NETPERFD_RX_HISTOGRAM" )

    setupInt( &settings.IsochFPS, isochFPS, "NETPERFD_ISOCH_FPS" )
    setupInt( &settings.IsochMeanSize, isochMeanSize, "NETPERFD_ISOCH_MEAN" )

    if *isochVariance > 0 {
        settings.IsochVariance = *isochVariance
    }

    glog.Infof( "Starting netperfd with settings %+v", settings )
    os.Exit( engine.Run( settings ) )
}

func loadOverlay( path string )( yamlOverlay ) {
    var overlay yamlOverlay
    if len( path ) == 0 {
        return overlay
    }

    data, err := os.ReadFile( path )
    if err != nil {
        glog.Errorf( "config-file: read %s: %v", path, err )
        return overlay
    }

    if err := yaml.Unmarshal( data, &overlay ); err != nil {
        glog.Errorf( "config-file: parse %s: %v", path, err )
    }
    return overlay
}

func parseByteCount( s string )( int64, error ) {
    if len( s ) == 0 {
        return 0, strconv.ErrSyntax
    }

    mult := int64( 1 )
    switch s[ len( s )-1 ] {
        case 'k', 'K':
            mult = 1 << 10
            s = s[ :len( s )-1 ]
        case 'm', 'M':
            mult = 1 << 20
            s = s[ :len( s )-1 ]
        case 'g', 'G':
            mult = 1 << 30
            s = s[ :len( s )-1 ]
    }

    n, err := strconv.ParseInt( s, 10, 64 )
    if err != nil {
        return 0, err
    }
    return n * mult, nil
}

func parseRate( s string )( int64, bool, error ) {
    pps := false
    if len( s ) > 3 && s[ len( s )-3: ] == "pps" {
        pps = true
        s = s[ :len( s )-3 ]
    }

    n, err := parseByteCount( s )
    return n, pps, err
}

func setupString( field, arg *string, envVar string ) {
    if envVal := os.Getenv( envVar ); len( envVal ) > 0 {
        *field = envVal
        return
    }
    if arg != nil && len( *arg ) > 0 {
        *field = *arg
    }
}

func setupBool( field, arg *bool, envVar string ) {
    if envVal := os.Getenv( envVar ); len( envVal ) > 0 {
        if boolVal, err := strconv.ParseBool( envVal ); err == nil {
            *field = boolVal
            return
        }
    }
    if arg != nil {
        *field = *arg
    }
}

func setupInt( field, arg *int, envVar string ) {
    if envVal := os.Getenv( envVar ); len( envVal ) > 0 {
        if intVal, err := strconv.ParseInt( envVal, 10, 32 ); err == nil {
            *field = int( intVal )
            return
        }
    }
    if arg != nil {
        *field = *arg
    }
}

func setupDuration( field *time.Duration, arg *time.Duration, envVar string ) {
    if envVal := os.Getenv( envVar ); len( envVal ) > 0 {
        if durVal, err := time.ParseDuration( envVal ); err == nil {
            *field = durVal
            return
        }
    }
    if arg != nil {
        *field = *arg
    }
}
