package cli

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jeffh/vmfs/ninepl"
)

// ServerConfig is the shared flag surface for commands that export a
// directory. Zero value plus SetFlags gives a working server.
type ServerConfig struct {
	Root string

	Network string
	Addr    string

	MaxMsgSize uint

	PrintTraceMessages bool
	PrintErrorMessages bool

	PrintPrefix string
	NoColor     bool

	ReadTimeoutInSeconds  int
	WriteTimeoutInSeconds int

	Stdout io.Writer
	Stderr io.Writer
}

func (c *ServerConfig) SetFlags(f Flags) {
	if f == nil {
		f = &StdFlags{}
	}
	f.StringVar(&c.Root, "root", ".", "Directory subtree to export")
	f.StringVar(&c.Network, "net", "tcp", "Listener network: tcp, unix, or vsock")
	f.StringVar(&c.Addr, "addr", "localhost:6666", "Listen address (cid:port for vsock)")
	f.UintVar(&c.MaxMsgSize, "msize", 0, "Maximum message size in bytes (0 for default)")
	f.IntVar(&c.ReadTimeoutInSeconds, "rtimeout", 0, "Timeout in seconds for guest requests (0 disables)")
	f.IntVar(&c.WriteTimeoutInSeconds, "wtimeout", 0, "Timeout in seconds for replies (0 disables)")
	f.BoolVar(&c.PrintTraceMessages, "srv-trace", false, "Print per-message trace to stdout")
	f.BoolVar(&c.PrintErrorMessages, "srv-err", false, "Print server errors to stderr")
	f.BoolVar(&c.NoColor, "no-color", false, "Disable colored output")
}

func (c *ServerConfig) CreateServer() *ninepl.Server {
	var traceLogger, errLogger ninepl.Logger

	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}

	if c.PrintTraceMessages {
		traceLogger = log.New(c.Stdout, c.PrintPrefix, log.LstdFlags)
	}
	if c.PrintErrorMessages {
		errLogger = log.New(c.Stderr, c.PrintPrefix, log.LstdFlags)
	}

	return &ninepl.Server{
		Root:         c.Root,
		MaxMsgSize:   uint32(c.MaxMsgSize),
		ReadTimeout:  time.Duration(c.ReadTimeoutInSeconds) * time.Second,
		WriteTimeout: time.Duration(c.WriteTimeoutInSeconds) * time.Second,
		ErrorLog:     errLogger,
		TraceLog:     traceLogger,
	}
}

func (c *ServerConfig) ListenAndServe(srv *ninepl.Server) error {
	ln, err := ninepl.Listen(c.Network, c.Addr)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(c.Stdout, "exporting %s on %s!%s\n", c.Root, c.Network, ln.Addr())
	return srv.Serve(ln)
}

func (c *ServerConfig) CreateServerAndListen() error {
	srv := c.CreateServer()
	return c.ListenAndServe(srv)
}

// BasicServerMain is the whole main() for an exporting command: flags,
// color detection, serve, report.
func BasicServerMain() {
	var cfg ServerConfig

	cfg.SetFlags(nil)

	flag.Parse()

	SupportsColor(cfg.NoColor)

	if err := cfg.CreateServerAndListen(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", color.RedString("%s", err))
		os.Exit(1)
	}
}
