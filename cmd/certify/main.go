// Command certify validates XMLTV grabber programs against the documented
// grabber capability contract.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/epgkit/certify"
	"github.com/epgkit/certify/internal/config"
	"github.com/epgkit/certify/internal/grabber"
	certmcp "github.com/epgkit/certify/internal/mcp"
	"github.com/epgkit/certify/internal/report"
	"github.com/epgkit/certify/internal/validate"
	"github.com/fatih/color"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "validate":
		err = validateMain(args)
	case "probe":
		err = probeMain(args)
	case "configure":
		err = configureMain(args)
	case "mcp":
		err = mcpMain(args)
	case "version":
		fmt.Println(certify.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "certify: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		var interrupted validate.ErrInterrupted
		if errors.As(err, &interrupted) {
			fmt.Fprintf(os.Stderr, "certify: %v\n", err)
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "certify: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: certify <command> [flags] [args]

Commands:
  validate    Run the full validation pipeline against a grabber
  probe       Run only the self-description checks (no grabbing)
  configure   Run the grabber's own --configure flow
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Use "certify <command> -h" for command-specific flags.`)
}

// --- validate ---

func validateMain(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	share := fs.String("share", "", "shared-metadata directory, passed via --share when advertised")
	cache := fs.Bool("cache", false, "pass a cache directory via --cache when advertised")
	prefix := fs.String("prefix", "", "artifact path prefix (default ./<name>)")
	jsonFlag := fs.Bool("json", false, "output the report as JSON")
	verboseFlag := fs.Bool("v", false, "verbose output")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: certify validate [flags] <name> <command> <config-file>")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() != 3 {
		fs.Usage()
		os.Exit(2)
	}
	g := grabber.Config{
		Name:       fs.Arg(0),
		Command:    fs.Arg(1),
		ConfigFile: fs.Arg(2),
		ShareDir:   *share,
		UseCache:   *cache,
	}

	pfx := *prefix
	if pfx == "" {
		pfx = g.Name
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, err := newEngine(*verboseFlag)
	if err != nil {
		return err
	}

	rep, err := eng.Validate(ctx, g, pfx)
	if err != nil {
		return err
	}

	return printReport(rep, *jsonFlag, *verboseFlag)
}

// --- probe ---

func probeMain(args []string) error {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "output the report as JSON")
	verboseFlag := fs.Bool("v", false, "verbose output")
	prefix := fs.String("prefix", "", "artifact path prefix (default ./<name>)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: certify probe [flags] <name> <command>")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() != 2 {
		fs.Usage()
		os.Exit(2)
	}
	g := grabber.Config{
		Name:    fs.Arg(0),
		Command: fs.Arg(1),
	}

	pfx := *prefix
	if pfx == "" {
		pfx = g.Name
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, err := newEngine(*verboseFlag)
	if err != nil {
		return err
	}

	rep, err := eng.Probe(ctx, g, pfx)
	if err != nil {
		return err
	}

	return printReport(rep, *jsonFlag, *verboseFlag)
}

// --- configure ---

func configureMain(args []string) error {
	fs := flag.NewFlagSet("configure", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: certify configure <command> <config-file>")
	}
	_ = fs.Parse(args)

	if fs.NArg() != 2 {
		fs.Usage()
		os.Exit(2)
	}
	g := grabber.Config{
		Name:       fs.Arg(0),
		Command:    fs.Arg(0),
		ConfigFile: fs.Arg(1),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, err := newEngine(false)
	if err != nil {
		return err
	}
	return eng.Configure(ctx, g)
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(certmcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return serve(ctx, *httpAddr)
}

func serve(ctx context.Context, httpAddr string) error {
	workdir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining working directory: %w", err)
	}

	eng, err := newEngine(false)
	if err != nil {
		return err
	}

	store := report.NewLRUStore(5, report.NewDiskStore())
	server := certmcp.NewServer(eng, store, workdir)

	if httpAddr != "" {
		return serveHTTP(ctx, server, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	fmt.Fprintf(os.Stderr, "certify: listening on %s\n", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- shared ---

func newEngine(verbose bool) (*validate.Engine, error) {
	workdir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining working directory: %w", err)
	}

	cfg, err := config.Load(workdir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()

	return &validate.Engine{Config: cfg, Logger: logger}, nil
}

func printReport(rep *report.Report, asJSON, verbose bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
		if !rep.Pass() {
			os.Exit(1)
		}
		return nil
	}

	if rep.Pass() {
		fmt.Printf("%s %s (command log: %s)\n",
			color.GreenString("PASS"), rep.Grabber, rep.LogPath)
		return nil
	}

	fmt.Printf("%s %s (command log: %s)\n",
		color.RedString("FAIL"), rep.Grabber, rep.LogPath)
	for _, f := range rep.Findings {
		if verbose && f.Diagnostic != "" {
			fmt.Printf("  %s - %s\n", f.Code, f.Diagnostic)
		} else {
			fmt.Printf("  %s\n", f.Code)
		}
	}
	os.Exit(1)
	return nil
}
