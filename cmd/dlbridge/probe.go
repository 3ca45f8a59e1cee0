package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/MrSnakeDoc/dlbridge/internal/config"
	"github.com/MrSnakeDoc/dlbridge/internal/connection"
	"github.com/MrSnakeDoc/dlbridge/internal/remote"
	"github.com/MrSnakeDoc/dlbridge/internal/version"
)

type probeConfig struct {
	host      string
	ports     []int
	endpoints []string
	timeout   time.Duration
	origin    string
}

// runProbe sweeps every port and endpoint of the download service and prints
// one row per request. It succeeds when any status probe reported running.
func runProbe(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	fs.SetOutput(stderr)

	host := fs.String("host", "localhost", "Download service host")
	ports := fs.String("ports", "1337,8337,1338", "Comma separated ports to try")
	endpoints := fs.String("endpoints", "status,echo,test", "Comma separated endpoints to call")
	timeout := fs.Duration("timeout", 3*time.Second, "Timeout of each request")
	origin := fs.String("origin", "", "Origin header sent with every request")

	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: dlbridge probe [options]

Call the status, echo and test endpoints of the download service on each port
and report latency, HTTP status and CORS headers. Exits 3 when no port
reported a running service.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return ExitSuccess
		}
		return ExitInvalidArgs
	}

	cfg := probeConfig{
		host:    strings.TrimSpace(*host),
		timeout: *timeout,
		origin:  *origin,
	}
	var err error
	if cfg.ports, err = config.ParsePorts(*ports); err == nil && len(cfg.ports) == 0 {
		err = fmt.Errorf("no ports given")
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	cfg.endpoints, err = parseEndpoints(*endpoints)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	if cfg.host == "" {
		fmt.Fprintln(stderr, "Error: -host is required")
		return ExitInvalidArgs
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if probe(ctx, cfg, stdout) {
		return ExitSuccess
	}
	return ExitServiceOffline
}

// probe prints the result table and reports whether a running service was found.
func probe(ctx context.Context, cfg probeConfig, out io.Writer) bool {
	client := remote.NewClient(remote.Options{
		Timeout:   cfg.timeout,
		Origin:    cfg.origin,
		UserAgent: "dlbridge-probe/" + version.Version,
	})

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PORT\tENDPOINT\tMETHOD\tCODE\tLATENCY\tCORS\tRESULT")

	var running []int
	for _, port := range cfg.ports {
		base := connection.Endpoint{Host: cfg.host, Port: port}.BaseURL()
		for _, endpoint := range cfg.endpoints {
			if ctx.Err() != nil {
				break
			}
			d := client.Diagnose(ctx, base, endpoint)
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				port, endpoint, d.Method, codeText(d.StatusCode),
				d.Latency.Round(time.Millisecond), orDash(d.AllowOrigin), resultText(d))
			if endpoint == remote.EndpointStatus && d.OK() {
				running = append(running, port)
			}
		}
	}
	_ = tw.Flush()

	if len(running) == 0 {
		fmt.Fprintf(out, "\nNo running service found on %s\n", cfg.host)
		return false
	}
	fmt.Fprintf(out, "\nService running on %s port %d\n", cfg.host, running[0])
	return true
}

func parseEndpoints(s string) ([]string, error) {
	var endpoints []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		switch part {
		case "":
			continue
		case remote.EndpointStatus, remote.EndpointEcho, remote.EndpointTest:
			endpoints = append(endpoints, part)
		default:
			return nil, fmt.Errorf("unknown endpoint %q", part)
		}
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints given")
	}
	return endpoints, nil
}

func codeText(code int) string {
	if code == 0 {
		return "-"
	}
	return strconv.Itoa(code)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func resultText(d remote.Diagnosis) string {
	if d.OK() {
		return "ok"
	}
	return "error: " + d.Err.Error()
}
