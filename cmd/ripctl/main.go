// Command ripctl is the thin external collaborator spec.md §6 describes:
// a CLI that talks to a running ripd over its HTTP control surface, plus
// a couple of pure file/wire operations (config validate|generate, test)
// that need no running daemon at all.
//
// Grounded on the teacher's cmd/get/main.go: os.Args-driven one-shot
// actions, a single http.Client, logrus.Fatalf for terminal errors.
// Generalized to one flag.FlagSet per subcommand since this CLI has more
// than one verb -- CLI parsing itself is explicitly out of scope for the
// core (spec.md §1), so it stays on the standard library's flag package
// rather than reaching for a framework.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ripnet/ripd/pkg/config"
	"github.com/ripnet/ripd/pkg/errs"
	"github.com/ripnet/ripd/pkg/iface"
	"github.com/ripnet/ripd/pkg/wire"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: ripctl <status|configure|test|config> ...")
		return 1
	}

	switch args[0] {
	case "status":
		return cmdStatus(args[1:], log)
	case "configure":
		return cmdConfigure(args[1:], log)
	case "test":
		return cmdTest(args[1:], log)
	case "config":
		return cmdConfig(args[1:], log)
	default:
		fmt.Fprintf(os.Stderr, "unknown verb %q\n", args[0])
		return 1
	}
}

// cmdStatus implements `ripctl status {json?,watch?,interval?}`.
func cmdStatus(args []string, log *logrus.Logger) int {
	fs := newFlagSet("status")
	addr := fs.String("addr", "http://127.0.0.1:8080", "ripd control API base address")
	asJSON := fs.Bool("json", false, "print raw JSON")
	watch := fs.Bool("watch", false, "poll repeatedly")
	interval := fs.Duration("interval", 5*time.Second, "poll interval when -watch is set")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	client := &http.Client{Timeout: 5 * time.Second}
	for {
		body, err := getJSON(client, *addr+"/status")
		if err != nil {
			log.WithError(err).Error("fetch status")
			return errs.ExitCode(err)
		}
		if *asJSON {
			os.Stdout.Write(body)
			fmt.Println()
		} else {
			var env struct {
				Success bool            `json:"success"`
				Data    json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(body, &env); err != nil {
				log.WithError(err).Error("decode status response")
				return 1
			}
			fmt.Printf("status: %s\n", env.Data)
		}
		if !*watch {
			return 0
		}
		time.Sleep(*interval)
	}
}

// cmdConfigure implements `ripctl configure interfaces {add|remove|enable|disable|list}`.
// It mutates the pending, on-disk configuration file; a running ripd picks
// the change up through its own file watcher once the edit lands.
func cmdConfigure(args []string, log *logrus.Logger) int {
	if len(args) < 2 || args[0] != "interfaces" {
		fmt.Fprintln(os.Stderr, "usage: ripctl configure interfaces {add|remove|enable|disable|list} ...")
		return 1
	}
	action := args[1]
	rest := args[2:]

	fs := newFlagSet("configure interfaces " + action)
	path := fs.String("config", "/etc/ripd/config.json", "path to the ripd configuration file")
	name := fs.String("name", "", "interface name")
	ip := fs.String("ip", "", "interface IPv4 address")
	mask := fs.String("mask", "", "interface subnet mask")
	cost := fs.Int("cost", 1, "interface cost")
	if err := fs.Parse(rest); err != nil {
		return 1
	}

	raw, err := os.ReadFile(*path)
	if err != nil {
		log.WithError(err).Error("read config")
		return errs.ExitCode(errs.Wrap(errs.KindConfigIO, "read "+*path, err))
	}
	var fc config.FileConfig
	if err := json.Unmarshal(raw, &fc); err != nil {
		log.WithError(err).Error("parse config")
		return errs.ExitCode(errs.Wrap(errs.KindConfigValidation, "parse "+*path, err))
	}

	switch action {
	case "list":
		for _, i := range fc.Interfaces {
			fmt.Printf("%s\t%s/%s\tenabled=%v\tcost=%d\n", i.Name, i.IPAddress, i.SubnetMask, i.Enabled, i.Cost)
		}
		return 0
	case "add":
		if *name == "" || *ip == "" || *mask == "" {
			fmt.Fprintln(os.Stderr, "add requires -name, -ip and -mask")
			return 1
		}
		fc.Interfaces = append(fc.Interfaces, config.InterfaceSpec{
			Name: *name, IPAddress: *ip, SubnetMask: *mask, Enabled: true, Cost: *cost,
		})
	case "remove":
		fc.Interfaces = filterInterfaces(fc.Interfaces, *name, func(config.InterfaceSpec) bool { return false })
	case "enable":
		fc.Interfaces = setEnabled(fc.Interfaces, *name, true)
	case "disable":
		fc.Interfaces = setEnabled(fc.Interfaces, *name, false)
	default:
		fmt.Fprintf(os.Stderr, "unknown interfaces action %q\n", action)
		return 1
	}

	if _, err := config.Validate(fc, 1); err != nil {
		log.WithError(err).Error("validate edited config")
		return errs.ExitCode(err)
	}
	out, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		log.WithError(err).Error("encode config")
		return 1
	}
	if err := os.WriteFile(*path, out, 0o644); err != nil {
		log.WithError(err).Error("write config")
		return errs.ExitCode(errs.Wrap(errs.KindConfigIO, "write "+*path, err))
	}
	return 0
}

func filterInterfaces(in []config.InterfaceSpec, name string, keep func(config.InterfaceSpec) bool) []config.InterfaceSpec {
	out := make([]config.InterfaceSpec, 0, len(in))
	for _, i := range in {
		if i.Name == name && !keep(i) {
			continue
		}
		out = append(out, i)
	}
	return out
}

func setEnabled(in []config.InterfaceSpec, name string, enabled bool) []config.InterfaceSpec {
	for idx := range in {
		if in[idx].Name == name {
			in[idx].Enabled = enabled
		}
	}
	return in
}

// cmdTest implements `ripctl test {target?,timeout?,count?}`: a raw
// v2 RIP Request sent directly over the wire, bypassing the HTTP control
// surface entirely, since it probes the protocol itself rather than the
// daemon's management API. There is no -all flag: each run probes the one
// -target address.
func cmdTest(args []string, log *logrus.Logger) int {
	fs := newFlagSet("test")
	target := fs.String("target", "224.0.0.9", "address to send the request to")
	timeout := fs.Duration("timeout", 3*time.Second, "time to wait for a response")
	count := fs.Int("count", 1, "number of request/response round trips to attempt")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	targetAddr, err := netip.ParseAddr(*target)
	if err != nil {
		log.WithError(err).Error("parse target address")
		return errs.ExitCode(errs.Wrap(errs.KindConfigValidation, "invalid target", err))
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		log.WithError(err).Error("open probe socket")
		return errs.ExitCode(errs.Wrap(errs.KindNetBind, "listen", err))
	}
	defer conn.Close()

	// The whole-table query marker (address_family 0xFFFF) is the sole RTE
	// of a probe Request, RFC 2453 §3.4.1.
	req := &wire.Datagram{
		Version: wire.Version2,
		Command: wire.CommandRequest,
		RTEs:    []wire.RTE{{AddressFamily: 0xFFFF}},
	}
	payload, err := wire.Encode(req)
	if err != nil {
		log.WithError(err).Error("encode request")
		return errs.ExitCode(err)
	}

	dest := &net.UDPAddr{IP: net.IP(targetAddr.AsSlice()), Port: iface.DefaultPort}
	ok := 0
	for i := 0; i < *count; i++ {
		if _, err := conn.WriteToUDP(payload, dest); err != nil {
			log.WithError(err).Warn("send request")
			continue
		}
		_ = conn.SetReadDeadline(timeNow(*timeout))
		buf := make([]byte, 512)
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			log.Warnf("round %d: no response within %s", i+1, *timeout)
			continue
		}
		msg, err := wire.Decode(buf[:n], targetAddr)
		if err != nil {
			log.WithError(err).Warn("decode response")
			continue
		}
		fmt.Printf("round %d: %d route(s) advertised\n", i+1, len(msg.RTEs))
		ok++
	}
	if ok == 0 {
		return errs.ExitCode(errs.New(errs.KindNetRecv, "no response received"))
	}
	return 0
}

func timeNow(d time.Duration) time.Time { return time.Now().Add(d) }

// cmdConfig implements `ripctl config {validate|generate}`, pure file ops
// that need no running daemon.
func cmdConfig(args []string, log *logrus.Logger) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: ripctl config {validate|generate}")
		return 1
	}
	switch args[0] {
	case "validate":
		fs := newFlagSet("config validate")
		path := fs.String("config", "/etc/ripd/config.json", "path to validate")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		if _, err := config.Load(*path); err != nil {
			log.WithError(err).Error("validate config")
			return errs.ExitCode(err)
		}
		fmt.Println("ok")
		return 0
	case "generate":
		fs := newFlagSet("config generate")
		path := fs.String("out", "/etc/ripd/config.json", "path to write a template configuration to")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		tmpl := config.FileConfig{
			RouterID:               "10.0.0.1",
			RIPVersion:             2,
			Port:                   520,
			Interfaces:             []config.InterfaceSpec{{Name: "eth0", IPAddress: "10.0.0.1", SubnetMask: "255.255.255.0", Enabled: true, Cost: 1}},
			UpdateInterval:         30,
			GarbageCollectionTimer: 120,
			MaxHopCount:            16,
			SplitHorizon:           true,
		}
		out, err := json.MarshalIndent(tmpl, "", "  ")
		if err != nil {
			log.WithError(err).Error("encode template")
			return 1
		}
		if err := os.WriteFile(*path, out, 0o644); err != nil {
			log.WithError(err).Error("write template")
			return errs.ExitCode(errs.Wrap(errs.KindConfigIO, "write "+*path, err))
		}
		fmt.Printf("wrote template configuration to %s\n", *path)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown config verb %q\n", args[0])
		return 1
	}
}

func getJSON(client *http.Client, url string) ([]byte, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetRecv, "GET "+url, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, errs.Wrap(errs.KindNetRecv, "read response body", err)
	}
	if resp.StatusCode >= 300 {
		return nil, errs.New(errs.KindNetRecv, fmt.Sprintf("%s: HTTP %d", url, resp.StatusCode))
	}
	return buf.Bytes(), nil
}
