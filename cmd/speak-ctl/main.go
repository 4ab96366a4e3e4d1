package main

import (
	"fmt"
	"os"
	"path/filepath"

	cli "github.com/spf13/pflag"

	"github.com/puneetkumarbajaj/speak/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", "/tmp/speak.sock", "Daemon control socket")
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var req ipc.Request
	switch args[0] {
	case "toggle":
		req = ipc.Request{Op: ipc.OpToggle}
	case "status":
		req = ipc.Request{Op: ipc.OpStatus}
	case "transcribe":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "transcribe: audio file required")
			os.Exit(2)
		}
		path, err := absPath(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "transcribe:", err)
			os.Exit(1)
		}
		req = ipc.Request{Op: ipc.OpTranscribe, Path: path}
	default:
		usage()
		os.Exit(2)
	}

	resp, err := ipc.Send(*socket, req)
	if err != nil {
		fmt.Println("speak-daemon not running:", err)
		os.Exit(1)
	}
	if !resp.OK {
		fmt.Fprintln(os.Stderr, resp.Message)
		os.Exit(1)
	}

	switch args[0] {
	case "status":
		fmt.Printf("state:  %s\n", resp.State)
		if resp.Message != "" {
			fmt.Printf("mode:   %s\n", resp.Message)
		}
		fmt.Printf("uptime: %.0fs\n", resp.Uptime)
		for _, t := range resp.Transcripts {
			fmt.Println("  ", t)
		}
	case "transcribe":
		fmt.Println(resp.Text)
	}
}

// absPath resolves the file relative to the caller, not the daemon.
func absPath(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return filepath.Abs(path)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: speak-ctl [-s socket] toggle|status|transcribe <file>")
}
