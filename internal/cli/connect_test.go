package cli

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
)

func listenForClients(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestConnectYesInstallsUpdateAfterReuse(t *testing.T) {
	clearServerEnv(t)
	fx := newReleaseFixture(t, "v1.3.0", "v1.2.0")
	root := t.TempDir()
	port := listenForClients(t)
	cfg := fmt.Sprintf("repository: acme/npl\nrelease_api: %s\ndownload_host: %s\nport: %d\n", fx.server.URL, fx.server.URL, port)
	if err := os.WriteFile(filepath.Join(root, "config.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, stderr, err := runCLI(t, "--root", root, "--json", "server", "install", "--version", "v1.2.0"); err != nil {
		t.Fatalf("install returned error: %v (stderr %q)", err, stderr)
	}

	out, stderr, err := runCLI(t, "--root", root, "--json", "connect", "--yes")
	if err != nil {
		t.Fatalf("connect returned error: %v (stderr %q)", err, stderr)
	}
	var info connectInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode connect %q: %v", out, err)
	}
	if info.Source != "tcp" {
		t.Fatalf("expected the running server to be reused, got %+v", info)
	}

	out, _, err = runCLI(t, "--root", root, "--json", "server", "list")
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	var entries []listEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode list %q: %v", out, err)
	}
	installed := map[string]bool{}
	for _, e := range entries {
		installed[e.Version] = e.Status != "missing"
	}
	if !installed["v1.3.0"] || !installed["v1.2.0"] {
		t.Fatalf("expected v1.3.0 installed next to v1.2.0, got %+v", entries)
	}
}

func TestConnectWithoutYesLeavesReusedServerAlone(t *testing.T) {
	clearServerEnv(t)
	fx := newReleaseFixture(t, "v1.3.0", "v1.2.0")
	root := t.TempDir()
	port := listenForClients(t)
	cfg := fmt.Sprintf("repository: acme/npl\nrelease_api: %s\ndownload_host: %s\nport: %d\n", fx.server.URL, fx.server.URL, port)
	if err := os.WriteFile(filepath.Join(root, "config.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, stderr, err := runCLI(t, "--root", root, "--json", "server", "install", "--version", "v1.2.0"); err != nil {
		t.Fatalf("install returned error: %v (stderr %q)", err, stderr)
	}
	if _, stderr, err := runCLI(t, "--root", root, "--json", "connect"); err != nil {
		t.Fatalf("connect returned error: %v (stderr %q)", err, stderr)
	}

	out, _, err := runCLI(t, "--root", root, "--json", "server", "list")
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	var entries []listEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode list %q: %v", out, err)
	}
	for _, e := range entries {
		if e.Version == "v1.3.0" && e.Status != "missing" {
			t.Fatalf("update installed without approval: %+v", entries)
		}
	}
}
