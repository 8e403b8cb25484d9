package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, contents string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	path := writeTemp(t, "max_clients: 16\nlisten_port: 12345\nserver_mode: INET\n")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.MaxClients != 16 || c.ListenPort != 12345 || c.ServerMode != ModeINET {
		t.Fatalf("unexpected config: %+v", c)
	}
	if c.MOTDPath != "motd.txt" {
		t.Fatalf("expected default motd_path, got %q", c.MOTDPath)
	}
}

func TestLoadMissingRequiredKey(t *testing.T) {
	path := writeTemp(t, "listen_port: 12345\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing max_clients")
	}
}

func TestLoadBadServerMode(t *testing.T) {
	path := writeTemp(t, "max_clients: 1\nlisten_port: 1\nserver_mode: WAN\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid server_mode")
	}
}
