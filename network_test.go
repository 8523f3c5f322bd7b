// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mircd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleNetwork = `
[[servers]]
name = "irc1.example.net"
host = "10.0.0.1"
port = "6667"

[[servers]]
name = "irc2.example.net"
host = "10.0.0.2"
port = "6668"
`

func TestLoadNetwork(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network.toml")
	if err := os.WriteFile(path, []byte(sampleNetwork), 0o600); err != nil {
		t.Fatal(err)
	}

	n, err := LoadNetwork(path)
	if err != nil {
		t.Fatalf("LoadNetwork() error: %v", err)
	}
	if len(n.Servers) != 2 {
		t.Fatalf("got %d servers, want 2", len(n.Servers))
	}

	p, ok := n.Lookup("IRC2.example.net")
	if !ok {
		t.Fatal("Lookup() did not find irc2")
	}
	want := Peer{Name: "irc2.example.net", Host: "10.0.0.2", Port: "6668"}
	if p != want {
		t.Errorf("Lookup() = %+v, want %+v", p, want)
	}
	if _, ok := n.Lookup("irc3.example.net"); ok {
		t.Error("Lookup() found unknown server")
	}
}

func TestLoadNetwork_Missing(t *testing.T) {
	if _, err := LoadNetwork(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseNetwork_Invalid(t *testing.T) {
	tests := map[string]string{
		"syntax":    `[[servers]` + "\n",
		"unknown":   "[[servers]]\nname = \"a\"\nweight = 3\n",
		"password":  "[[servers]]\nname = \"a\"\npassword = \"p\"\n",
		"unnamed":   "[[servers]]\nhost = \"10.0.0.1\"\n",
		"duplicate": "[[servers]]\nname = \"a\"\n[[servers]]\nname = \"A\"\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseNetwork(strings.NewReader(doc)); err == nil {
				t.Errorf("expected error for %s", name)
			}
		})
	}
}
