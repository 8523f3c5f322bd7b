// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mircd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ErrUnknownServer is returned when a server is not part of the network.
var ErrUnknownServer = errors.New("server not listed in network file")

// Peer is one server of the network.
type Peer struct {
	Name string `toml:"name"`
	Host string `toml:"host"`
	Port string `toml:"port"`
}

// Network lists the servers that make up an IRC network:
//
//	[[servers]]
//	name = "irc1.example.net"
//	host = "10.0.0.1"
//	port = "6667"
type Network struct {
	Servers []Peer `toml:"servers"`
}

// LoadNetwork reads a network file.
func LoadNetwork(path string) (Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Network{}, fmt.Errorf("failed to read network file: %w", err)
	}
	return ParseNetwork(bytes.NewReader(data))
}

// ParseNetwork decodes a network description. Unknown keys, unnamed
// servers and duplicate names are rejected.
func ParseNetwork(r io.Reader) (Network, error) {
	var n Network
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&n); err != nil {
		return Network{}, fmt.Errorf("failed to parse network file: %w", err)
	}

	seen := make(map[string]bool, len(n.Servers))
	for i, s := range n.Servers {
		if s.Name == "" {
			return Network{}, fmt.Errorf("server %d has no name", i)
		}
		key := strings.ToLower(s.Name)
		if seen[key] {
			return Network{}, fmt.Errorf("duplicate server %q", s.Name)
		}
		seen[key] = true
	}
	return n, nil
}

// Lookup finds a server by name, ignoring case.
func (n Network) Lookup(name string) (Peer, bool) {
	for _, s := range n.Servers {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Peer{}, false
}
