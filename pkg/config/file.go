/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/srediag/reachability/pkg/aggregate"
	"github.com/srediag/reachability/pkg/probe"
)

// ErrInvalidConfig wraps every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	ProbeTCP  = "tcp"
	ProbeHTTP = "http"
	ProbeICMP = "icmp"

	TriggerAuto       = ""
	TriggerNetlink    = "netlink"
	TriggerInterfaces = "interfaces"
	TriggerNone       = "none"
)

// File is the daemon configuration file.
type File struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Strict       bool          `yaml:"strict"`
	Policy       string        `yaml:"policy"`
	Probes       []ProbeConfig `yaml:"probes"`
	Trigger      TriggerConfig `yaml:"trigger"`
	Admin        AdminConfig   `yaml:"admin"`
}

// ---- PROBES ----

type ProbeConfig struct {
	Kind    string        `yaml:"kind"`
	Target  string        `yaml:"target"`
	Timeout time.Duration `yaml:"timeout"`
}

// ---- TRIGGER ----

// TriggerConfig selects the connectivity change source. The empty kind picks
// netlink on Linux and interface polling elsewhere.
type TriggerConfig struct {
	Kind         string        `yaml:"kind"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// ---- ADMIN ----

type AdminConfig struct {
	Listen string `yaml:"listen"`
}

// Load reads and parses a YAML configuration file. It does not validate.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, rejecting unknown fields. Empty input yields an empty File.
func Parse(data []byte) (*File, error) {
	f := &File{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return f, nil
}

// Validate checks a parsed File.
func Validate(f *File) error {
	if f == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if f.PollInterval < 0 {
		return fmt.Errorf("%w: poll_interval must be >= 0", ErrInvalidConfig)
	}
	if f.Policy != "" {
		policy, err := aggregate.ParsePolicy(f.Policy)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if f.Strict && policy != aggregate.AllSucceed {
			return fmt.Errorf("%w: strict contradicts policy %q", ErrInvalidConfig, f.Policy)
		}
	}
	for i, p := range f.Probes {
		switch p.Kind {
		case ProbeTCP, ProbeHTTP, ProbeICMP:
		default:
			return fmt.Errorf("%w: probes[%d]: unknown kind %q", ErrInvalidConfig, i, p.Kind)
		}
		if p.Target == "" {
			return fmt.Errorf("%w: probes[%d]: target required", ErrInvalidConfig, i)
		}
		if p.Timeout < 0 {
			return fmt.Errorf("%w: probes[%d]: timeout must be >= 0", ErrInvalidConfig, i)
		}
	}
	switch f.Trigger.Kind {
	case TriggerAuto, TriggerNetlink, TriggerInterfaces, TriggerNone:
	default:
		return fmt.Errorf("%w: trigger: unknown kind %q", ErrInvalidConfig, f.Trigger.Kind)
	}
	if f.Trigger.PollInterval < 0 {
		return fmt.Errorf("%w: trigger.poll_interval must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// Options converts a validated File into holder options. Unset fields keep
// their defaults; the policy is always applied, from policy when set and from
// strict otherwise.
func (f *File) Options() []Option {
	opts := []Option{WithPolicy(f.policy())}
	if f.PollInterval > 0 {
		opts = append(opts, WithPollInterval(f.PollInterval))
	}
	if len(f.Probes) > 0 {
		probes := make([]probe.Descriptor, 0, len(f.Probes))
		for _, p := range f.Probes {
			probes = append(probes, p.Descriptor())
		}
		opts = append(opts, WithProbes(probes))
	}
	return opts
}

func (f *File) policy() aggregate.Policy {
	if f.Policy != "" {
		if p, err := aggregate.ParsePolicy(f.Policy); err == nil {
			return p
		}
	}
	return aggregate.PolicyFromStrict(f.Strict)
}

// Descriptor builds the probe described by p. A zero timeout uses
// probe.DefaultTimeout.
func (p ProbeConfig) Descriptor() probe.Descriptor {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = probe.DefaultTimeout
	}
	switch p.Kind {
	case ProbeHTTP:
		return probe.FromURL(p.Target, timeout)
	case ProbeICMP:
		return probe.FromICMP(p.Target, timeout)
	default:
		return probe.New(p.Target, timeout, &probe.TCPProber{})
	}
}
