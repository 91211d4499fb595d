// SPDX-License-Identifier: GPL-3.0-or-later
//
// Fleet definitions are loaded from YAML rather than built up
// programmatically, following TheEntropyCollective-noisefs's
// convention of a decoded config struct feeding constructors (see
// its pkg/infrastructure/config package). gopkg.in/yaml.v3 is already
// transitively present through the corpus's config-loading stack.

package flowfleet

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FleetDefinition is the top-level shape of a fleet configuration
// file: global transport settings plus the list of flows to build.
type FleetDefinition struct {
	SSHPath             string `yaml:"ssh_path"`
	MeasurementToolPath string `yaml:"measurement_tool_path"`
	GnuplotPath         string `yaml:"gnuplot_path"`
	PrecleanUser        string `yaml:"preclean_user"`

	Flows []FlowDefinition `yaml:"flows"`
}

// FlowDefinition is one flow entry in a fleet configuration file,
// mirroring [FlowConfig] with YAML-friendly field names and a string
// TOS spelling resolved via [ParseTOS].
type FlowDefinition struct {
	Name        string  `yaml:"name"`
	Server      string  `yaml:"server"`
	Client      string  `yaml:"client"`
	User        string  `yaml:"user"`
	Proto       string  `yaml:"proto"`
	Dst         string  `yaml:"dst"`
	TOS         string  `yaml:"tos"`
	Interval    float64 `yaml:"interval"`
	Duration    int     `yaml:"duration"`
	OfferedLoad string  `yaml:"offered_load"`
	Window      string  `yaml:"window"`
}

// LoadFleetDefinition decodes a fleet configuration file at path.
func LoadFleetDefinition(path string) (*FleetDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("flowfleet: reading fleet definition: %w", err)
	}
	var def FleetDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("flowfleet: decoding fleet definition: %w", err)
	}
	return &def, nil
}

// ApplyTo overlays def's transport settings onto cfg, leaving any
// field def leaves zero-valued untouched.
func (def *FleetDefinition) ApplyTo(cfg *Config) {
	if def.SSHPath != "" {
		cfg.SSHPath = def.SSHPath
	}
	if def.MeasurementToolPath != "" {
		cfg.MeasurementToolPath = def.MeasurementToolPath
	}
	if def.GnuplotPath != "" {
		cfg.GnuplotPath = def.GnuplotPath
	}
	if def.PrecleanUser != "" {
		cfg.PrecleanUser = def.PrecleanUser
	}
}

// FlowConfigs resolves every flow definition into a [*FlowConfig],
// returning an error that names the offending flow if any TOS
// spelling is unrecognized.
func (def *FleetDefinition) FlowConfigs() ([]*FlowConfig, error) {
	out := make([]*FlowConfig, 0, len(def.Flows))
	for _, fd := range def.Flows {
		tos, err := ParseTOS(fd.TOS)
		if err != nil {
			return nil, fmt.Errorf("flowfleet: flow %q: %w", fd.Name, err)
		}
		proto := ProtoTCP
		if fd.Proto != "" {
			proto = Proto(strings.ToUpper(fd.Proto))
		}
		out = append(out, &FlowConfig{
			Name:        fd.Name,
			Server:      fd.Server,
			Client:      fd.Client,
			User:        fd.User,
			Proto:       proto,
			Dst:         fd.Dst,
			TOS:         tos,
			Interval:    fd.Interval,
			Duration:    fd.Duration,
			OfferedLoad: fd.OfferedLoad,
			Window:      fd.Window,
		})
	}
	return out, nil
}
