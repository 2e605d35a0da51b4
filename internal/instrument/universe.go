package instrument

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// UniverseEntry is one instrument definition in the universe file.
type UniverseEntry struct {
	Name         string  `yaml:"name"`
	Exchange     string  `yaml:"exchange"`
	Currency     string  `yaml:"currency"`
	Type         string  `yaml:"type"`
	Commission   float64 `yaml:"commission"`
	ContractSize float64 `yaml:"contract_size"`
	Leverage     float64 `yaml:"leverage"`
	StepSize     float64 `yaml:"step_size"`
	StepValue    float64 `yaml:"step_value"`
	TimeFrame    string  `yaml:"time_frame"` // Go duration, empty = tick-level

	Derivative *struct {
		Strike     float64 `yaml:"strike"`
		Side       string  `yaml:"side"`
		Expiration string  `yaml:"expiration"` // RFC 3339 date
		Basis      string  `yaml:"basis"`      // name of the underlying entry
	} `yaml:"derivative"`
}

type universeFile struct {
	Instruments []UniverseEntry `yaml:"instruments"`
}

// LoadUniverse reads the instruments an account holds at startup from a YAML
// file. Underlyings referenced by name must be declared in the same file.
func LoadUniverse(path string) ([]*Instrument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read universe file: %w", err)
	}

	var file universeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse universe file: %w", err)
	}

	byName := make(map[string]*Instrument, len(file.Instruments))
	out := make([]*Instrument, 0, len(file.Instruments))

	for _, entry := range file.Instruments {
		ins, err := entry.build()
		if err != nil {
			return nil, fmt.Errorf("instrument %q: %w", entry.Name, err)
		}
		byName[ins.Name] = ins
		out = append(out, ins)
	}

	// Resolve underlyings in a second pass so declaration order does not matter.
	for _, entry := range file.Instruments {
		if entry.Derivative == nil || entry.Derivative.Basis == "" {
			continue
		}
		basis, ok := byName[entry.Derivative.Basis]
		if !ok {
			return nil, fmt.Errorf("instrument %q: unknown basis %q", entry.Name, entry.Derivative.Basis)
		}
		byName[entry.Name].Basis = basis
	}

	return out, nil
}

func (e UniverseEntry) build() (*Instrument, error) {
	if e.Name == "" {
		return nil, fmt.Errorf("name is required")
	}

	ins := New(e.Name)
	ins.Exchange = e.Exchange
	ins.Currency = e.Currency
	ins.Type = Type(e.Type)
	ins.Commission = e.Commission

	if e.ContractSize != 0 {
		ins.ContractSize = e.ContractSize
	}
	if e.Leverage != 0 {
		ins.Leverage = e.Leverage
	}
	if e.StepSize != 0 {
		ins.StepSize = e.StepSize
	}
	if e.StepValue != 0 {
		ins.StepValue = e.StepValue
	}

	if e.TimeFrame != "" {
		frame, err := time.ParseDuration(e.TimeFrame)
		if err != nil {
			return nil, fmt.Errorf("parse time_frame: %w", err)
		}
		ins.TimeFrame = &frame
	}

	if e.Derivative != nil {
		der := &Derivative{
			Strike: e.Derivative.Strike,
			Side:   OptionSide(e.Derivative.Side),
		}
		if e.Derivative.Expiration != "" {
			exp, err := time.Parse(time.RFC3339, e.Derivative.Expiration)
			if err != nil {
				return nil, fmt.Errorf("parse expiration: %w", err)
			}
			der.Expiration = exp
		}
		ins.Derivative = der
	}

	return ins, nil
}
