// Package params holds the physical parameter set substituted into the solver template.
package params

import (
	"errors"
	"fmt"
	"sort"
)

const (
	Radius     = "RADIUS"
	CO3Upt     = "CO3UPT"
	CO2Upt     = "CO2UPT"
	HCO3Upt    = "HCO3UPT"
	PHBulk     = "PHBULK"
	DICBulk    = "DICBULK"
	UAlkBulk   = "UALKBULK"
	SymCO2Upt  = "SYMCO2UPT"
	SymHCO3Upt = "SYMHCO3UPT"
	SymTCUpt   = "SYMTCUPT"
	VMax       = "VMAX"
	SymDist    = "SYMDIST"
	RedS       = "REDS"
	Salinity   = "SALINITY"
	Temp       = "TEMP"

	// BorTBulk is derived from BORMULT and SALINITY and cannot be set.
	BorTBulk = "BORTBULK"
)

// Keys lists the caller-supplied keys of a Set, BORTBULK excluded.
var Keys = []string{
	Radius, CO3Upt, CO2Upt, HCO3Upt, PHBulk, DICBulk, UAlkBulk,
	SymCO2Upt, SymHCO3Upt, SymTCUpt, VMax, SymDist, RedS, Salinity, Temp,
}

var (
	ErrUnknownParameter = errors.New("params: unknown parameter")
	ErrDerivedParameter = errors.New("params: parameter is derived and cannot be set")
)

// Inputs are the values a caller provides for one run.
type Inputs struct {
	Radius     float64 `yaml:"radius" json:"radius"`         // foram radius [um]
	CO3Upt     float64 `yaml:"co3upt" json:"co3upt"`         // shell CO3 uptake [mol/s]
	CO2Upt     float64 `yaml:"co2upt" json:"co2upt"`         // shell CO2 uptake (respiration < 0)
	HCO3Upt    float64 `yaml:"hco3upt" json:"hco3upt"`       // shell HCO3 uptake
	PHBulk     float64 `yaml:"phbulk" json:"phbulk"`         // bulk pH
	DICBulk    float64 `yaml:"dicbulk" json:"dicbulk"`       // bulk DIC [umol/kg]
	UAlkBulk   float64 `yaml:"ualkbulk" json:"ualkbulk"`     // bulk alkalinity [ueq/kg]
	BorMult    float64 `yaml:"bormult" json:"bormult"`       // boron multiplier
	SymCO2Upt  float64 `yaml:"symco2upt" json:"symco2upt"`   // symbiont CO2 uptake
	SymHCO3Upt float64 `yaml:"symhco3upt" json:"symhco3upt"` // symbiont HCO3 uptake
	SymTCUpt   float64 `yaml:"symtcupt" json:"symtcupt"`     // symbiont total carbon uptake
	VMax       float64 `yaml:"vmax" json:"vmax"`             // Michaelis-Menten Vmax
	SymDist    float64 `yaml:"symdist" json:"symdist"`       // symbiont halo thickness [um]
	RedS       float64 `yaml:"reds" json:"reds"`             // symbiont Redfield ratio
	Salinity   float64 `yaml:"salinity" json:"salinity"`
	Temp       float64 `yaml:"temp" json:"temp"` // degC
}

// BoronTotal returns the bulk total boron for a salinity, scaled by bormult.
func BoronTotal(borMult, salinity float64) float64 {
	return borMult * (416 * salinity / 35)
}

// Set is an immutable parameter mapping. The zero value is empty.
type Set struct {
	values  map[string]float64
	borMult float64
}

func New(in Inputs) Set {
	v := map[string]float64{
		Radius:     in.Radius,
		CO3Upt:     in.CO3Upt,
		CO2Upt:     in.CO2Upt,
		HCO3Upt:    in.HCO3Upt,
		PHBulk:     in.PHBulk,
		DICBulk:    in.DICBulk,
		UAlkBulk:   in.UAlkBulk,
		SymCO2Upt:  in.SymCO2Upt,
		SymHCO3Upt: in.SymHCO3Upt,
		SymTCUpt:   in.SymTCUpt,
		VMax:       in.VMax,
		SymDist:    in.SymDist,
		RedS:       in.RedS,
		Salinity:   in.Salinity,
		Temp:       in.Temp,
	}
	v[BorTBulk] = BoronTotal(in.BorMult, in.Salinity)
	return Set{values: v, borMult: in.BorMult}
}

func (s Set) Get(name string) (float64, bool) {
	v, ok := s.values[name]
	return v, ok
}

func (s Set) Len() int {
	return len(s.values)
}

// BorMult returns the multiplier BORTBULK was derived with.
func (s Set) BorMult() float64 {
	return s.borMult
}

// Names returns the keys of the set in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s.values))
	for k := range s.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of the underlying values.
func (s Set) Map() map[string]float64 {
	m := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		m[k] = v
	}
	return m
}

// With returns a copy of s with one caller-supplied parameter replaced.
// Changing SALINITY re-derives BORTBULK.
func (s Set) With(name string, value float64) (Set, error) {
	if name == BorTBulk {
		return Set{}, fmt.Errorf("%w: %s", ErrDerivedParameter, name)
	}
	if _, ok := s.values[name]; !ok {
		return Set{}, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	}
	m := s.Map()
	m[name] = value
	m[BorTBulk] = BoronTotal(s.borMult, m[Salinity])
	return Set{values: m, borMult: s.borMult}, nil
}

// IsKey reports whether name is a caller-supplied parameter key.
func IsKey(name string) bool {
	for _, k := range Keys {
		if k == name {
			return true
		}
	}
	return false
}

// BorMultKey names the boron multiplier input. It is not part of a Set.
const BorMultKey = "BORMULT"

// Assign sets one input by its upper-case key, BORMULT included.
func (in *Inputs) Assign(name string, value float64) error {
	switch name {
	case Radius:
		in.Radius = value
	case CO3Upt:
		in.CO3Upt = value
	case CO2Upt:
		in.CO2Upt = value
	case HCO3Upt:
		in.HCO3Upt = value
	case PHBulk:
		in.PHBulk = value
	case DICBulk:
		in.DICBulk = value
	case UAlkBulk:
		in.UAlkBulk = value
	case BorMultKey:
		in.BorMult = value
	case SymCO2Upt:
		in.SymCO2Upt = value
	case SymHCO3Upt:
		in.SymHCO3Upt = value
	case SymTCUpt:
		in.SymTCUpt = value
	case VMax:
		in.VMax = value
	case SymDist:
		in.SymDist = value
	case RedS:
		in.RedS = value
	case Salinity:
		in.Salinity = value
	case Temp:
		in.Temp = value
	case BorTBulk:
		return fmt.Errorf("%w: %s", ErrDerivedParameter, name)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	}
	return nil
}
