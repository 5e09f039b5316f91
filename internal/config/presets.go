package config

import (
	"sort"

	"github.com/san-kum/microenv/internal/params"
)

const DefaultPreset = "default"

type Preset struct {
	Description string
	Params      params.Inputs
}

// Uptake rates are per second; the source values are given per hour.
var Presets = map[string]*Preset{
	"default": {
		Description: "generated run file values, symbiont bearing foram at S=33.3",
		Params: params.Inputs{
			Radius: 250, CO3Upt: 8.333333e-13, CO2Upt: -5.555556e-13, HCO3Upt: 0,
			PHBulk: 8.063, DICBulk: 4035, UAlkBulk: 4671, BorMult: 5.192308414183414,
			SymCO2Upt: 0, SymHCO3Upt: 0, SymTCUpt: 2.777778e-12, VMax: 3.333333e-12,
			SymDist: 500, RedS: 1, Salinity: 33.3, Temp: 22,
		},
	},
	"foramw": {
		Description: "symbionts only, no calcification",
		Params: params.Inputs{
			Radius: 200, CO3Upt: 0, CO2Upt: -3e-9 / 3600, HCO3Upt: 0,
			PHBulk: 8.2, DICBulk: 2200, UAlkBulk: 2400, BorMult: 1,
			SymTCUpt: 12e-9 / 3600, VMax: 12e-9 / 3600,
			SymDist: 500, RedS: 1, Salinity: 35, Temp: 25,
		},
	},
	"forambord": {
		Description: "calcification with HCO3 uptake",
		Params: params.Inputs{
			Radius: 250, CO3Upt: 1e-9 / 3600, CO2Upt: -3e-9 / 3600, HCO3Upt: 2e-9 / 3600,
			PHBulk: 7.623, DICBulk: 2054, UAlkBulk: 2214, BorMult: 1,
			SymTCUpt: 10e-9 / 3600, VMax: 12e-9 / 3600,
			SymDist: 500, RedS: 1, Salinity: 35, Temp: 25,
		},
	},
	"forambord2": {
		Description: "calcification with CO3 uptake only",
		Params: params.Inputs{
			Radius: 250, CO3Upt: 1e-9 / 3600, CO2Upt: -3e-9 / 3600, HCO3Upt: 0,
			PHBulk: 8.063, DICBulk: 4035, UAlkBulk: 4671, BorMult: 1,
			SymTCUpt: 10e-9 / 3600, VMax: 12e-9 / 3600,
			SymDist: 500, RedS: 1, Salinity: 35, Temp: 25,
		},
	},
}

func GetPreset(name string) *Preset {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return p
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
