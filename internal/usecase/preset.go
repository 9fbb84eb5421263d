package usecase

import (
	"fmt"

	"TipsPipeline/internal/domain"
)

// Preset names a canned output selection for QuickGenerate.
type Preset string

const (
	PresetDocuments     Preset = "documents"
	PresetDesignExports Preset = "design-exports"
	PresetWebpages      Preset = "webpages"
	PresetEverything    Preset = "everything"
)

// Presets lists every preset in display order.
var Presets = []Preset{PresetDocuments, PresetDesignExports, PresetWebpages, PresetEverything}

// ParsePreset maps a name to a preset.
func ParsePreset(name string) (Preset, error) {
	for _, p := range Presets {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown preset %q", name)
}

// Outputs returns the output selection enabled by the preset.
func (p Preset) Outputs() (domain.OutputSet, error) {
	all := domain.AllOutputs()
	switch p {
	case PresetDocuments:
		return domain.OutputSet{Document: all.Document}, nil
	case PresetDesignExports:
		return domain.OutputSet{DesignExport: all.DesignExport}, nil
	case PresetWebpages:
		return domain.OutputSet{Webpage: all.Webpage}, nil
	case PresetEverything:
		return all, nil
	}
	return domain.OutputSet{}, fmt.Errorf("unknown preset %q", string(p))
}
