package domain

// OutputKind names one artifact type the pipeline can produce.
type OutputKind string

const (
	OutputDocument     OutputKind = "document"
	OutputDesignExport OutputKind = "design_export"
	OutputWebpage      OutputKind = "webpage"
)

// OrderedKinds is the fixed order in which output kinds are attempted for a tip.
var OrderedKinds = []OutputKind{OutputDocument, OutputDesignExport, OutputWebpage}

// DocumentOptions configures PDF generation.
type DocumentOptions struct {
	PageSize     string `json:"pageSize" yaml:"pageSize"`
	IncludeSteps bool   `json:"includeSteps" yaml:"includeSteps"`
}

// DesignExportOptions configures drafts created in the design tool.
type DesignExportOptions struct {
	TemplateID string `json:"templateId" yaml:"templateId"`
	BrandKit   string `json:"brandKit" yaml:"brandKit"`
}

// WebpageOptions configures static page generation.
type WebpageOptions struct {
	Theme         string `json:"theme" yaml:"theme"`
	IncludeSocial bool   `json:"includeSocial" yaml:"includeSocial"`
}

// OutputSet enables output kinds by presence: a nil entry means the kind is off.
type OutputSet struct {
	Document     *DocumentOptions     `json:"document,omitempty" yaml:"document,omitempty"`
	DesignExport *DesignExportOptions `json:"designExport,omitempty" yaml:"designExport,omitempty"`
	Webpage      *WebpageOptions      `json:"webpage,omitempty" yaml:"webpage,omitempty"`
}

// Enabled reports whether kind is switched on.
func (s OutputSet) Enabled(kind OutputKind) bool {
	switch kind {
	case OutputDocument:
		return s.Document != nil
	case OutputDesignExport:
		return s.DesignExport != nil
	case OutputWebpage:
		return s.Webpage != nil
	}
	return false
}

// Kinds lists enabled kinds in OrderedKinds order.
func (s OutputSet) Kinds() []OutputKind {
	kinds := make([]OutputKind, 0, len(OrderedKinds))
	for _, kind := range OrderedKinds {
		if s.Enabled(kind) {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// AllOutputs enables every kind with default options.
func AllOutputs() OutputSet {
	return OutputSet{
		Document:     &DocumentOptions{PageSize: "A4", IncludeSteps: true},
		DesignExport: &DesignExportOptions{},
		Webpage:      &WebpageOptions{Theme: "light", IncludeSocial: true},
	}
}

// ProductionJob is everything a producer gets for one (tip, kind) attempt.
type ProductionJob struct {
	Tip       Tip
	Enhanced  *EnhancedContent
	OutputDir string
	Options   OutputSet
}
