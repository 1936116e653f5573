// Package pipeline implements the nine hydraulic-workflow stages plus the
// health check, and assembles their compiled-in registry.Descriptor table.
package pipeline

// ConflationDocument maps reach identifier to its conflation record, plus a
// source-model-level metadata block, per spec.md §6's schema.
type ConflationDocument struct {
	Metadata ConflationMetadata         `json:"metadata"`
	Reaches  map[string]ReachConflation `json:"reaches"`
}

// ConflationMetadata is a conflation document's top-level provenance record.
type ConflationMetadata struct {
	SourceNetwork  string `json:"source_network"`
	SourceRASModel string `json:"source_ras_model"`
	LengthUnits    string `json:"length_units"`
	FlowUnits      string `json:"flow_units"`
}

// CrossSectionSelection identifies one cross-section chosen as a reach's
// upstream or downstream boundary.
type CrossSectionSelection struct {
	River        string  `json:"river"`
	Reach        string  `json:"reach"`
	XSID         string  `json:"xs_id"`
	MinElevation float64 `json:"min_elevation"`
	MaxElevation float64 `json:"max_elevation"`
}

// ReachConflation is one reach's conflation record.
type ReachConflation struct {
	USXS              *CrossSectionSelection `json:"us_xs"`
	DSXS              *CrossSectionSelection `json:"ds_xs"`
	Eclipsed          bool                   `json:"eclipsed"`
	LowFlow           float64                `json:"low_flow"`
	HighFlow          float64                `json:"high_flow"`
	NetworkToID       string                 `json:"network_to_id"`
	Metrics           ConflationMetrics      `json:"metrics"`
	OverlappedReaches []string               `json:"overlapped_reaches"`
	EclipsedReaches   []string               `json:"eclipsed_reaches"`
}

// ConflationMetrics is one reach's terrain/geometry-agreement summary
// between its source-model cross-sections and the reference network.
type ConflationMetrics struct {
	XS struct {
		CenterlineOffset float64 `json:"centerline_offset"`
		ThalwegOffset    float64 `json:"thalweg_offset"`
	} `json:"xs"`
	Lengths struct {
		RAS               float64 `json:"ras"`
		Network           float64 `json:"network"`
		NetworkToRASRatio float64 `json:"network_to_ras_ratio"`
	} `json:"lengths"`
	Coverage struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"coverage"`
}

// ResidualStats is the residuals block repeated throughout a terrain
// agreement document.
type ResidualStats struct {
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Max   float64 `json:"max"`
	Min   float64 `json:"min"`
	P25   float64 `json:"p_25"`
	P50   float64 `json:"p_50"`
	P75   float64 `json:"p_75"`
	RMSE  float64 `json:"rmse"`
	NRMSE float64 `json:"normalized_rmse"`
}

// AgreementMetrics is one elevation sample's terrain-agreement record.
type AgreementMetrics struct {
	InundationOverlap        float64       `json:"inundation_overlap"`
	FlowAreaOverlap          float64       `json:"flow_area_overlap"`
	TopWidthAgreement        float64       `json:"top_width_agreement"`
	FlowAreaAgreement        float64       `json:"flow_area_agreement"`
	HydraulicRadiusAgreement float64       `json:"hydraulic_radius_agreement"`
	Residuals                ResidualStats `json:"residuals"`
}

// CrossSectionSummary extends AgreementMetrics with cross-section-level
// shape-comparison statistics.
type CrossSectionSummary struct {
	AgreementMetrics
	RSquared                   float64 `json:"r_squared"`
	SpectralAngle              float64 `json:"spectral_angle"`
	SpectralCorrelation        float64 `json:"spectral_correlation"`
	Correlation                float64 `json:"correlation"`
	MaxCrossCorrelation        float64 `json:"max_cross_correlation"`
	ThalwegElevationDifference float64 `json:"thalweg_elevation_difference"`
}

// TerrainAgreementDocument is create_ras_terrain's per-cross-section and
// model-level terrain-agreement output.
type TerrainAgreementDocument struct {
	CrossSections map[string]map[string]AgreementMetrics `json:"xs"`
	Summaries     map[string]CrossSectionSummary         `json:"summary"`
	ModelSummary  CrossSectionSummary                    `json:"model_summary"`
}

// RatingCurvePoint is one (discharge, stage) sample of a rating curve.
type RatingCurvePoint struct {
	Discharge float64 `json:"discharge"`
	Stage     float64 `json:"stage"`
}

// RatingCurve is a monotone discharge-to-stage mapping at one cross-section.
type RatingCurve struct {
	Points []RatingCurvePoint `json:"points"`
}

// StageAt interpolates the rating curve's stage at discharge q. Discharges
// outside the curve's range are clamped to the nearest endpoint.
func (c RatingCurve) StageAt(q float64) float64 {
	if len(c.Points) == 0 {
		return 0
	}

	if q <= c.Points[0].Discharge {
		return c.Points[0].Stage
	}

	last := len(c.Points) - 1
	if q >= c.Points[last].Discharge {
		return c.Points[last].Stage
	}

	for i := 1; i < len(c.Points); i++ {
		if q <= c.Points[i].Discharge {
			lo, hi := c.Points[i-1], c.Points[i]
			frac := (q - lo.Discharge) / (hi.Discharge - lo.Discharge)

			return lo.Stage + frac*(hi.Stage-lo.Stage)
		}
	}

	return c.Points[last].Stage
}
