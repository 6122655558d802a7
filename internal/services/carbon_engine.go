package services

import (
	"bluecarbon-mrv/backend/pkg/models"
)

// CarbonEngine derives carbon and CO2-equivalent figures from a biomass
// estimate. Pure and deterministic: identical inputs always yield identical
// outputs, and all constants are injected configuration.
type CarbonEngine struct {
	carbonFraction      float64
	co2ConversionFactor float64
	riskBufferPercent   float64
}

// NewCarbonEngine creates a CarbonEngine with the given constants
// (IPCC Tier 1 defaults: 0.47, 3.67, 0.15).
func NewCarbonEngine(carbonFraction, co2ConversionFactor, riskBufferPercent float64) *CarbonEngine {
	return &CarbonEngine{
		carbonFraction:      carbonFraction,
		co2ConversionFactor: co2ConversionFactor,
		riskBufferPercent:   riskBufferPercent,
	}
}

// Calculate converts a per-hectare biomass estimate over an area into carbon
// tonnage. When applyBuffer is set the conservative risk buffer is discounted
// before CO2 conversion.
func (e *CarbonEngine) Calculate(biomass, areaHectares float64, applyBuffer bool) models.CarbonResult {
	totalBiomass := biomass * areaHectares
	carbon := totalBiomass * e.carbonFraction

	buffered := carbon
	appliedBuffer := 0.0
	if applyBuffer {
		buffered = carbon * (1 - e.riskBufferPercent)
		appliedBuffer = e.riskBufferPercent
	}

	return models.CarbonResult{
		BiomassTonnes:        totalBiomass,
		CarbonTonnes:         carbon,
		CarbonTonnesBuffered: buffered,
		CO2EquivalentTonnes:  buffered * e.co2ConversionFactor,
		AreaHectares:         areaHectares,
		CarbonFraction:       e.carbonFraction,
		CO2ConversionFactor:  e.co2ConversionFactor,
		RiskBufferPercent:    appliedBuffer,
		CalculationMethod:    "IPCC Tier 1",
	}
}
