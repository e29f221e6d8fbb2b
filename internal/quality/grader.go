// Package quality grades how much of the resolution pipeline succeeded.
package quality

import "strings"

type Tier string

const (
	High    Tier = "HIGH"
	Medium  Tier = "MEDIUM"
	Low     Tier = "LOW"
	Minimal Tier = "MINIMAL"
	None    Tier = "NONE"
)

type Strategy string

const (
	StrategyValidation Strategy = "validation"
	StrategySQL        Strategy = "template_or_generated_sql"
	StrategySemantic   Strategy = "semantic_only"
	StrategyTextual    Strategy = "textual_only"
	StrategyAggregate  Strategy = "aggregate_fallback"
)

// Rank orders tiers from NONE (0) to HIGH (4).
func (t Tier) Rank() int {
	switch t {
	case High:
		return 4
	case Medium:
		return 3
	case Low:
		return 2
	case Minimal:
		return 1
	default:
		return 0
	}
}

func (t Tier) Degraded() bool {
	return t == Medium || t == Low
}

func ParseTier(s string) Tier {
	switch t := Tier(strings.ToUpper(strings.TrimSpace(s))); t {
	case High, Medium, Low, Minimal:
		return t
	default:
		return None
	}
}

// Grade returns the tier earned by the strategy that produced the answer.
// A strategy that produced nothing earns NONE.
func Grade(strategy Strategy, produced bool) Tier {
	if !produced {
		return None
	}
	switch strategy {
	case StrategySQL:
		return High
	case StrategySemantic:
		return Medium
	case StrategyTextual:
		return Low
	case StrategyAggregate:
		return Minimal
	default:
		return None
	}
}

// Label is the Spanish name of the method behind a degraded answer.
func (s Strategy) Label() string {
	switch s {
	case StrategySQL:
		return "consulta directa a tus datos"
	case StrategySemantic:
		return "búsqueda semántica"
	case StrategyTextual:
		return "búsqueda por palabras clave"
	case StrategyAggregate:
		return "resumen general de tu cuenta"
	default:
		return "validación"
	}
}
