package stat

import (
	"github.com/sanspareilsmyn/pumplens/internal/config"
)

// Tracked quantity names, in output column order.
const (
	QMoment        = "moment"
	QPower         = "power"
	QMassFlow      = "massFlow"
	QMassFlowIn    = "massFlowIn"
	QPIn           = "pIn"
	QPOut          = "pOut"
	QPressureRatio = "pressureRatio"
	QTIn           = "TIn"
	QTOut          = "TOut"
	QEfficiency    = "efficiency"
)

// columns maps quantity names to their position in a sample. Quantities
// that do not apply to the configuration are absent.
type columns struct {
	names []string
	index map[string]int
}

func newColumns(cfg config.StatConfig) columns {
	var names []string
	if len(cfg.MomentPatches) > 0 {
		names = append(names, QMoment, QPower)
	}
	names = append(names, QMassFlow, QMassFlowIn, QPIn, QPOut, QPressureRatio)
	if cfg.TName != "" {
		names = append(names, QTIn, QTOut)
	}
	if len(cfg.MomentPatches) > 0 {
		names = append(names, QEfficiency)
	}

	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}
	return columns{names: names, index: index}
}

func (c columns) has(name string) bool {
	_, ok := c.index[name]
	return ok
}
