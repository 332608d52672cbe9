package preflight

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/resumatch/internal/catalog"
	"github.com/Aman-CERP/resumatch/internal/config"
	"github.com/Aman-CERP/resumatch/internal/engine"
	"github.com/Aman-CERP/resumatch/internal/vector"
)

// CheckIndexes loads each persisted index pair to confirm the two files
// agree with each other and with the configured metric and dimensions.
// A missing index is a warning; a broken one fails without being critical,
// since a rebuild repairs it.
func (c *Checker) CheckIndexes(cfg *config.Config) CheckResult {
	result := CheckResult{
		Name:    "indexes",
		Details: cfg.Data.Dir,
	}
	ec := engine.ConfigFrom(cfg)

	var parts, missing, broken []string
	for _, kind := range []catalog.Kind{catalog.KindJob, catalog.KindCandidate} {
		name := engine.IndexName(kind)
		vc := vector.Config{
			Dimensions: cfg.Embeddings.Dimensions,
			Metric:     ec.Metric,
			Dir:        ec.Dir,
			Name:       name,
		}
		if !vector.Exists(vc) {
			missing = append(missing, name)
			parts = append(parts, name+": none")
			continue
		}
		x, err := vector.Load(vc)
		if err != nil {
			broken = append(broken, fmt.Sprintf("%s: %v", name, err))
			parts = append(parts, name+": broken")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %d vectors (%s, %s)", name, x.Count(), x.Config().Backend, x.Metric()))
	}

	result.Message = strings.Join(parts, ", ")
	switch {
	case len(broken) > 0:
		result.Status = StatusFail
		result.Details = strings.Join(broken, "; ")
		result.Fix = "Run 'resumatch rebuild all'"
	case len(missing) > 0:
		result.Status = StatusWarn
		target := "all"
		if len(missing) == 1 {
			target = missing[0]
		}
		result.Fix = fmt.Sprintf("Run 'resumatch rebuild %s' once records are imported", target)
	default:
		result.Status = StatusPass
	}
	return result
}
