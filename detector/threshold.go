package detector

import "eldersentry/config"

// Alert tiers produced by the threshold engine.
//
//	0 — normal     (composite_z < gentle)
//	1 — gentle     (gentle ≤ composite_z < serious)
//	2 — serious    (serious ≤ composite_z < emergency)
//	3 — emergency  (composite_z ≥ emergency)
const (
	LevelNormal    = 0
	LevelGentle    = 1
	LevelSerious   = 2
	LevelEmergency = 3
)

// AlertLevelFor maps a composite risk score onto the tier ladder. The
// mapping is a monotone step function of compositeZ for fixed thresholds.
func AlertLevelFor(compositeZ float64, cfg *config.Config) int {
	switch {
	case compositeZ >= cfg.Alerts.ZThresholdEmergency:
		return LevelEmergency
	case compositeZ >= cfg.Alerts.ZThresholdSerious:
		return LevelSerious
	case compositeZ >= cfg.Alerts.ZThresholdGentle:
		return LevelGentle
	default:
		return LevelNormal
	}
}
