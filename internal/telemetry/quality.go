package telemetry

// Quality grades how many sensors report a level.
type Quality string

const (
	QualityNoData    Quality = "no_data"
	QualityInvalid   Quality = "invalid"
	QualityPoor      Quality = "poor"
	QualityFair      Quality = "fair"
	QualityGood      Quality = "good"
	QualityExcellent Quality = "excellent"
)

// Summary holds aggregate statistics over one set of readings
type Summary struct {
	Count  int
	Active int // sensors reading above zero
	Mean   float64
	Min    uint8
	Max    uint8
}

// Summarize computes mean, min and max of the readings.
func Summarize(values []uint8) Summary {
	summary := Summary{Count: len(values)}
	if len(values) == 0 {
		return summary
	}

	summary.Min = values[0]
	total := 0
	for _, v := range values {
		total += int(v)
		if v > 0 {
			summary.Active++
		}
		if v < summary.Min {
			summary.Min = v
		}
		if v > summary.Max {
			summary.Max = v
		}
	}
	summary.Mean = float64(total) / float64(len(values))
	return summary
}

// Grade classifies readings by the share of sensors above zero:
// >=80% excellent, >=60% good, >=40% fair, otherwise poor.
func Grade(values []uint8) Quality {
	summary := Summarize(values)
	switch {
	case summary.Count == 0:
		return QualityNoData
	case summary.Active == 0:
		return QualityInvalid
	}

	percent := float64(summary.Active) / float64(summary.Count) * 100
	switch {
	case percent >= 80:
		return QualityExcellent
	case percent >= 60:
		return QualityGood
	case percent >= 40:
		return QualityFair
	default:
		return QualityPoor
	}
}
