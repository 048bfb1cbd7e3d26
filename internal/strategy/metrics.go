package strategy

import (
	"math"
	"regexp"
	"strconv"
)

// Default metric estimates used when the response names no figure and no
// companion value allows a derivation.
const (
	DefaultSensitivity = 70
	DefaultSpecificity = 85
	DefaultPrecision   = 75
	DefaultNNR         = 4.0
	DefaultSaturation  = 80
)

// Metrics are the estimated retrieval characteristics of a search strategy.
// Percentages are clamped to 0..100.
type Metrics struct {
	Sensitivity int     `json:"sensitivity"`
	Specificity int     `json:"specificity"`
	Precision   int     `json:"precision"`
	NNR         float64 `json:"nnr"`
	Saturation  int     `json:"saturation"`
}

// Spanish-language cues for each metric. The number may carry a percent
// sign or stand bare after the label.
var metricCues = map[string]*regexp.Regexp{
	"sensitivity": regexp.MustCompile(`(?i)sensibilidad[^0-9]{0,20}(\d+(?:[.,]\d+)?)`),
	"specificity": regexp.MustCompile(`(?i)especificidad[^0-9]{0,20}(\d+(?:[.,]\d+)?)`),
	"precision":   regexp.MustCompile(`(?i)precisi[oó]n[^0-9]{0,20}(\d+(?:[.,]\d+)?)`),
	"nnr":         regexp.MustCompile(`(?i)\bNNR\b[^0-9]{0,20}(\d+(?:[.,]\d+)?)`),
	"saturation":  regexp.MustCompile(`(?i)saturaci[oó]n[^0-9]{0,20}(\d+(?:[.,]\d+)?)`),
}

var decimalComma = regexp.MustCompile(`,`)

// ExtractMetrics pulls metric estimates out of an LLM response. Missing
// values are derived from their companions when possible and otherwise
// take fixed defaults, so the result is always fully populated.
func ExtractMetrics(text string) Metrics {
	found := map[string]float64{}
	for name, re := range metricCues {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := decimalComma.ReplaceAllString(m[1], ".")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		found[name] = v
	}

	var out Metrics

	sens, haveSens := found["sensitivity"]
	prec, havePrec := found["precision"]

	if haveSens {
		out.Sensitivity = clampPercent(sens)
	} else {
		out.Sensitivity = DefaultSensitivity
	}

	if havePrec {
		out.Precision = clampPercent(prec)
	} else {
		out.Precision = DefaultPrecision
	}

	if spec, ok := found["specificity"]; ok {
		out.Specificity = clampPercent(spec)
	} else if havePrec {
		out.Specificity = clampPercent(math.Min(95, prec*1.1))
	} else {
		out.Specificity = DefaultSpecificity
	}

	if nnr, ok := found["nnr"]; ok && nnr > 0 {
		out.NNR = roundTenth(nnr)
	} else if havePrec && prec > 0 {
		out.NNR = roundTenth(100 / prec)
	} else {
		out.NNR = DefaultNNR
	}

	if sat, ok := found["saturation"]; ok {
		out.Saturation = clampPercent(sat)
	} else if haveSens {
		out.Saturation = clampPercent(math.Min(99, sens*1.15))
	} else {
		out.Saturation = DefaultSaturation
	}

	return out
}

func clampPercent(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
