// Package finance computes underwriting metrics in process. Inputs are
// parsed from the user message and any extracted document text; every
// metric carries a derivation trail showing the arithmetic.
package finance

import (
	"context"
	"fmt"
	"log"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/mavik-ai/prescreen/internal/tools"
)

// Calculator is the in-process calculate tool.
type Calculator struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Calculator {
	if logger == nil {
		logger = log.New(log.Writer(), "[FINANCE] ", log.LstdFlags)
	}
	return &Calculator{logger: logger}
}

func (c *Calculator) ID() tools.ID { return tools.Calculate }

// Invoke parses financial inputs from the message and extracted text,
// then computes every metric whose inputs are present.
func (c *Calculator) Invoke(ctx context.Context, req tools.Request) (tools.Output, error) {
	if err := ctx.Err(); err != nil {
		return tools.Output{}, err
	}

	inputs := ParseInputs(req.Message + "\n" + req.ExtractedText)
	metrics := Compute(inputs)
	if len(metrics) == 0 {
		return tools.Output{}, tools.Errf("no_inputs", "no financial inputs found in message or document")
	}

	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	c.logger.Printf("computed %d metrics: %s", len(metrics), strings.Join(names, ", "))
	return tools.Output{
		Metrics: metrics,
		Summary: fmt.Sprintf("computed %d metrics", len(metrics)),
	}, nil
}

// Inputs are the raw figures metrics are derived from. Zero means absent.
type Inputs struct {
	NOI           float64
	DebtService   float64
	LoanAmount    float64
	PropertyValue float64
	TotalCost     float64
}

var inputPatterns = []struct {
	field    func(*Inputs) *float64
	patterns []*regexp.Regexp
}{
	{func(in *Inputs) *float64 { return &in.NOI },
		compile(`net operating income`, `noi`)},
	{func(in *Inputs) *float64 { return &in.DebtService },
		compile(`annual debt service`, `debt service`)},
	{func(in *Inputs) *float64 { return &in.LoanAmount },
		compile(`loan amount`, `loan`)},
	{func(in *Inputs) *float64 { return &in.PropertyValue },
		compile(`property value`, `purchase price`, `appraised value`, `value`)},
	{func(in *Inputs) *float64 { return &in.TotalCost },
		compile(`total project cost`, `total cost`)},
}

func compile(labels ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(labels))
	for _, label := range labels {
		// label, then optional filler (of, is, =, :), then a dollar figure
		out = append(out, regexp.MustCompile(
			`(?i)\b`+label+`\b[^0-9$%]{0,20}\$?\s*([0-9][0-9,]*(?:\.[0-9]+)?)\s*(mm|m|million|k|thousand)?`))
	}
	return out
}

// ParseInputs scans free text for labeled dollar figures.
func ParseInputs(text string) Inputs {
	var in Inputs
	for _, entry := range inputPatterns {
		slot := entry.field(&in)
		for _, re := range entry.patterns {
			if *slot != 0 {
				break
			}
			if m := re.FindStringSubmatch(text); m != nil {
				*slot = parseAmount(m[1], m[2])
			}
		}
	}
	return in
}

func parseAmount(digits, suffix string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(suffix) {
	case "mm", "m", "million":
		v *= 1_000_000
	case "k", "thousand":
		v *= 1_000
	}
	return v
}

// Compute derives every metric whose inputs are available. Each metric
// records the arithmetic it came from.
func Compute(in Inputs) map[string]tools.Metric {
	metrics := make(map[string]tools.Metric)

	if in.NOI > 0 && in.DebtService > 0 {
		v := in.NOI / in.DebtService
		metrics["dscr"] = tools.Metric{
			Value: round2(v),
			Trail: fmt.Sprintf("DSCR = %s / %s = %.2fx", commas(in.NOI), commas(in.DebtService), v),
		}
	}
	if in.LoanAmount > 0 && in.PropertyValue > 0 {
		v := in.LoanAmount / in.PropertyValue * 100
		metrics["ltv"] = tools.Metric{
			Value: round2(v),
			Trail: fmt.Sprintf("LTV = %s / %s = %.1f%%", commas(in.LoanAmount), commas(in.PropertyValue), v),
		}
	}
	if in.LoanAmount > 0 && in.TotalCost > 0 {
		v := in.LoanAmount / in.TotalCost * 100
		metrics["ltc"] = tools.Metric{
			Value: round2(v),
			Trail: fmt.Sprintf("LTC = %s / %s = %.1f%%", commas(in.LoanAmount), commas(in.TotalCost), v),
		}
	}
	if in.NOI > 0 && in.PropertyValue > 0 {
		v := in.NOI / in.PropertyValue * 100
		metrics["cap_rate"] = tools.Metric{
			Value: round2(v),
			Trail: fmt.Sprintf("Cap Rate = %s / %s = %.2f%%", commas(in.NOI), commas(in.PropertyValue), v),
		}
	}
	if in.NOI > 0 && in.LoanAmount > 0 {
		v := in.NOI / in.LoanAmount * 100
		metrics["debt_yield"] = tools.Metric{
			Value: round2(v),
			Trail: fmt.Sprintf("Debt Yield = %s / %s = %.2f%%", commas(in.NOI), commas(in.LoanAmount), v),
		}
	}

	return metrics
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// commas formats a dollar figure with thousands separators, dropping
// the fraction when it is whole.
func commas(v float64) string {
	whole := int64(v)
	s := strconv.FormatInt(whole, 10)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	out := b.String()
	if frac := v - float64(whole); frac > 1e-9 {
		out += strings.TrimPrefix(strconv.FormatFloat(frac, 'f', 2, 64), "0")
	}
	if neg {
		out = "-" + out
	}
	return out
}
