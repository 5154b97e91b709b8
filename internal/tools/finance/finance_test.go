package finance

import (
	"context"
	"testing"

	"github.com/mavik-ai/prescreen/internal/tools"
)

func TestParseInputs(t *testing.T) {
	in := ParseInputs("Calculate DSCR for NOI of 2,500,000 and debt service of 1,800,000")
	if in.NOI != 2500000 {
		t.Fatalf("NOI = %v, want 2500000", in.NOI)
	}
	if in.DebtService != 1800000 {
		t.Fatalf("DebtService = %v, want 1800000", in.DebtService)
	}
}

func TestParseInputsSuffixes(t *testing.T) {
	in := ParseInputs("loan amount of $32.5MM against a purchase price of 50 million")
	if in.LoanAmount != 32_500_000 {
		t.Fatalf("LoanAmount = %v, want 32500000", in.LoanAmount)
	}
	if in.PropertyValue != 50_000_000 {
		t.Fatalf("PropertyValue = %v, want 50000000", in.PropertyValue)
	}
}

func TestComputeDSCRTrail(t *testing.T) {
	metrics := Compute(Inputs{NOI: 2_500_000, DebtService: 1_800_000})
	m, ok := metrics["dscr"]
	if !ok {
		t.Fatalf("dscr missing from %v", metrics)
	}
	want := "DSCR = 2,500,000 / 1,800,000 = 1.39x"
	if m.Trail != want {
		t.Fatalf("trail = %q, want %q", m.Trail, want)
	}
	if m.Value != 1.39 {
		t.Fatalf("value = %v, want 1.39", m.Value)
	}
}

func TestComputeFullSet(t *testing.T) {
	metrics := Compute(Inputs{
		NOI:           2_000_000,
		DebtService:   1_500_000,
		LoanAmount:    25_000_000,
		PropertyValue: 40_000_000,
		TotalCost:     45_000_000,
	})
	for _, name := range []string{"dscr", "ltv", "ltc", "cap_rate", "debt_yield"} {
		if _, ok := metrics[name]; !ok {
			t.Fatalf("metric %s missing", name)
		}
	}
	if got, want := metrics["ltv"].Trail, "LTV = 25,000,000 / 40,000,000 = 62.5%"; got != want {
		t.Fatalf("ltv trail = %q, want %q", got, want)
	}
}

func TestInvokeNoInputs(t *testing.T) {
	calc := New(nil)
	_, err := calc.Invoke(context.Background(), tools.Request{Message: "what is a cap rate?"})
	if err == nil {
		t.Fatal("expected error for message with no figures")
	}
	terr, ok := err.(*tools.Error)
	if !ok {
		t.Fatalf("expected *tools.Error, got %T", err)
	}
	if terr.Code != "no_inputs" {
		t.Fatalf("code = %q, want no_inputs", terr.Code)
	}
}

func TestInvokeSuccess(t *testing.T) {
	calc := New(nil)
	out, err := calc.Invoke(context.Background(), tools.Request{
		Message: "Calculate DSCR for NOI of 2,500,000 and debt service of 1,800,000",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(out.Metrics) != 1 {
		t.Fatalf("got %d metrics, want 1", len(out.Metrics))
	}
	if out.Metrics["dscr"].Value != 1.39 {
		t.Fatalf("dscr = %v, want 1.39", out.Metrics["dscr"].Value)
	}
}
