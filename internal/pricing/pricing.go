// Package pricing implements the cost model for upstream generative calls
// and the per-job cost ledger that aggregates token usage while a batch runs.
package pricing

// Breakdown is the cost of one or more upstream calls, in USD.
type Breakdown struct {
	InputCost  float64 `json:"input_cost"`
	OutputCost float64 `json:"output_cost"`
	Total      float64 `json:"total"`
}

// rate holds per-million-token prices for one model tier.
type rate struct {
	inputPerM  float64
	outputPerM float64
}

// rates maps model identifiers to their published prices. Models not listed
// fall back to defaultRate.
var rates = map[string]rate{
	"gemini-2.5-pro":        {inputPerM: 1.25, outputPerM: 10.00},
	"gemini-2.5-flash":      {inputPerM: 0.30, outputPerM: 2.50},
	"gemini-2.5-flash-lite": {inputPerM: 0.10, outputPerM: 0.40},
	"gemini-2.0-flash":      {inputPerM: 0.10, outputPerM: 0.40},
}

var defaultRate = rate{inputPerM: 0.30, outputPerM: 2.50}

// Cost computes the cost breakdown for a call against the given model.
func Cost(model string, inputTokens, outputTokens int) Breakdown {
	r, ok := rates[model]
	if !ok {
		r = defaultRate
	}
	in := float64(inputTokens) / 1e6 * r.inputPerM
	out := float64(outputTokens) / 1e6 * r.outputPerM
	return Breakdown{
		InputCost:  in,
		OutputCost: out,
		Total:      in + out,
	}
}

// KnownModel reports whether the model has an explicit pricing entry.
func KnownModel(model string) bool {
	_, ok := rates[model]
	return ok
}
