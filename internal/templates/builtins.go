package templates

import "github.com/acrebrook/modelgrid/internal/recipe"

// builtins returns the standard template library. Formula shapes follow
// the usual project-finance corkscrew: opening reads last period's
// closing through a lag, so the chain stays acyclic within a period.
func builtins() []*Template {
	return []*Template{
		{
			Kind: "reserve_account",
			Doc:  "Target-funded reserve: tops up to the target while the window flag is active, releases the balance at the window end.",
			Inputs: []Input{
				{Key: "target", Doc: "balance the account funds toward"},
				{Key: "window", Doc: "flag reference for the active window"},
			},
			Outputs: []Output{
				{Key: "opening", Name: "Opening balance", Type: recipe.StockStart,
					Formula: "SHIFT($self.closing, 1)"},
				{Key: "funding", Name: "Funding", Type: recipe.Flow,
					Formula: "MAX($input.target - $self.opening, 0) * $input.window"},
				{Key: "release", Name: "Release", Type: recipe.Flow,
					Formula: "($self.opening + $self.funding) * $input.window.End"},
				{Key: "closing", Name: "Closing balance", Type: recipe.Stock,
					Formula: "$self.opening + $self.funding - $self.release"},
			},
		},
		{
			Kind: "debt_facility",
			Doc:  "Drawdown-to-need facility with interest on the opening balance and equal-principal repayment over the remaining repayment window. The size output is a solver cell.",
			Inputs: []Input{
				{Key: "need", Doc: "funding requirement drawn while available"},
				{Key: "rate", Default: "0.05", Doc: "annual interest rate"},
				{Key: "avail", Doc: "flag reference for the availability window"},
				{Key: "repay", Doc: "flag reference for the repayment window"},
			},
			Outputs: []Output{
				{Key: "drawdown", Name: "Drawdown", Type: recipe.Flow,
					Formula: "$input.need * $input.avail"},
				{Key: "opening", Name: "Opening balance", Type: recipe.StockStart,
					Formula: "SHIFT($self.closing, 1)"},
				{Key: "interest", Name: "Interest", Type: recipe.Flow,
					Formula: "$self.opening * $input.rate / T.MiY"},
				{Key: "principal", Name: "Principal", Type: recipe.Flow,
					Formula: "IF($input.repay, $self.opening / MAX(FWDSUM($input.repay, 600), 1), 0)"},
				{Key: "closing", Name: "Closing balance", Type: recipe.Stock,
					Formula: "$self.opening + $self.drawdown - $self.principal"},
				{Key: "size", Name: "Facility size", Type: recipe.Stock, Solver: true,
					Formula: "0"},
				// M_SELF resolves to this instance's own M prefix, so the
				// published size cell is addressed the way external tools see it.
				{Key: "headroom", Name: "Headroom", Type: recipe.Stock,
					Formula: "M_SELF.6 - $self.closing"},
			},
		},
		{
			Kind: "depreciation",
			Doc:  "Straight-line write-down of additions over a fixed term. The term must be a plain number of months so the lag window stays static.",
			Inputs: []Input{
				{Key: "additions", Doc: "reference to the additions flow"},
				{Key: "term", Default: "60", Doc: "write-down term in months"},
			},
			Outputs: []Output{
				{Key: "charge", Name: "Depreciation charge", Type: recipe.Flow,
					Formula: "(CUMSUM($input.additions) - SHIFT(CUMSUM($input.additions), $input.term)) / $input.term"},
				{Key: "nbv", Name: "Net book value", Type: recipe.Stock,
					Formula: "CUMSUM($input.additions) - CUMSUM($self.charge)"},
			},
		},
	}
}
