package accounts

import "github.com/riskbook-dev/riskbook/internal/model"

// Template is a built-in prop-firm rule preset. Limits are percentages of
// the starting balance so one template covers every account size the firm
// sells.
type Template struct {
	Name         string             `json:"name"`
	Firm         string             `json:"firm"`
	ProfitTarget model.Limit        `json:"profit_target"`
	DailyLimit   model.Limit        `json:"daily_limit"`
	MaxLimit     model.Limit        `json:"max_limit"`
	DrawdownMode model.DrawdownMode `json:"drawdown_mode"`
}

// PhaseParams converts the template into phase limits.
func (t Template) PhaseParams() PhaseParams {
	return PhaseParams{
		ProfitTarget: t.ProfitTarget,
		DailyLimit:   t.DailyLimit,
		MaxLimit:     t.MaxLimit,
		DrawdownMode: t.DrawdownMode,
	}
}

// Templates returns the built-in presets.
func Templates() []Template {
	return []Template{
		{
			Name:         "maven",
			Firm:         "Maven",
			ProfitTarget: model.Percent("10"),
			DailyLimit:   model.Percent("4"),
			MaxLimit:     model.Percent("8"),
			DrawdownMode: model.DrawdownStatic,
		},
		{
			Name:         "topstep",
			Firm:         "Topstep",
			ProfitTarget: model.Percent("6"),
			DailyLimit:   model.Percent("2"),
			MaxLimit:     model.Percent("4"),
			DrawdownMode: model.DrawdownTrailing,
		},
		{
			Name:         "ftmo",
			Firm:         "FTMO",
			ProfitTarget: model.Percent("10"),
			DailyLimit:   model.Percent("5"),
			MaxLimit:     model.Percent("10"),
			DrawdownMode: model.DrawdownStatic,
		},
	}
}

// TemplateByName looks up a preset by its name.
func TemplateByName(name string) (Template, bool) {
	for _, t := range Templates() {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}
