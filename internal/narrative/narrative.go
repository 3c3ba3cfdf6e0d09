// Package narrative renders the month write-ups that accompany the plan.
// Placeholder figures are drawn from an injected random source so a fixed
// seed always yields the same text.
package narrative

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"text/template"

	"salesplan-dashboard/internal/currency"
	"salesplan-dashboard/internal/models"
)

// Source produces narrative text for one month. Implementations may be slow or fail.
type Source interface {
	Narrate(ctx context.Context, facts Facts) (string, error)
}

type Facts struct {
	Month       models.Month
	Theme       string
	Context     string
	Focus       string
	HeroOffer   string
	Target      int64
	Baseline    int64
	Anniversary bool
	OfferNames  []string
}

func FactsFor(t models.MonthlyTarget, offers []models.Offer) Facts {
	names := make([]string, 0, len(offers))
	for _, o := range offers {
		if !o.Cancelled {
			names = append(names, o.Name)
		}
	}
	return Facts{
		Month:       t.Month,
		Theme:       t.Theme,
		Context:     t.Context,
		Focus:       t.Focus,
		HeroOffer:   t.HeroOffer,
		Target:      t.Target,
		Baseline:    t.Baseline,
		Anniversary: t.Anniversary,
		OfferNames:  names,
	}
}

const narrativeTemplate = `{{.Month}} runs under the "{{.Theme}}" banner. {{.Context}}. The plan targets {{.Target}} against last year's {{.Baseline}}, a {{.Growth}} swing, with {{.Focus | lower}} as the primary lever.

{{if .Offers}}The offer line-up ({{.Offers}}) is built around {{.HeroOffer}}. We expect roughly {{.Conversion}}% of enquiries to convert and about {{.Walkins}} walk-ins per studio per week.{{else}}No offers are scheduled yet; {{.HeroOffer}} remains the anchor proposition. We expect roughly {{.Conversion}}% of enquiries to convert.{{end}}
{{if .Anniversary}}
As the anniversary month, {{.Month}} carries the year's brand moment and should be staffed for a {{.Uplift}}% lift in footfall.
{{end}}
Watch weekly run-rate against target from the second week and rebalance spend between studios if either trails by more than {{.Threshold}}%.`

var tmpl = template.Must(template.New("narrative").Funcs(template.FuncMap{
	"lower": strings.ToLower,
}).Parse(narrativeTemplate))

type view struct {
	Month       string
	Theme       string
	Context     string
	Focus       string
	HeroOffer   string
	Target      string
	Baseline    string
	Growth      string
	Offers      string
	Anniversary bool
	Conversion  int
	Walkins     int
	Uplift      int
	Threshold   int
}

// Generator is safe for concurrent use; draws from the shared source are serialized.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func New(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// NewSeeded builds a generator over a PCG source.
func NewSeeded(seed uint64) *Generator {
	return New(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

func (g *Generator) between(lo, hi int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return lo + g.rng.IntN(hi-lo+1)
}

func (g *Generator) Narrate(ctx context.Context, f Facts) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !f.Month.Valid() {
		return "", fmt.Errorf("narrative: invalid month %d", int(f.Month))
	}
	mt := models.MonthlyTarget{Target: f.Target, Baseline: f.Baseline}
	v := view{
		Month:       f.Month.Name(),
		Theme:       f.Theme,
		Context:     strings.TrimSuffix(strings.TrimSpace(f.Context), "."),
		Focus:       f.Focus,
		HeroOffer:   f.HeroOffer,
		Target:      currency.Compact(f.Target),
		Baseline:    currency.Compact(f.Baseline),
		Growth:      currency.Percent(mt.Growth()),
		Offers:      strings.Join(f.OfferNames, ", "),
		Anniversary: f.Anniversary,
	}
	// Draw order is fixed so the same seed reproduces the same figures.
	v.Conversion = g.between(18, 32)
	v.Walkins = g.between(25, 60)
	v.Uplift = g.between(20, 45)
	v.Threshold = g.between(8, 15)

	var b strings.Builder
	if err := tmpl.Execute(&b, v); err != nil {
		return "", fmt.Errorf("render narrative: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}

// Paragraphs splits narrative text on blank lines.
func Paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.Join(strings.Fields(p), " "))
		}
	}
	return out
}
