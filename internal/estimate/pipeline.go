package estimate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"kcal/internal/core"
	"kcal/internal/metrics"
)

// Estimate is a composite entry together with the items it was built from.
type Estimate struct {
	Entry core.FoodEntry `json:"entry"`
	Items []ResolvedItem `json:"items"`
}

// Pipeline sequences the free-text path: interpret foods, then look up
// nutrients for the interpreted names, then fall back per item to the
// structured finder and finally the default profile.
type Pipeline struct {
	interpreter Interpreter
	nutrients   NutrientLookup
	finder      FoodFinder
	scanner     LabelScanner
	logger      *slog.Logger
}

type PipelineConfig struct {
	Interpreter Interpreter
	Nutrients   NutrientLookup
	Finder      FoodFinder   // optional
	Scanner     LabelScanner // optional
	Logger      *slog.Logger
}

var (
	ErrNoInterpreter = errors.New("no food interpreter configured")
	ErrNoScanner     = errors.New("no label scanner configured")
)

func NewPipeline(cfg PipelineConfig) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		interpreter: cfg.Interpreter,
		nutrients:   cfg.Nutrients,
		finder:      cfg.Finder,
		scanner:     cfg.Scanner,
		logger:      logger,
	}
}

// EstimateText interprets text and builds one composite entry. Only the
// interpretation step can fail the whole call; nutrient gaps are filled.
func (p *Pipeline) EstimateText(ctx context.Context, text string) (Estimate, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Estimate{}, &core.ValidationError{Field: "text", Reason: "required"}
	}
	if p.interpreter == nil {
		return Estimate{}, core.InterpretationError("unavailable", ErrNoInterpreter)
	}

	start := time.Now()
	interp, err := p.interpreter.InterpretFoods(ctx, text)
	metrics.ObserveEstimation(string(core.KindInterpret), err, time.Since(start))
	if err != nil {
		if errors.Is(err, core.ErrEstimation) {
			return Estimate{}, err
		}
		return Estimate{}, core.InterpretationError("food interpreter failed", err)
	}

	items := make([]FoodItem, 0, len(interp.Items))
	for _, it := range interp.Items {
		if strings.TrimSpace(it.Name) != "" {
			items = append(items, it)
		}
	}
	if len(items) == 0 {
		return Estimate{}, core.InterpretationError("no foods detected", nil)
	}

	profiles := p.lookup(ctx, items)

	resolved := make([]ResolvedItem, 0, len(items))
	for i, it := range items {
		per100g, source := p.resolveProfile(ctx, items, i, profiles)
		resolved = append(resolved, Resolve(it, per100g, source))
	}

	entry, err := Composite(resolved)
	if err != nil {
		return Estimate{}, core.InterpretationError("no foods detected", err)
	}
	return Estimate{Entry: entry, Items: resolved}, nil
}

func (p *Pipeline) lookup(ctx context.Context, items []FoodItem) []NutrientProfile {
	if p.nutrients == nil {
		return nil
	}
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = strings.TrimSpace(it.Name)
	}
	start := time.Now()
	profiles, err := p.nutrients.LookupNutrients(ctx, names)
	metrics.ObserveEstimation(string(core.KindLookup), err, time.Since(start))
	if err != nil {
		p.logger.WarnContext(ctx, "Nutrient lookup failed, using fallbacks", "foods", len(names), "error", err)
		return nil
	}
	return profiles
}

// resolveProfile picks the per-100g values for item i: a lookup result
// matching by name, else the result at the same position, else the finder,
// else the default profile.
func (p *Pipeline) resolveProfile(ctx context.Context, items []FoodItem, i int, profiles []NutrientProfile) (core.Nutrients, string) {
	it := items[i]
	if prof, ok := matchProfile(items, i, profiles); ok {
		return prof.Per100g, SourceAI
	}
	if p.finder != nil {
		term := it.Name
		if strings.TrimSpace(it.NameEN) != "" {
			term = it.NameEN
		}
		m, err := p.finder.FoodLookupByName(ctx, term)
		switch {
		case err != nil && !errors.Is(err, core.ErrNotFound):
			p.logger.WarnContext(ctx, "Food lookup failed", "food", term, "error", err)
		case m != nil:
			return m.Per100g, SourceOpenFoodFacts
		}
	}
	return DefaultProfile, SourceDefault
}

// matchProfile never returns a profile without nutrient values, so a food
// the lookup only named still goes through the fallbacks.
func matchProfile(items []FoodItem, i int, profiles []NutrientProfile) (NutrientProfile, bool) {
	for _, prof := range profiles {
		if sameName(prof.Name, items[i].Name) {
			return prof, prof.Per100g != (core.Nutrients{})
		}
	}
	if i >= len(profiles) || profiles[i].Per100g == (core.Nutrients{}) {
		return NutrientProfile{}, false
	}
	// A positional result is skipped when another item claims it by name.
	for j, other := range items {
		if j != i && sameName(profiles[i].Name, other.Name) {
			return NutrientProfile{}, false
		}
	}
	return profiles[i], true
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ScanLabel reads a nutrition panel from img.
func (p *Pipeline) ScanLabel(ctx context.Context, img Image) (LabelScan, error) {
	if p.scanner == nil {
		return LabelScan{}, core.ScanError("unavailable", ErrNoScanner)
	}
	if len(img.Data) == 0 {
		return LabelScan{}, &core.ValidationError{Field: "image", Reason: "required"}
	}
	start := time.Now()
	scan, err := p.scanner.ScanLabel(ctx, img)
	metrics.ObserveEstimation(string(core.KindScan), err, time.Since(start))
	if err != nil {
		if errors.Is(err, core.ErrEstimation) {
			return LabelScan{}, err
		}
		return LabelScan{}, core.ScanError("label scanner failed", err)
	}
	if err := scan.Validate(); err != nil {
		return LabelScan{}, err
	}
	if !scan.PerHundred() {
		p.logger.WarnContext(ctx, "Label reference amount is not 100g; values will be scaled as per 100g",
			"product", scan.Product, "per", scan.Per)
	}
	return scan, nil
}

// FindFood runs the structured lookup directly. A miss returns ErrNotFound.
func (p *Pipeline) FindFood(ctx context.Context, term string) (FoodMatch, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return FoodMatch{}, &core.ValidationError{Field: "q", Reason: "required"}
	}
	if p.finder == nil {
		return FoodMatch{}, core.ErrNotFound
	}
	m, err := p.finder.FoodLookupByName(ctx, term)
	if err != nil {
		return FoodMatch{}, err
	}
	if m == nil {
		return FoodMatch{}, core.ErrNotFound
	}
	return *m, nil
}
