package matcher

import (
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/services/normalize"
)

// DefaultFuzzyThreshold 是模糊匹配的默认阈值，相似度必须严格大于它才会被接受。
const DefaultFuzzyThreshold = 0.90

// Index 是匹配器需要的只读数据集视图，dataset.Index 实现了它。
type Index interface {
	Lookup(normalized string) (*model.DatasetEntry, bool)
	LookupPackage(pkg string) (*model.DatasetEntry, bool)
	Entries() []*model.DatasetEntry
}

// Options 控制匹配行为。
type Options struct {
	FuzzyEnabled   bool
	FuzzyThreshold float64
}

// DefaultOptions 返回默认匹配配置。
func DefaultOptions() Options {
	return Options{FuzzyEnabled: true, FuzzyThreshold: DefaultFuzzyThreshold}
}

// Matcher 把已安装应用关联到数据集条目。无状态，可并发调用。
type Matcher struct {
	index Index
	opts  Options
}

// New 创建 Matcher。
func New(index Index, opts Options) *Matcher {
	return &Matcher{index: index, opts: opts}
}

// Match 依次尝试：包名（名称索引、包名别名）→ 展示名精确 → 展示名模糊。
//
// 展示名缺失或规范化后为空时只做包名匹配；模糊匹配出现并列最佳时判为未命中。
func (m *Matcher) Match(app model.InstalledApp) model.MatchResult {
	if pkg := normalize.Name(app.PackageID); pkg != "" {
		if e, ok := m.index.Lookup(pkg); ok {
			return model.MatchResult{Entry: e, Strategy: model.MatchExact, MatchedOn: pkg, Similarity: 1}
		}
		if e, ok := m.index.LookupPackage(app.PackageID); ok {
			return model.MatchResult{Entry: e, Strategy: model.MatchExact, MatchedOn: pkg, Similarity: 1}
		}
	}

	name := normalize.Key(app.DisplayName)
	if name == "" {
		return none()
	}
	if e, ok := m.index.Lookup(name); ok {
		return model.MatchResult{Entry: e, Strategy: model.MatchNormalizedExact, MatchedOn: name, Similarity: 1}
	}
	if !m.opts.FuzzyEnabled {
		return none()
	}
	return m.fuzzy(name)
}

func (m *Matcher) fuzzy(name string) model.MatchResult {
	query := []rune(name)
	var (
		best    *model.DatasetEntry
		bestSim = -1.0
		tied    bool
	)
	for _, e := range m.index.Entries() {
		cand := []rune(e.NormalizedName)
		// 长度差决定了相似度上限，达不到阈值或当前最佳的候选直接跳过。
		if upper := ratioUpperBound(len(query), len(cand)); upper <= m.opts.FuzzyThreshold || upper < bestSim {
			continue
		}
		sim := Similarity(query, cand)
		switch {
		case sim > bestSim:
			best, bestSim, tied = e, sim, false
		case sim == bestSim:
			tied = true
		}
	}
	if best == nil || tied || bestSim <= m.opts.FuzzyThreshold {
		return none()
	}
	return model.MatchResult{
		Entry:      best,
		Strategy:   model.MatchFallbackFuzzy,
		MatchedOn:  best.NormalizedName,
		Similarity: bestSim,
	}
}

// Similarity 返回两个字符串的 Levenshtein 比率：(|a|+|b|-dist)/(|a|+|b|)，替换代价为 2。
func Similarity(a, b []rune) float64 {
	return levenshtein.RatioForStrings(a, b, levenshtein.DefaultOptions)
}

func ratioUpperBound(la, lb int) float64 {
	if la+lb == 0 {
		return 1
	}
	lo := la
	if lb < lo {
		lo = lb
	}
	return float64(2*lo) / float64(la+lb)
}

func none() model.MatchResult {
	return model.MatchResult{Strategy: model.MatchNone}
}
