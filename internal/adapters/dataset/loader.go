package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/platform/hash"
	"privacy-inspector/internal/platform/logger"
	"privacy-inspector/internal/services/normalize"
)

// 列名别名（小写、去空白后比较）。
var columnAliases = map[string][]string{
	colName:      {"app_name", "name", "app"},
	colPackage:   {"package_id", "apk", "package"},
	colFrequency: {"frequency", "collection_frequency"},
	colDataTypes: {"data_types", "types"},
	colBehaviors: {"known_behaviors", "behaviors"},
}

const (
	colName      = "name"
	colPackage   = "package"
	colFrequency = "frequency"
	colDataTypes = "data_types"
	colBehaviors = "behaviors"
)

// Loader 读取一个或多个 CSV 数据源并构建 Index。
type Loader struct {
	log *logger.Logger
}

// NewLoader 创建 Loader；log 可以为 nil。
func NewLoader(log *logger.Logger) *Loader {
	return &Loader{log: log.OrNop().WithComponent("dataset")}
}

// Sources 把配置里的路径列表转成 DatasetSource；priorities 以文件名（不含目录）或完整路径为键。
func Sources(paths []string, priorities map[string]int) []model.DatasetSource {
	out := make([]model.DatasetSource, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		name := filepath.Base(p)
		prio, ok := priorities[p]
		if !ok {
			prio = priorities[strings.ToLower(name)]
		}
		out = append(out, model.DatasetSource{Path: p, Name: name, Priority: prio})
	}
	return out
}

// builder 在加载期间累积条目，完成后冻结成 Index。
type builder struct {
	byName    map[string]*model.DatasetEntry
	byPackage map[string]*model.DatasetEntry
	summary   model.LoadSummary
}

// Load 按给定顺序加载全部数据源。
//
// 行级问题只记录告警；文件打不开或缺少必需列返回错误；
// 全部加载完仍没有条目时返回 ErrEmptyDataset。
func (l *Loader) Load(ctx context.Context, sources []model.DatasetSource) (*Index, *model.LoadSummary, error) {
	b := &builder{
		byName:    map[string]*model.DatasetEntry{},
		byPackage: map[string]*model.DatasetEntry{},
	}
	b.summary.Warnings = []model.RowWarning{}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		digest, err := l.loadFile(b, src)
		if err != nil {
			return nil, nil, fmt.Errorf("load dataset %s: %w", src.Path, err)
		}
		b.summary.Sources = append(b.summary.Sources, digest)
		l.log.Info().
			Str("source", src.Name).
			Int("rows", digest.Rows).
			Str("sha256", digest.SHA256).
			Msg("dataset source loaded")
	}

	b.summary.Retained = len(b.byName)
	if b.summary.Retained == 0 {
		return nil, &b.summary, ErrEmptyDataset
	}
	for _, w := range b.summary.Warnings {
		l.log.Warn().Str("source", w.Source).Int("row", w.Row).Msg(w.Reason)
	}
	return newIndex(b.byName, b.byPackage), &b.summary, nil
}

// LoadReader 从内存数据加载单个数据源，主要给测试和 dataset validate 的 stdin 模式用。
func (l *Loader) LoadReader(r io.Reader, src model.DatasetSource) (*Index, *model.LoadSummary, error) {
	b := &builder{
		byName:    map[string]*model.DatasetEntry{},
		byPackage: map[string]*model.DatasetEntry{},
	}
	b.summary.Warnings = []model.RowWarning{}
	rows, err := b.read(r, src)
	if err != nil {
		return nil, nil, err
	}
	b.summary.Sources = append(b.summary.Sources, model.SourceDigest{
		Path: src.Path, Name: src.Name, Priority: src.Priority, Rows: rows,
	})
	b.summary.Retained = len(b.byName)
	if b.summary.Retained == 0 {
		return nil, &b.summary, ErrEmptyDataset
	}
	return newIndex(b.byName, b.byPackage), &b.summary, nil
}

func (l *Loader) loadFile(b *builder, src model.DatasetSource) (model.SourceDigest, error) {
	sum, size, err := hash.File(src.Path)
	if err != nil {
		return model.SourceDigest{}, err
	}
	f, err := os.Open(src.Path)
	if err != nil {
		return model.SourceDigest{}, err
	}
	defer f.Close()

	if src.Name == "" {
		src.Name = filepath.Base(src.Path)
	}
	rows, err := b.read(f, src)
	if err != nil {
		return model.SourceDigest{}, err
	}
	return model.SourceDigest{
		Path:      src.Path,
		Name:      src.Name,
		Priority:  src.Priority,
		SHA256:    sum,
		SizeBytes: size,
		Rows:      rows,
	}, nil
}

// read 解析一个 CSV 流并把条目并入 builder，返回读取的数据行数。
func (b *builder) read(r io.Reader, src model.DatasetSource) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("%w: empty file", ErrMissingColumn)
	}
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return 0, err
	}

	rows := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rows++
		b.summary.RowsRead++
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.StartLine
			}
			b.skip(src, line, fmt.Sprintf("malformed row: %v", err))
			continue
		}
		line, _ := cr.FieldPos(0)
		if len(rec) != len(header) {
			b.skip(src, line, fmt.Sprintf("column count %d, header has %d", len(rec), len(header)))
			continue
		}
		entry, rowErr := parseRow(rec, cols, src, line)
		if rowErr != nil {
			b.skip(src, line, rowErr.Reason)
			continue
		}
		b.add(entry)
	}
	return rows, nil
}

func (b *builder) skip(src model.DatasetSource, line int, reason string) {
	b.summary.Skipped++
	b.summary.Warnings = append(b.summary.Warnings, model.RowWarning{
		Source: src.Name, Row: line, Reason: reason,
	})
}

// add 按重复策略把条目并入名称表和包名别名表。
// 包名别名只指向名称表中保留的条目；落选的重复行不可再被查到。
func (b *builder) add(e *model.DatasetEntry) {
	if cur, ok := b.byName[e.NormalizedName]; !ok {
		b.byName[e.NormalizedName] = e
	} else if !supersedes(e, cur) {
		return
	} else {
		b.byName[e.NormalizedName] = e
		b.summary.Replaced++
		b.summary.Warnings = append(b.summary.Warnings, model.RowWarning{
			Source: e.SourceName,
			Row:    e.Row,
			Reason: fmt.Sprintf("replaces %q from %s:%d (frequency %d > %d)",
				cur.RawName, cur.SourceName, cur.Row, e.Frequency, cur.Frequency),
		})
		if cur.PackageID != "" {
			if alias := normalize.Name(cur.PackageID); b.byPackage[alias] == cur {
				b.byPackage[alias] = e
			}
		}
	}

	if e.PackageID == "" {
		return
	}
	key := normalize.Name(e.PackageID)
	if key == "" {
		return
	}
	if cur, ok := b.byPackage[key]; !ok || supersedes(e, cur) {
		b.byPackage[key] = e
	}
}

// supersedes 判断后来的条目 next 是否应替换已存条目 cur：
// next 的频次必须已定义且严格更大，并且来源优先级不低于 cur。
func supersedes(next, cur *model.DatasetEntry) bool {
	if next == cur {
		return false
	}
	return next.FrequencyDefined &&
		next.Frequency > cur.Frequency &&
		next.SourcePriority >= cur.SourcePriority
}

type columns struct {
	name, pkg, freq, types, behaviors int
}

func resolveColumns(header []string) (columns, error) {
	idx := map[string]int{}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for canon, aliases := range columnAliases {
			if _, seen := idx[canon]; seen {
				continue
			}
			for _, a := range aliases {
				if h == a {
					idx[canon] = i
				}
			}
		}
	}
	get := func(k string) int {
		if v, ok := idx[k]; ok {
			return v
		}
		return -1
	}
	c := columns{
		name:      get(colName),
		pkg:       get(colPackage),
		freq:      get(colFrequency),
		types:     get(colDataTypes),
		behaviors: get(colBehaviors),
	}
	if c.name < 0 {
		c.name = c.pkg
	}
	if c.name < 0 {
		return c, fmt.Errorf("%w: app_name", ErrMissingColumn)
	}
	if c.freq < 0 {
		return c, fmt.Errorf("%w: frequency", ErrMissingColumn)
	}
	return c, nil
}

func parseRow(rec []string, c columns, src model.DatasetSource, line int) (*model.DatasetEntry, *RowError) {
	raw := strings.TrimSpace(rec[c.name])
	norm := normalize.Name(raw)
	if norm == "" {
		return nil, &RowError{Source: src.Name, Row: line, Reason: fmt.Sprintf("name %q normalizes to empty", raw)}
	}
	freq, defined, err := ParseFrequency(rec[c.freq])
	if err != nil {
		return nil, &RowError{Source: src.Name, Row: line, Reason: err.Error()}
	}
	e := &model.DatasetEntry{
		RawName:          raw,
		NormalizedName:   norm,
		Frequency:        freq,
		FrequencyDefined: defined,
		DataTypes:        []string{},
		KnownBehaviors:   []string{},
		SourceName:       src.Name,
		SourcePriority:   src.Priority,
		Row:              line,
	}
	if c.pkg >= 0 && c.pkg != c.name {
		e.PackageID = strings.TrimSpace(rec[c.pkg])
	}
	if c.types >= 0 {
		e.DataTypes = SplitDataTypes(rec[c.types])
	}
	if c.behaviors >= 0 {
		e.KnownBehaviors = splitList(rec[c.behaviors], "|;", false)
	}
	return e, nil
}

// ParseFrequency 解析频次单元格。空白返回 (0, false, nil)；
// 支持整数和整值浮点（"75.0"）；负数、小数、非数字、溢出返回错误。
func ParseFrequency(cell string) (int, bool, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, false, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, false, fmt.Errorf("negative frequency %q", s)
		}
		if n > math.MaxInt32 {
			return 0, false, fmt.Errorf("frequency %q out of range", s)
		}
		return int(n), true, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, fmt.Errorf("frequency %q is not a number", s)
	}
	if f < 0 {
		return 0, false, fmt.Errorf("negative frequency %q", s)
	}
	if f != math.Trunc(f) {
		return 0, false, fmt.Errorf("fractional frequency %q", s)
	}
	if f > math.MaxInt32 {
		return 0, false, fmt.Errorf("frequency %q out of range", s)
	}
	return int(f), true, nil
}

// SplitDataTypes 按 , ; | 拆分数据类型，小写、去重、丢弃空项。
func SplitDataTypes(cell string) []string {
	return splitList(cell, ",;|", true)
}

func splitList(cell, seps string, lower bool) []string {
	parts := strings.FieldsFunc(cell, func(r rune) bool {
		return strings.ContainsRune(seps, r)
	})
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if lower {
			p = strings.ToLower(p)
		}
		parts[i] = p
	}
	return model.Dedupe(parts)
}
