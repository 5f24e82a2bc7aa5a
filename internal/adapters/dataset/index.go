package dataset

import (
	"sort"

	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/services/normalize"
)

// Index 是加载完成后的只读索引：规范化名称 → 条目，另带包名别名表。
// 构建后不再修改，可被多个 goroutine 并发读取。
type Index struct {
	byName    map[string]*model.DatasetEntry
	byPackage map[string]*model.DatasetEntry
	sorted    []*model.DatasetEntry
}

func newIndex(byName, byPackage map[string]*model.DatasetEntry) *Index {
	sorted := make([]*model.DatasetEntry, 0, len(byName))
	for _, e := range byName {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].NormalizedName < sorted[j].NormalizedName
	})
	return &Index{byName: byName, byPackage: byPackage, sorted: sorted}
}

// Lookup 按已规范化的名称查找。
func (ix *Index) Lookup(normalized string) (*model.DatasetEntry, bool) {
	if ix == nil || normalized == "" {
		return nil, false
	}
	e, ok := ix.byName[normalized]
	return e, ok
}

// LookupPackage 按包名查找别名表，入参会先规范化。
func (ix *Index) LookupPackage(pkg string) (*model.DatasetEntry, bool) {
	if ix == nil {
		return nil, false
	}
	key := normalize.Name(pkg)
	if key == "" {
		return nil, false
	}
	e, ok := ix.byPackage[key]
	return e, ok
}

// Entries 按规范化名称升序返回全部条目（不含别名重复）。返回的切片只读。
func (ix *Index) Entries() []*model.DatasetEntry {
	if ix == nil {
		return nil
	}
	return ix.sorted
}

// Len 返回条目数。
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.byName)
}
