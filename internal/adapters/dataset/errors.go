package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDataset 表示全部数据源加载完后没有任何可用条目，扫描不能继续。
	ErrEmptyDataset = errors.New("dataset: no usable entries")
	// ErrMissingColumn 表示文件缺少名称列或频次列。
	ErrMissingColumn = errors.New("dataset: missing required column")
)

// RowError 描述一行被跳过的原因；不会中断加载，只记录到 LoadSummary.Warnings。
type RowError struct {
	Source string
	Row    int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Source, e.Row, e.Reason)
}
