package model

// PrecheckStatus 表示前置条件检查结果状态。
type PrecheckStatus string

const (
	// PrecheckPassed 表示检查通过。
	PrecheckPassed PrecheckStatus = "passed"
	// PrecheckFailed 表示检查失败。
	PrecheckFailed PrecheckStatus = "failed"
	// PrecheckSkipped 表示检查跳过（例如离线清单模式不需要连接设备）。
	PrecheckSkipped PrecheckStatus = "skipped"
)

// PrecheckResult 表示一次采集前置条件检查记录，随扫描一起落库。
type PrecheckResult struct {
	CheckCode string         `json:"check_code"`
	CheckName string         `json:"check_name"`
	Required  bool           `json:"required"`
	Status    PrecheckStatus `json:"status"`
	Message   string         `json:"message,omitempty"`
	CheckedAt int64          `json:"checked_at"`
}

// HasRequiredFailure 判断是否存在必需项失败。
func HasRequiredFailure(checks []PrecheckResult) bool {
	for _, c := range checks {
		if c.Required && c.Status == PrecheckFailed {
			return true
		}
	}
	return false
}
