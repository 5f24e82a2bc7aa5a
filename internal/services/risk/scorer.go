// Package risk 把匹配结果换算成风险分和风险等级。
package risk

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"privacy-inspector/internal/domain/model"
)

const (
	// HighThreshold 分数严格大于它即为 HIGH。
	HighThreshold = 75.0
	// MediumThreshold 分数严格大于它即为 MEDIUM。
	MediumThreshold = 25.0
	// TypeWeight 是每种数据类型对频次的加成。
	TypeWeight = 0.10

	// FactorNotFound 是未命中应用的唯一因子。
	FactorNotFound = "app not present in dataset"
)

// Score 计算 frequency × (1 + 0.1·k)，保留 9 位小数去掉浮点噪声。
func Score(frequency, dataTypes int) float64 {
	raw := float64(frequency) * (1 + TypeWeight*float64(dataTypes))
	return math.Round(raw*1e9) / 1e9
}

// Level 按阈值分级，阈值本身归入较低一级。
func Level(score float64) model.RiskLevel {
	switch {
	case score > HighThreshold:
		return model.RiskHigh
	case score > MediumThreshold:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// Assess 生成风险评估。分数只看频次和数据类型数；
// 已授予的隐私关键权限只追加说明因子，不改变分数。
func Assess(match model.MatchResult, perms model.CategorizedPermissions) model.RiskAssessment {
	if !match.Found() {
		return NotFound()
	}
	e := match.Entry
	score := Score(e.Frequency, len(e.DataTypes))
	factors := []string{
		"collection frequency: " + strconv.Itoa(e.Frequency),
		dataTypesFactor(e.DataTypes),
	}
	if len(perms.PrivacyCriticalGranted) > 0 {
		factors = append(factors, fmt.Sprintf(
			"elevated permission exposure: privacy-critical permissions granted (%s)",
			strings.Join(perms.PrivacyCriticalGranted, ", ")))
	}
	return model.RiskAssessment{Level: Level(score), Score: score, Factors: factors}
}

// NotFound 返回未命中应用的评估。
func NotFound() model.RiskAssessment {
	return model.RiskAssessment{Level: model.RiskNotFound, Score: 0, Factors: []string{FactorNotFound}}
}

func dataTypesFactor(types []string) string {
	if len(types) == 0 {
		return "data types collected (0): none recorded"
	}
	return fmt.Sprintf("data types collected (%d): %s", len(types), strings.Join(types, ", "))
}
