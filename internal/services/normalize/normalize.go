// Package normalize 把应用名规范化成可比较的键。
//
// 数据集加载和匹配两端都必须走同一个 Name，结果才可比较。
package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reBracketGroup = regexp.MustCompile(`[(\[{]([^()\[\]{}]*)[)\]}]`)
	reVersionLike  = regexp.MustCompile(`^v?\d+([.\-]\d+)*[a-z]?$`)

	genericPrefixes = map[string]struct{}{"the": {}}
	genericSuffixes = map[string]struct{}{
		"app": {}, "apps": {}, "inc": {}, "llc": {}, "ltd": {}, "corp": {}, "co": {},
	}
)

// edgeCutset 是首尾需要剥掉的字符。
const edgeCutset = " &'-."

// Name 返回规范化后的名称，可能为空字符串。
//
// 规则：小写、折叠空白、只保留字母数字与 & ' - . 、去掉括号内的版本号、
// 反复去掉通用前后缀（至少保留一个词）、剥掉首尾标点。
// 结果满足 Name(Name(x)) == Name(x)。
func Name(raw string) string {
	s := strings.ToLower(raw)
	s = filterRunes(s)
	s = reBracketGroup.ReplaceAllStringFunc(s, func(m string) string {
		inner := strings.TrimSpace(m[1 : len(m)-1])
		if inner == "" || reVersionLike.MatchString(inner) {
			return " "
		}
		return " " + inner + " "
	})
	s = strings.Map(func(r rune) rune {
		switch r {
		case '(', ')', '[', ']', '{', '}':
			return ' '
		}
		return r
	}, s)
	return stripAffixes(s)
}

// Key 和 Name 相同，但对 nil 返回空串，给可选展示名用。
func Key(raw *string) string {
	if raw == nil {
		return ""
	}
	return Name(*raw)
}

func filterRunes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case strings.ContainsRune("&'-.()[]{}", r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripAffixes(s string) string {
	for {
		before := s
		tokens := strings.Fields(strings.Trim(s, edgeCutset))
		if len(tokens) > 1 {
			if _, ok := genericPrefixes[tokens[0]]; ok {
				tokens = tokens[1:]
			}
		}
		if len(tokens) > 1 {
			last := strings.TrimRight(tokens[len(tokens)-1], ".")
			if _, ok := genericSuffixes[last]; ok {
				tokens = tokens[:len(tokens)-1]
			}
		}
		s = strings.Trim(strings.Join(tokens, " "), edgeCutset)
		if s == before {
			return s
		}
	}
}
