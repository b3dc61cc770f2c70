// Package conv 提供 YAML/JSON 解析结果（map[string]any）的取值与类型转换，供 Stage 工厂使用。
package conv

import (
	"fmt"
	"time"
)

// ToFloat64 将 any 转为 float64。
// 支持 float64、float32、int、int64、int32；bool 视为 1.0/0.0。
func ToFloat64(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case bool:
		if val {
			return 1.0, true
		}
		return 0.0, true
	default:
		return 0, false
	}
}

// ToInt 将 any 转为 int。
// 支持 int、int64、int32、uint64、float64、float32。
func ToInt(v any) (int, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case int32:
		return int(val), true
	case uint64:
		return int(val), true
	case float64:
		return int(val), true
	case float32:
		return int(val), true
	default:
		return 0, false
	}
}

// ToDuration 将 any 转为 time.Duration。
// 字符串按 time.ParseDuration 解析（"2s"、"720h"），数字视为秒。
func ToDuration(v any) (time.Duration, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case time.Duration:
		return val, true
	case string:
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, false
		}
		return d, true
	default:
		f, ok := ToFloat64(v)
		if !ok {
			return 0, false
		}
		return time.Duration(f * float64(time.Second)), true
	}
}

// ConvertSlice 将 []T 按 convert 转为 []U，convert 返回 false 的元素被跳过。
func ConvertSlice[T, U any](s []T, convert func(T) (U, bool)) []U {
	if s == nil {
		return nil
	}
	out := make([]U, 0, len(s))
	for _, v := range s {
		if u, ok := convert(v); ok {
			out = append(out, u)
		}
	}
	return out
}

// SliceAnyToString 将 []any（即 []interface{}）转为 []string。
// 元素为 string 直接保留，为数字时格式化为 "%.0f"。
func SliceAnyToString(v any) []string {
	switch raw := v.(type) {
	case []string:
		return raw
	case []any:
		return ConvertSlice(raw, func(e any) (string, bool) {
			if s, ok := e.(string); ok {
				return s, true
			}
			if f, ok := ToFloat64(e); ok {
				return fmt.Sprintf("%.0f", f), true
			}
			return "", false
		})
	default:
		return nil
	}
}

// ConfigGet 从 map[string]any 按 key 取 T，取不到或类型不符时返回 defaultVal。
func ConfigGet[T any](m map[string]any, key string, defaultVal T) T {
	if m == nil {
		return defaultVal
	}
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	t, ok := v.(T)
	if !ok {
		return defaultVal
	}
	return t
}

// ConfigString 取字符串
func ConfigString(m map[string]any, key, defaultVal string) string {
	return ConfigGet(m, key, defaultVal)
}

// ConfigBool 取布尔值
func ConfigBool(m map[string]any, key string, defaultVal bool) bool {
	return ConfigGet(m, key, defaultVal)
}

// ConfigInt 取整数。YAML 常得到 int，JSON 得到 float64，此处统一兼容。
func ConfigInt(m map[string]any, key string, defaultVal int) int {
	if v, ok := m[key]; ok {
		if i, ok := ToInt(v); ok {
			return i
		}
	}
	return defaultVal
}

// ConfigDuration 取时长，见 ToDuration
func ConfigDuration(m map[string]any, key string, defaultVal time.Duration) time.Duration {
	if v, ok := m[key]; ok {
		if d, ok := ToDuration(v); ok {
			return d
		}
	}
	return defaultVal
}

// ConfigStrings 取字符串列表，key 不存在时返回 defaultVal
func ConfigStrings(m map[string]any, key string, defaultVal []string) []string {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	if out := SliceAnyToString(v); out != nil {
		return out
	}
	return defaultVal
}
