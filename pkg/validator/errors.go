package validator

import "strings"

// Violation 单个字段的校验失败，Field 取 json 标签名。
type Violation struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// Violations 按校验顺序排列的失败列表。
type Violations []Violation

func (vs Violations) Error() string {
	if len(vs) == 0 {
		return ""
	}
	msgs := make([]string, len(vs))
	for i, v := range vs {
		msgs[i] = v.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// HasErrors reports whether any rule failed.
func (vs Violations) HasErrors() bool { return len(vs) > 0 }

// First 返回第一条已翻译的消息。
func (vs Violations) First() string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0].Message
}

// FirstField 返回第一条失败对应的字段名。
func (vs Violations) FirstField() string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0].Field
}

func opaque(err error) Violations {
	return Violations{{Message: err.Error()}}
}
