package knowledge

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// PermanentError 不可重试的处理失败，重试也不会成功
type PermanentError struct {
	err error
}

// Permanent 把错误标记为不可重试
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{err: err}
}

func (e *PermanentError) Error() string {
	return e.err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.err
}

// IsPermanent 判断错误是否不可重试
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// PartialDeleteError 删除时部分后端失败。文档记录可能已删除，
// 残留数据需要靠重试清理。
type PartialDeleteError struct {
	DocumentID string
	Failed     map[string]error
	Succeeded  []string
}

func (e *PartialDeleteError) Error() string {
	backends := make([]string, 0, len(e.Failed))
	for b := range e.Failed {
		backends = append(backends, b)
	}
	sort.Strings(backends)
	return fmt.Sprintf("partial delete of document %s: failed backends [%s]",
		e.DocumentID, strings.Join(backends, ", "))
}
