// Package loader 加载排班参考配置。
// 配置作为注入值传给求解引擎，不做全局状态
package loader

import (
	"encoding/json"
	"os"

	"github.com/paiban/kinmu/pkg/errors"
	"github.com/paiban/kinmu/pkg/model"
)

// Loader 参考配置加载器
type Loader struct {
	path string
}

// New 创建加载器
func New(path string) *Loader {
	return &Loader{path: path}
}

// Load 读取并解析参考配置，文件不存在时报 NOT_FOUND
func (l *Loader) Load() (*model.InitialData, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("Initial data not found.")
		}
		return nil, errors.IO(err, "读取参考配置失败")
	}

	var data model.InitialData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.IO(err, "解析参考配置失败")
	}
	return &data, nil
}
