package app

import "github.com/kart-io/version"

// GetVersion 返回构建时注入的 git 版本，用作日志的 service.version 字段。
func GetVersion() string {
	return version.Get().GitVersion
}
