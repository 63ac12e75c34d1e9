package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供目标 URL、请求 ID 与缓存命中状态字段，供代理请求日志复用。
func RequestFields(target, requestID string, cacheHit bool) logrus.Fields {
	fields := logrus.Fields{
		"url":       target,
		"cache_hit": cacheHit,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}
