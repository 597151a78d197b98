package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 服务日志, InitLogger 之前为空实现
var Logger = zap.NewNop()

// InitLogger release 模式输出 JSON, 其余模式输出带颜色的开发格式; 每条日志带 service 字段
func InitLogger(mode string) error {
	var config zap.Config

	if mode == gin.ReleaseMode {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.InitialFields = map[string]any{"service": "clickseg"}

	logger, err := config.Build()
	if err != nil {
		return err
	}

	Logger = logger
	return nil
}

func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// requestLogger 带 request_id 的日志, 未经过 RequestLogger 中间件时返回全局日志
func requestLogger(c *gin.Context) *zap.Logger {
	if id := c.GetString(requestIDKey); id != "" {
		return Logger.With(zap.String("request_id", id))
	}
	return Logger
}
