package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"go.uber.org/zap"

	"ht-server/common/logger"
)

// StartWatch 监听配置变化，在变更时回调 onChange(old, new)
// 仅监听 Nacos 配置中心；使用本地文件配置时跳过
func StartWatch(ctx context.Context, b Bootstrap, onChange func(oldCfg, newCfg *Config)) error {
	if b.NacosServerAddr == "" {
		logger.Info("nacos not configured, skip config watch")
		return nil
	}

	configClient, err := newNacosClient(b)
	if err != nil {
		return fmt.Errorf("failed to create nacos config client for watch: %w", err)
	}

	param := vo.ConfigParam{
		DataId: b.NacosDataID,
		Group:  b.NacosGroup,
		OnChange: func(namespace, group, dataId, data string) {
			logger.Info("nacos config changed",
				zap.String("namespace", namespace), zap.String("group", group), zap.String("dataId", dataId))

			newCfg, err := parse(filepath.Ext(dataId), []byte(data))
			if err != nil {
				logger.Warn("parse nacos config failed", zap.Error(err))
				return
			}
			newCfg.ApplyDefaults()

			// 更新配置并触发回调
			oldCfg := GetCurrent()
			SetCurrent(newCfg)
			if onChange != nil {
				onChange(oldCfg, newCfg)
			}
		},
	}
	if err := configClient.ListenConfig(param); err != nil {
		return fmt.Errorf("failed to listen nacos config: %w", err)
	}

	// 退出时取消监听
	go func() {
		<-ctx.Done()
		_ = configClient.CancelListenConfig(vo.ConfigParam{DataId: b.NacosDataID, Group: b.NacosGroup})
		configClient.CloseClient()
	}()

	logger.Info("nacos config watch started",
		zap.String("dataId", b.NacosDataID), zap.String("group", b.NacosGroup))
	return nil
}
