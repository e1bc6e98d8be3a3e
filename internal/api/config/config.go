package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Cfg 全局可访问的配置实例
var Cfg *Config

// LoadConfig 读取 ./configs/config.yaml 填充 Cfg
// 部署时可用 SPORTHUB_CONFIG_DIR 指到别的目录
func LoadConfig() error {
	dir := os.Getenv("SPORTHUB_CONFIG_DIR")
	if dir == "" {
		dir = "./configs"
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(dir)

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config from %s: %w", dir, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	Cfg = &cfg
	return nil
}
