// Package cli 实现 chatctl 命令行客户端
// 通过 HTTP API 登录、管理会话，并在终端里流式显示回复
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const defaultServerURL = "http://localhost:8080"

// Store 本地配置，保存在 ~/.pocket-chat/config.yaml
type Store struct {
	v    *viper.Viper
	path string
}

// Config CLI 配置结构
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Auth   AuthConfig   `mapstructure:"auth"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	URL string `mapstructure:"url"` // HTTP API 地址
}

// AuthConfig 登录凭证
type AuthConfig struct {
	Email        string `mapstructure:"email"`         // 登录邮箱
	AccessToken  string `mapstructure:"access_token"`  // 会话 Token
	RefreshToken string `mapstructure:"refresh_token"` // 刷新 Token
}

// DefaultDir 默认配置目录
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("获取用户目录失败: %w", err)
	}
	return filepath.Join(home, ".pocket-chat"), nil
}

// OpenStore 读取配置目录下的 config.yaml，不存在时使用默认值
// 环境变量 POCKET_CHAT_SERVER_URL 覆盖服务器地址
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("创建配置目录失败: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("POCKET_CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.url", defaultServerURL)
	v.SetDefault("auth.email", "")
	v.SetDefault("auth.access_token", "")
	v.SetDefault("auth.refresh_token", "")

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	return &Store{v: v, path: path}, nil
}

// Path 配置文件路径
func (s *Store) Path() string {
	return s.path
}

// Load 解析当前配置
func (s *Store) Load() (*Config, error) {
	var cfg Config
	if err := s.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.Server.URL = strings.TrimRight(cfg.Server.URL, "/")
	return &cfg, nil
}

// SetServerURL 设置服务器地址，调用 Save 后持久化
func (s *Store) SetServerURL(url string) {
	s.v.Set("server.url", strings.TrimRight(url, "/"))
}

// SaveAuth 保存登录凭证
func (s *Store) SaveAuth(email, accessToken, refreshToken string) error {
	s.v.Set("auth.email", email)
	s.v.Set("auth.access_token", accessToken)
	s.v.Set("auth.refresh_token", refreshToken)
	return s.Save()
}

// ClearAuth 清除本地凭证
func (s *Store) ClearAuth() error {
	return s.SaveAuth("", "", "")
}

// Save 写回配置文件，只有当前用户可读
func (s *Store) Save() error {
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("保存配置失败: %w", err)
	}
	return os.Chmod(s.path, 0o600)
}
