package mytesting

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"pocket-chat-server/internal/config"
	"pocket-chat-server/internal/repository"
)

// Suite 带独立内存数据库的测试套件
// 每个测试用例一个新的 sqlite 库，表结构已迁移
type Suite struct {
	suite.Suite
	context.Context

	Cancel context.CancelFunc
	DB     *gorm.DB
}

func (s *Suite) SetupTest() {
	projectRoot, err := s.findProjectRoot()
	s.Require().NoError(err, "Failed to find project root")
	if err := godotenv.Load(filepath.Join(projectRoot, ".env.test")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.Require().NoError(err)
	}

	// 共享缓存的内存库在连接全部关闭后消失，限制为单连接
	db, err := repository.Open(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
	}, os.Getenv("TEST_SQL_DEBUG") != "")
	s.Require().NoError(err)
	s.Require().NoError(repository.AutoMigrate(db))
	s.DB = db

	s.Context, s.Cancel = context.WithCancel(context.TODO())
}

func (s *Suite) TearDownTest() {
	s.Cancel()
	if sqlDB, err := s.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Client 返回指定范围的数据存储客户端
func (s *Suite) Client(userID, organizationID string) *repository.Client {
	return repository.NewClient(s.DB, repository.Scope{UserID: userID, OrganizationID: organizationID})
}

// findProjectRoot searches for go.mod file starting from the current file location
func (s *Suite) findProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}

	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("go.mod not found in any parent directory")
}
