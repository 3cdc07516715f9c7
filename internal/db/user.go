package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User 定义了用户模型
// TotalMinutes 是累计分钟数的缓存值，与 TimeAction 的 minutes_added 之和保持一致
// （由 service 层在同一事务内增量维护，出现偏差即为 bug）
// IsAdmin 控制 /api/users 管理接口的访问权限
type User struct {
	gorm.Model
	Username       string `gorm:"unique;not null"`
	Email          string `gorm:"unique;not null"`
	PasswordHash   string `gorm:"not null"`
	DisplayName    string `gorm:"not null"`
	ProfilePicture string
	TotalMinutes   int  `gorm:"not null;default:0"`
	IsAdmin        bool `gorm:"not null;default:false"`
}

// EnsureAdmin 存在性检查：若提供的用户名与密码均非空且不存在对应账号，
// 则创建一个 bcrypt 哈希的管理员用户；若账号已存在则仅确保其管理员标记。
func EnsureAdmin(username, password string) error {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return nil
	}

	if DB == nil {
		return errors.New("database not initialized")
	}

	var existing User
	if err := DB.Where("username = ?", trimmedUser).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		return DB.Create(&User{
			Username:     trimmedUser,
			Email:        trimmedUser + "@minutebank.local",
			PasswordHash: string(hashed),
			DisplayName:  trimmedUser,
			IsAdmin:      true,
		}).Error
	}

	if !existing.IsAdmin {
		return DB.Model(&existing).Update("is_admin", true).Error
	}

	return nil
}
