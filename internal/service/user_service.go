package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/minutebank/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrUserExists 在用户名或邮箱已被占用时返回
	ErrUserExists = errors.New("username or email already exists")
	// ErrInvalidCredentials 在用户名或密码不匹配时返回
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidUserInput 在注册/更新资料的必填字段缺失时返回
	ErrInvalidUserInput = errors.New("invalid user input")
)

// UserService 负责账号的注册、认证与资料维护
type UserService struct {
	db *gorm.DB
}

// RegisterInput 定义注册所需字段，头像文件由 handler 层单独处理
type RegisterInput struct {
	Username    string
	Email       string
	DisplayName string
	Password    string
}

// ProfileInput 定义更新资料时的可选字段，空值表示保持不变
type ProfileInput struct {
	Email          string
	DisplayName    string
	Password       string
	ProfilePicture string
}

// NewUserService 构造 UserService
func NewUserService(gdb *gorm.DB) *UserService {
	return &UserService{db: gdb}
}

// Register 创建新用户，total_minutes 从 0 开始
func (s *UserService) Register(input RegisterInput) (*db.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)
	displayName := strings.TrimSpace(input.DisplayName)

	if username == "" || email == "" || displayName == "" || input.Password == "" {
		return nil, fmt.Errorf("%w: missing required fields", ErrInvalidUserInput)
	}

	var count int64
	if err := s.db.Model(&db.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check user uniqueness: %w", err)
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := db.User{
		Username:     username,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hashed),
	}

	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &user, nil
}

// Authenticate 校验用户名与密码
func (s *UserService) Authenticate(username, password string) (*db.User, error) {
	var user db.User
	if err := s.db.Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

// Get 按主键获取用户
func (s *UserService) Get(id uint) (*db.User, error) {
	var user db.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// UpdateProfile 更新资料；密码与头像仅在显式提供时替换
func (s *UserService) UpdateProfile(id uint, input ProfileInput) (*db.User, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if email := strings.TrimSpace(input.Email); email != "" {
		user.Email = email
	}
	if displayName := strings.TrimSpace(input.DisplayName); displayName != "" {
		user.DisplayName = displayName
	}
	if input.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hashed)
	}
	if input.ProfilePicture != "" {
		user.ProfilePicture = input.ProfilePicture
	}

	if err := s.db.Save(user).Error; err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	return user, nil
}

// List 返回全部用户，按注册时间升序，供管理端展示
func (s *UserService) List() ([]db.User, error) {
	var users []db.User
	if err := s.db.Order("created_at ASC, id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
