package db

import (
	"gorm.io/gorm"
)

// TimeAction 记录一次动作打卡及其奖励的分钟数
// 记录只追加不修改：MinutesAdded 是打卡当时的快照值，
// 后续默认动作被编辑或删除也不影响历史记录
// CreatedAt 统一存储 UTC 时间
type TimeAction struct {
	gorm.Model
	UserID       uint   `gorm:"index;not null"`
	User         User   `gorm:"constraint:OnDelete:CASCADE"`
	Action       string `gorm:"not null"`
	MinutesAdded int    `gorm:"not null"`
}

// DeletedAction 标记某个默认动作对该用户隐藏
// UserID + ActionText 唯一，重复删除幂等
type DeletedAction struct {
	gorm.Model
	UserID     uint   `gorm:"index;index:idx_deleted_action_unique,unique"`
	ActionText string `gorm:"index:idx_deleted_action_unique,unique"`
}

// EditedAction 是用户对默认动作的替换载荷
// 以 UserID + OriginalText 唯一定位，OriginalText 始终是默认动作的原始文案，
// 即使用户多次编辑也不会漂移
type EditedAction struct {
	gorm.Model
	UserID                 uint     `gorm:"index;index:idx_edited_action_unique,unique"`
	OriginalText           string   `gorm:"index:idx_edited_action_unique,unique"`
	Text                   string   `gorm:"not null"`
	Minutes                int      `gorm:"not null"`
	SimilarTo              []string `gorm:"serializer:json"`
	IsRepeatableDaily      bool
	MustBeLoggedAtEndOfDay bool
	Warning                string
}

// CustomAction 是用户自建动作，没有默认动作对应
// 文案仅在该用户的自建集合内唯一，允许与默认动作同名（查找时自建优先）
type CustomAction struct {
	gorm.Model
	UserID                 uint     `gorm:"index;index:idx_custom_action_unique,unique"`
	Text                   string   `gorm:"index:idx_custom_action_unique,unique"`
	Minutes                int      `gorm:"not null"`
	SimilarTo              []string `gorm:"serializer:json"`
	IsRepeatableDaily      bool
	MustBeLoggedAtEndOfDay bool
	Warning                string
}
