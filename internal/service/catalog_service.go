package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/minutebank/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotDefaultAction 在对非默认动作执行删除/编辑/恢复时返回
	ErrNotDefaultAction = errors.New("can only modify default actions")
	// ErrDuplicateAction 在自建动作文案与该用户已有自建动作冲突时返回
	ErrDuplicateAction = errors.New("action already exists")
	// ErrActionNotFound 在指定的自建动作不存在时返回
	ErrActionNotFound = errors.New("action not found")
	// ErrInvalidActionInput 在动作载荷不完整（空文案/负分钟数）时返回
	ErrInvalidActionInput = errors.New("invalid action input")
)

// CatalogService 负责把全局默认动作与用户的三张覆盖表
// （删除标记、编辑载荷、自建动作）合并为每用户的有效动作清单。
// 合并采用分层查找：custom > edited > default，减去 deleted，
// 各来源的生命周期相互独立
type CatalogService struct {
	db       *gorm.DB
	defaults *DefaultActionSource
}

// EffectiveAction 是合并后的一条有效动作
// OriginalText 非空表示该条目由默认动作编辑而来，客户端用它定位后续编辑/删除/恢复
type EffectiveAction struct {
	Text                   string
	Minutes                int
	SimilarTo              []string
	IsRepeatableDaily      bool
	MustBeLoggedAtEndOfDay bool
	Warning                string
	IsEdited               bool
	IsCustom               bool
	OriginalText           string
}

// ActionInput 定义编辑默认动作或维护自建动作时的可配置字段
type ActionInput struct {
	Text                   string
	Minutes                int
	SimilarTo              []string
	IsRepeatableDaily      bool
	MustBeLoggedAtEndOfDay bool
	Warning                string
}

// NewCatalogService 构造 CatalogService，defaults 为注入的只读默认动作源
func NewCatalogService(gdb *gorm.DB, defaults *DefaultActionSource) *CatalogService {
	return &CatalogService{db: gdb, defaults: defaults}
}

// Resolve 返回用户的有效动作序列。
// 顺序契约：默认动作按配置顺序（剔除已删除、替换已编辑），随后是自建动作按创建顺序。
// userID 为 0 表示匿名，只返回默认清单。
func (s *CatalogService) Resolve(userID uint) ([]EffectiveAction, error) {
	result := make([]EffectiveAction, 0, len(s.defaults.Actions()))

	if userID == 0 {
		for _, action := range s.defaults.Actions() {
			result = append(result, effectiveFromDefault(action))
		}
		return result, nil
	}

	deleted, err := s.deletedSet(userID)
	if err != nil {
		return nil, err
	}

	edits, err := s.editMap(userID)
	if err != nil {
		return nil, err
	}

	for _, action := range s.defaults.Actions() {
		if _, gone := deleted[action.Text]; gone {
			continue
		}

		if edit, ok := edits[action.Text]; ok {
			result = append(result, EffectiveAction{
				Text:                   edit.Text,
				Minutes:                edit.Minutes,
				SimilarTo:              edit.SimilarTo,
				IsRepeatableDaily:      edit.IsRepeatableDaily,
				MustBeLoggedAtEndOfDay: edit.MustBeLoggedAtEndOfDay,
				Warning:                edit.Warning,
				IsEdited:               true,
				OriginalText:           edit.OriginalText,
			})
			continue
		}

		result = append(result, effectiveFromDefault(action))
	}

	var customs []db.CustomAction
	if err := s.db.Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&customs).Error; err != nil {
		return nil, fmt.Errorf("list custom actions: %w", err)
	}

	for _, custom := range customs {
		result = append(result, EffectiveAction{
			Text:                   custom.Text,
			Minutes:                custom.Minutes,
			SimilarTo:              custom.SimilarTo,
			IsRepeatableDaily:      custom.IsRepeatableDaily,
			MustBeLoggedAtEndOfDay: custom.MustBeLoggedAtEndOfDay,
			Warning:                custom.Warning,
			IsCustom:               true,
		})
	}

	return result, nil
}

// Lookup 返回打卡校验用的 text→minutes 映射。
// 与 Resolve 不同，编辑载荷按"新文案"入表：动作被改名后旧文案查找失败、新文案生效。
// 匿名调用只得到原始默认映射。
func (s *CatalogService) Lookup(userID uint) (map[string]int, error) {
	lookup := s.defaults.Minutes()

	if userID == 0 {
		return lookup, nil
	}

	deleted, err := s.deletedSet(userID)
	if err != nil {
		return nil, err
	}
	for text := range deleted {
		delete(lookup, text)
	}

	edits, err := s.editMap(userID)
	if err != nil {
		return nil, err
	}
	// 先整体移除被编辑的原始文案再写入新文案：
	// 两步分开，避免某条编辑的新文案恰好是另一条的原始文案时被误删
	for originalText := range edits {
		delete(lookup, originalText)
	}
	for _, edit := range edits {
		lookup[edit.Text] = edit.Minutes
	}

	var customs []db.CustomAction
	if err := s.db.Where("user_id = ?", userID).Find(&customs).Error; err != nil {
		return nil, fmt.Errorf("list custom actions: %w", err)
	}
	for _, custom := range customs {
		lookup[custom.Text] = custom.Minutes
	}

	return lookup, nil
}

// DeleteDefault 为用户隐藏一个默认动作。
// 只能作用于当前默认清单中的文案；同一文案的编辑载荷会被一并清除（删除与编辑互斥）。
func (s *CatalogService) DeleteDefault(userID uint, text string) error {
	if !s.defaults.Contains(text) {
		return ErrNotDefaultAction
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		// 覆盖行一律硬删除：软删除残留会占住唯一索引，阻塞后续同文案的覆盖
		if err := tx.Unscoped().Where("user_id = ? AND original_text = ?", userID, text).
			Delete(&db.EditedAction{}).Error; err != nil {
			return fmt.Errorf("clear edit override: %w", err)
		}

		record := db.DeletedAction{UserID: userID, ActionText: text}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "action_text"}},
			DoNothing: true,
		}).Create(&record).Error; err != nil {
			return fmt.Errorf("create deletion override: %w", err)
		}

		return nil
	})
}

// EditDefault 为用户替换一个默认动作的展示载荷。
// originalText 必须是当前默认文案（与该用户此前是否编辑过无关）；
// 编辑会清除同一文案的删除标记（编辑优先于删除），重复编辑则替换旧载荷。
func (s *CatalogService) EditDefault(userID uint, originalText string, input ActionInput) (*db.EditedAction, error) {
	if err := validateActionInput(input); err != nil {
		return nil, err
	}

	if !s.defaults.Contains(originalText) {
		return nil, ErrNotDefaultAction
	}

	record := db.EditedAction{
		UserID:                 userID,
		OriginalText:           originalText,
		Text:                   strings.TrimSpace(input.Text),
		Minutes:                input.Minutes,
		SimilarTo:              input.SimilarTo,
		IsRepeatableDaily:      input.IsRepeatableDaily,
		MustBeLoggedAtEndOfDay: input.MustBeLoggedAtEndOfDay,
		Warning:                strings.TrimSpace(input.Warning),
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("user_id = ? AND action_text = ?", userID, originalText).
			Delete(&db.DeletedAction{}).Error; err != nil {
			return fmt.Errorf("clear deletion override: %w", err)
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "original_text"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"text", "minutes", "similar_to", "is_repeatable_daily",
				"must_be_logged_at_end_of_day", "warning", "updated_at",
			}),
		}).Create(&record).Error; err != nil {
			return fmt.Errorf("upsert edit override: %w", err)
		}

		if err := tx.Where("user_id = ? AND original_text = ?", userID, originalText).
			First(&record).Error; err != nil {
			return fmt.Errorf("reload edit override: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// RestoreDefault 移除用户对某默认动作的全部覆盖，使其恢复原始状态
func (s *CatalogService) RestoreDefault(userID uint, text string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("user_id = ? AND action_text = ?", userID, text).
			Delete(&db.DeletedAction{}).Error; err != nil {
			return fmt.Errorf("remove deletion override: %w", err)
		}

		if err := tx.Unscoped().Where("user_id = ? AND original_text = ?", userID, text).
			Delete(&db.EditedAction{}).Error; err != nil {
			return fmt.Errorf("remove edit override: %w", err)
		}

		return nil
	})
}

// CreateCustom 新建用户自建动作。
// 唯一性只在该用户的自建集合内检查：允许与默认动作同名，查找时自建优先。
func (s *CatalogService) CreateCustom(userID uint, input ActionInput) (*db.CustomAction, error) {
	if err := validateActionInput(input); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(input.Text)

	var count int64
	if err := s.db.Model(&db.CustomAction{}).
		Where("user_id = ? AND text = ?", userID, text).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check custom action uniqueness: %w", err)
	}
	if count > 0 {
		return nil, ErrDuplicateAction
	}

	record := db.CustomAction{
		UserID:                 userID,
		Text:                   text,
		Minutes:                input.Minutes,
		SimilarTo:              input.SimilarTo,
		IsRepeatableDaily:      input.IsRepeatableDaily,
		MustBeLoggedAtEndOfDay: input.MustBeLoggedAtEndOfDay,
		Warning:                strings.TrimSpace(input.Warning),
	}

	if err := s.db.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("create custom action: %w", err)
	}

	return &record, nil
}

// EditCustom 按原文案更新自建动作，允许改名（需与其它自建动作不冲突）
func (s *CatalogService) EditCustom(userID uint, originalText string, input ActionInput) (*db.CustomAction, error) {
	if err := validateActionInput(input); err != nil {
		return nil, err
	}

	var existing db.CustomAction
	if err := s.db.Where("user_id = ? AND text = ?", userID, originalText).First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActionNotFound
		}
		return nil, fmt.Errorf("find custom action: %w", err)
	}

	newText := strings.TrimSpace(input.Text)
	if newText != existing.Text {
		var count int64
		if err := s.db.Model(&db.CustomAction{}).
			Where("user_id = ? AND text = ? AND id <> ?", userID, newText, existing.ID).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("check custom action uniqueness: %w", err)
		}
		if count > 0 {
			return nil, ErrDuplicateAction
		}
	}

	existing.Text = newText
	existing.Minutes = input.Minutes
	existing.SimilarTo = input.SimilarTo
	existing.IsRepeatableDaily = input.IsRepeatableDaily
	existing.MustBeLoggedAtEndOfDay = input.MustBeLoggedAtEndOfDay
	existing.Warning = strings.TrimSpace(input.Warning)

	if err := s.db.Save(&existing).Error; err != nil {
		return nil, fmt.Errorf("update custom action: %w", err)
	}

	return &existing, nil
}

// DeleteCustom 按文案删除自建动作
func (s *CatalogService) DeleteCustom(userID uint, text string) error {
	result := s.db.Unscoped().Where("user_id = ? AND text = ?", userID, text).Delete(&db.CustomAction{})
	if result.Error != nil {
		return fmt.Errorf("delete custom action: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrActionNotFound
	}
	return nil
}

// ResetOverrides 清空用户的全部覆盖表，用于整体重置
func (s *CatalogService) ResetOverrides(tx *gorm.DB, userID uint) error {
	if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&db.DeletedAction{}).Error; err != nil {
		return fmt.Errorf("clear deletion overrides: %w", err)
	}
	if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&db.EditedAction{}).Error; err != nil {
		return fmt.Errorf("clear edit overrides: %w", err)
	}
	if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&db.CustomAction{}).Error; err != nil {
		return fmt.Errorf("clear custom actions: %w", err)
	}
	return nil
}

func (s *CatalogService) deletedSet(userID uint) (map[string]struct{}, error) {
	var rows []db.DeletedAction
	if err := s.db.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list deletion overrides: %w", err)
	}

	set := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		set[row.ActionText] = struct{}{}
	}
	return set, nil
}

func (s *CatalogService) editMap(userID uint) (map[string]db.EditedAction, error) {
	var rows []db.EditedAction
	if err := s.db.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list edit overrides: %w", err)
	}

	edits := make(map[string]db.EditedAction, len(rows))
	for _, row := range rows {
		edits[row.OriginalText] = row
	}
	return edits, nil
}

func effectiveFromDefault(action DefaultAction) EffectiveAction {
	return EffectiveAction{
		Text:                   action.Text,
		Minutes:                action.Minutes,
		SimilarTo:              action.SimilarTo,
		IsRepeatableDaily:      action.IsRepeatableDaily,
		MustBeLoggedAtEndOfDay: action.MustBeLoggedAtEndOfDay,
		Warning:                action.Warning,
	}
}

func validateActionInput(input ActionInput) error {
	if strings.TrimSpace(input.Text) == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidActionInput)
	}
	if input.Minutes < 0 {
		return fmt.Errorf("%w: minutes must not be negative", ErrInvalidActionInput)
	}
	return nil
}
