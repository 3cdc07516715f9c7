package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/minutebank/internal/db"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	// ErrUnknownAction 在打卡文案无法被任何来源识别时返回
	ErrUnknownAction = errors.New("unknown action")
	// ErrUserNotFound 在指定用户不存在时返回
	ErrUserNotFound = errors.New("user not found")
)

// LedgerService 负责分钟账本：追加打卡事件、维护累计分钟数、
// 以及基于客户端时区边界的"今日"聚合与重置。
// total_minutes 与事件表在同一事务内增量维护，保证两者一致
type LedgerService struct {
	db      *gorm.DB
	catalog *CatalogService
	log     zerolog.Logger
	now     func() time.Time
}

// ActionRecord 是一条打卡历史的展示载荷
type ActionRecord struct {
	ID           uint   `json:"id"`
	Action       string `json:"action"`
	MinutesAdded int    `json:"minutes_added"`
	CreatedAt    string `json:"created_at"`
}

// TodaySummary 汇总"今日"范围内的去重动作与次数
type TodaySummary struct {
	Distinct []string       `json:"distinct"`
	Counts   map[string]int `json:"counts"`
}

// NewLedgerService 构造 LedgerService
func NewLedgerService(gdb *gorm.DB, catalog *CatalogService, log zerolog.Logger) *LedgerService {
	return &LedgerService{
		db:      gdb,
		catalog: catalog,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// LogAction 打卡一次动作：解析分钟数、原子递增累计值并追加事件。
// 分钟数解析优先走合并后的查找视图，再回退到编辑/自建表的直接查找
// （两条路径必须给出一致结果，直接查找只是兜底）。
func (s *LedgerService) LogAction(userID uint, text string) (int, error) {
	minutes, err := s.resolveMinutes(userID, text)
	if err != nil {
		return 0, err
	}

	var total int
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// SQL 级自增，并发打卡不丢失
		result := tx.Model(&db.User{}).
			Where("id = ?", userID).
			Update("total_minutes", gorm.Expr("total_minutes + ?", minutes))
		if result.Error != nil {
			return fmt.Errorf("increment total minutes: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrUserNotFound
		}

		event := db.TimeAction{
			UserID:       userID,
			Action:       text,
			MinutesAdded: minutes,
		}
		event.CreatedAt = s.now()

		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("append time action: %w", err)
		}

		var user db.User
		if err := tx.Select("total_minutes").First(&user, userID).Error; err != nil {
			return fmt.Errorf("reload total minutes: %w", err)
		}
		total = user.TotalMinutes

		return nil
	})
	if err != nil {
		return 0, err
	}

	return total, nil
}

// Total 返回用户累计分钟数缓存值
func (s *LedgerService) Total(userID uint) (int, error) {
	var user db.User
	if err := s.db.Select("total_minutes").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("load total minutes: %w", err)
	}
	return user.TotalMinutes, nil
}

// TodayTotal 汇总客户端本地"今日"内的分钟数
func (s *LedgerService) TodayTotal(userID uint, offsetMinutes int) (int, error) {
	events, err := s.eventsSince(s.db, userID, LocalMidnightUTC(offsetMinutes, s.now()))
	if err != nil {
		return 0, err
	}

	total := 0
	for _, event := range events {
		total += event.minutes
	}
	return total, nil
}

// TodayActions 返回"今日"内去重的动作文案及每个文案的次数。
// Distinct 保持首次出现顺序。
func (s *LedgerService) TodayActions(userID uint, offsetMinutes int) (*TodaySummary, error) {
	events, err := s.eventsSince(s.db, userID, LocalMidnightUTC(offsetMinutes, s.now()))
	if err != nil {
		return nil, err
	}

	summary := &TodaySummary{
		Distinct: make([]string, 0, len(events)),
		Counts:   make(map[string]int, len(events)),
	}
	for _, event := range events {
		if _, seen := summary.Counts[event.action]; !seen {
			summary.Distinct = append(summary.Distinct, event.action)
		}
		summary.Counts[event.action]++
	}
	return summary, nil
}

// ResetToday 删除"今日"内的事件并把累计值扣减对应分钟数。
// 扣减在 0 处封底：即使并发修改已使累计值低于扣减额，也不会出现负数。
// 返回删除条数与实际汇总的扣减分钟数。
func (s *LedgerService) ResetToday(userID uint, offsetMinutes int) (int, int, error) {
	boundary := LocalMidnightUTC(offsetMinutes, s.now())

	var deleted, subtracted int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		events, err := s.eventsSince(tx, userID, boundary)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(events))
		sum := 0
		for _, event := range events {
			ids = append(ids, event.id)
			sum += event.minutes
		}

		if err := tx.Unscoped().Delete(&db.TimeAction{}, ids).Error; err != nil {
			return fmt.Errorf("delete today actions: %w", err)
		}

		// MAX(x, 0) 封底，total_minutes 永不为负
		if err := tx.Model(&db.User{}).
			Where("id = ?", userID).
			Update("total_minutes", gorm.Expr("MAX(total_minutes - ?, 0)", sum)).Error; err != nil {
			return fmt.Errorf("decrement total minutes: %w", err)
		}

		deleted = len(ids)
		subtracted = sum
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return deleted, subtracted, nil
}

// ResetAll 把用户恢复到初始状态：清空事件、归零累计值、移除全部覆盖表
func (s *LedgerService) ResetAll(userID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&db.TimeAction{}).Error; err != nil {
			return fmt.Errorf("clear time actions: %w", err)
		}

		result := tx.Model(&db.User{}).Where("id = ?", userID).Update("total_minutes", 0)
		if result.Error != nil {
			return fmt.Errorf("reset total minutes: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrUserNotFound
		}

		return s.catalog.ResetOverrides(tx, userID)
	})
}

// History 返回用户的打卡历史（新在前），供管理端展示
func (s *LedgerService) History(userID uint) ([]ActionRecord, error) {
	rows, err := s.rawEvents(s.db, userID)
	if err != nil {
		return nil, err
	}

	records := make([]ActionRecord, 0, len(rows))
	for _, row := range rows {
		at, ok := s.parseEventTime(row)
		if !ok {
			continue
		}
		records = append(records, ActionRecord{
			ID:           row.ID,
			Action:       row.Action,
			MinutesAdded: row.MinutesAdded,
			CreatedAt:    at.UTC().Format(time.RFC3339),
		})
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	return records, nil
}

type eventRow struct {
	ID           uint
	Action       string
	MinutesAdded int
	CreatedAt    string
}

type parsedEvent struct {
	id      uint
	action  string
	minutes int
	at      time.Time
}

// eventTimeLayouts 覆盖 sqlite 中可能出现的几种时间戳格式；
// 不带时区信息的存量时间戳按 UTC 解释
var eventTimeLayouts = []struct {
	layout string
	zoned  bool
}{
	{"2006-01-02 15:04:05.999999999-07:00", true},
	{time.RFC3339Nano, true},
	{time.RFC3339, true},
	{"2006-01-02 15:04:05.999999999", false},
	{"2006-01-02 15:04:05", false},
}

func (s *LedgerService) rawEvents(tx *gorm.DB, userID uint) ([]eventRow, error) {
	var rows []eventRow
	if err := tx.Model(&db.TimeAction{}).
		Select("id, action, minutes_added, created_at").
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list time actions: %w", err)
	}
	return rows, nil
}

// eventsSince 加载用户事件并按边界过滤。
// 单条历史行时间戳解析失败只记日志并跳过，绝不让一条坏数据阻塞整个"今日"查询。
func (s *LedgerService) eventsSince(tx *gorm.DB, userID uint, boundary time.Time) ([]parsedEvent, error) {
	rows, err := s.rawEvents(tx, userID)
	if err != nil {
		return nil, err
	}

	events := make([]parsedEvent, 0, len(rows))
	for _, row := range rows {
		at, ok := s.parseEventTime(row)
		if !ok {
			continue
		}
		if at.Before(boundary) {
			continue
		}
		events = append(events, parsedEvent{id: row.ID, action: row.Action, minutes: row.MinutesAdded, at: at})
	}

	return events, nil
}

func (s *LedgerService) parseEventTime(row eventRow) (time.Time, bool) {
	for _, candidate := range eventTimeLayouts {
		if candidate.zoned {
			if at, err := time.Parse(candidate.layout, row.CreatedAt); err == nil {
				return at, true
			}
			continue
		}
		if at, err := time.ParseInLocation(candidate.layout, row.CreatedAt, time.UTC); err == nil {
			return at, true
		}
	}

	s.log.Warn().
		Uint("event_id", row.ID).
		Str("created_at", row.CreatedAt).
		Msg("skipping time action with unparseable timestamp")
	return time.Time{}, false
}

func (s *LedgerService) resolveMinutes(userID uint, text string) (int, error) {
	lookup, err := s.catalog.Lookup(userID)
	if err != nil {
		return 0, err
	}
	if minutes, ok := lookup[text]; ok {
		return minutes, nil
	}

	// 兜底路径：直接按展示文案查编辑载荷与自建动作，结果应与合并视图一致
	var edit db.EditedAction
	err = s.db.Where("user_id = ? AND text = ?", userID, text).First(&edit).Error
	if err == nil {
		return edit.Minutes, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("lookup edit override: %w", err)
	}

	var custom db.CustomAction
	err = s.db.Where("user_id = ? AND text = ?", userID, text).First(&custom).Error
	if err == nil {
		return custom.Minutes, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("lookup custom action: %w", err)
	}

	return 0, ErrUnknownAction
}
