package service

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultAction 描述共享配置中的一条默认动作
// 字段名与前端约定保持一致（连字符风格）
type DefaultAction struct {
	Text                   string   `json:"text"`
	Minutes                int      `json:"minutes"`
	SimilarTo              []string `json:"similar-to"`
	IsRepeatableDaily      bool     `json:"is-repeatable-daily"`
	MustBeLoggedAtEndOfDay bool     `json:"must-be-logged-at-end-of-day"`
	Warning                string   `json:"warning,omitempty"`
}

// DefaultActionSource 提供只读的默认动作列表
// 进程启动时加载一次，请求期间不可变；测试可以直接用 NewDefaultActionSourceFromList 注入夹具
type DefaultActionSource struct {
	actions []DefaultAction
	byText  map[string]DefaultAction
}

// seedDefaultActions 是配置文件不可用时的内置回退，保证系统开箱可用
func seedDefaultActions() []DefaultAction {
	return []DefaultAction{
		{Text: "skipped a meal!", Minutes: 30, IsRepeatableDaily: true},
		{Text: "skipped a drink!", Minutes: 15, IsRepeatableDaily: true},
		{Text: "went running!", Minutes: 45, IsRepeatableDaily: true},
	}
}

// LoadDefaultActions 从 JSON 配置文件加载默认动作列表。
// 文件不可读、内容非法或为空时回退到内置种子并记录警告，调用方无需中断启动。
func LoadDefaultActions(path string, log zerolog.Logger) *DefaultActionSource {
	path = strings.TrimSpace(path)
	if path == "" {
		return NewDefaultActionSourceFromList(seedDefaultActions())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("default actions config unreadable, using built-in seed")
		return NewDefaultActionSourceFromList(seedDefaultActions())
	}

	var actions []DefaultAction
	if err := json.Unmarshal(data, &actions); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("default actions config malformed, using built-in seed")
		return NewDefaultActionSourceFromList(seedDefaultActions())
	}

	valid := make([]DefaultAction, 0, len(actions))
	for _, action := range actions {
		if strings.TrimSpace(action.Text) == "" || action.Minutes < 0 {
			log.Warn().Str("text", action.Text).Int("minutes", action.Minutes).Msg("skipping invalid default action entry")
			continue
		}
		valid = append(valid, action)
	}

	if len(valid) == 0 {
		log.Warn().Str("path", path).Msg("default actions config empty, using built-in seed")
		return NewDefaultActionSourceFromList(seedDefaultActions())
	}

	return NewDefaultActionSourceFromList(valid)
}

// NewDefaultActionSourceFromList 用给定列表构造默认动作源，保留配置文件中的顺序
func NewDefaultActionSourceFromList(actions []DefaultAction) *DefaultActionSource {
	copied := make([]DefaultAction, len(actions))
	copy(copied, actions)

	byText := make(map[string]DefaultAction, len(copied))
	for _, action := range copied {
		byText[action.Text] = action
	}

	return &DefaultActionSource{actions: copied, byText: byText}
}

// Actions 返回默认动作的副本，调用方可以随意修改而不影响共享状态
func (s *DefaultActionSource) Actions() []DefaultAction {
	copied := make([]DefaultAction, len(s.actions))
	copy(copied, s.actions)
	return copied
}

// Contains 判断给定文案是否为当前默认动作
func (s *DefaultActionSource) Contains(text string) bool {
	_, ok := s.byText[text]
	return ok
}

// Get 按文案返回默认动作
func (s *DefaultActionSource) Get(text string) (DefaultAction, bool) {
	action, ok := s.byText[text]
	return action, ok
}

// Minutes 返回默认的 text→minutes 映射
func (s *DefaultActionSource) Minutes() map[string]int {
	lookup := make(map[string]int, len(s.actions))
	for _, action := range s.actions {
		lookup[action.Text] = action.Minutes
	}
	return lookup
}

// String 便于启动日志输出加载结果
func (s *DefaultActionSource) String() string {
	return fmt.Sprintf("%d default actions", len(s.actions))
}
