package service

import (
	"errors"
	"reflect"
	"testing"

	"github.com/minutebank/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupServiceTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.User{}, &db.TimeAction{}, &db.DeletedAction{}, &db.EditedAction{}, &db.CustomAction{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func testDefaults() *DefaultActionSource {
	return NewDefaultActionSourceFromList([]DefaultAction{
		{Text: "skipped a meal!", Minutes: 30, IsRepeatableDaily: true},
		{Text: "skipped a drink!", Minutes: 15, IsRepeatableDaily: true},
		{Text: "went running!", Minutes: 45, IsRepeatableDaily: true, Warning: "stretch first"},
	})
}

func createTestUser(t *testing.T, username string) *db.User {
	t.Helper()
	user := db.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		DisplayName:  username,
	}
	if err := db.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return &user
}

func TestCatalogResolveAnonymous(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewCatalogService(db.DB, testDefaults())

	actions, err := svc.Resolve(0)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if len(actions) != 3 {
		t.Fatalf("expected 3 default actions, got %d", len(actions))
	}

	if actions[0].Text != "skipped a meal!" || actions[0].Minutes != 30 {
		t.Fatalf("unexpected first action: %+v", actions[0])
	}

	for _, action := range actions {
		if action.IsEdited || action.IsCustom || action.OriginalText != "" {
			t.Fatalf("anonymous view must be pristine defaults, got %+v", action)
		}
	}
}

func TestCatalogDeleteAndRestore(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewCatalogService(db.DB, testDefaults())
	user := createTestUser(t, "alice")

	before, err := svc.Resolve(user.ID)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if err := svc.DeleteDefault(user.ID, "skipped a drink!"); err != nil {
		t.Fatalf("DeleteDefault returned error: %v", err)
	}

	actions, err := svc.Resolve(user.ID)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions after delete, got %d", len(actions))
	}
	for _, action := range actions {
		if action.Text == "skipped a drink!" {
			t.Fatal("deleted action still present in catalog")
		}
	}

	// 删除仅对该用户生效，不能作用于非默认文案
	if err := svc.DeleteDefault(user.ID, "not a default"); !errors.Is(err, ErrNotDefaultAction) {
		t.Fatalf("expected ErrNotDefaultAction, got %v", err)
	}

	if err := svc.RestoreDefault(user.ID, "skipped a drink!"); err != nil {
		t.Fatalf("RestoreDefault returned error: %v", err)
	}

	after, err := svc.Resolve(user.ID)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("catalog not restored to pre-delete state:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestCatalogEditDefault(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewCatalogService(db.DB, testDefaults())
	user := createTestUser(t, "bob")

	before, err := svc.Resolve(user.ID)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	edit, err := svc.EditDefault(user.ID, "skipped a meal!", ActionInput{
		Text:              "fasted all morning!",
		Minutes:           60,
		IsRepeatableDaily: true,
	})
	if err != nil {
		t.Fatalf("EditDefault returned error: %v", err)
	}
	if edit.OriginalText != "skipped a meal!" {
		t.Fatalf("expected original text to be retained, got %q", edit.OriginalText)
	}

	actions, err := svc.Resolve(user.ID)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	// 编辑后的条目保持在原位置，并带 original_text 回指
	if actions[0].Text != "fasted all morning!" || actions[0].Minutes != 60 {
		t.Fatalf("unexpected edited action: %+v", actions[0])
	}
	if !actions[0].IsEdited || actions[0].OriginalText != "skipped a meal!" {
		t.Fatalf("edited action missing back-reference: %+v", actions[0])
	}

	// 再次编辑依旧按原始默认文案定位
	if _, err := svc.EditDefault(user.ID, "skipped a meal!", ActionInput{Text: "fasted!", Minutes: 50}); err != nil {
		t.Fatalf("re-edit returned error: %v", err)
	}
	actions, _ = svc.Resolve(user.ID)
	if actions[0].Text != "fasted!" || actions[0].Minutes != 50 {
		t.Fatalf("re-edit did not replace payload: %+v", actions[0])
	}

	// 按展示文案编辑会失败：定位键永远是当前默认文案
	if _, err := svc.EditDefault(user.ID, "fasted!", ActionInput{Text: "x", Minutes: 1}); !errors.Is(err, ErrNotDefaultAction) {
		t.Fatalf("expected ErrNotDefaultAction, got %v", err)
	}

	if err := svc.RestoreDefault(user.ID, "skipped a meal!"); err != nil {
		t.Fatalf("RestoreDefault returned error: %v", err)
	}

	after, err := svc.Resolve(user.ID)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("catalog not restored to pre-edit state:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestCatalogEditSupersedesDelete(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewCatalogService(db.DB, testDefaults())
	user := createTestUser(t, "carol")

	if err := svc.DeleteDefault(user.ID, "went running!"); err != nil {
		t.Fatalf("DeleteDefault returned error: %v", err)
	}

	if _, err := svc.EditDefault(user.ID, "went running!", ActionInput{Text: "went jogging!", Minutes: 40}); err != nil {
		t.Fatalf("EditDefault returned error: %v", err)
	}

	// 编辑清除了删除标记，条目重新可见
	actions, err := svc.Resolve(user.ID)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	found := false
	for _, action := range actions {
		if action.Text == "went jogging!" {
			found = true
		}
	}
	if !found {
		t.Fatal("edited action not visible after edit-over-delete")
	}

	var deletions int64
	db.DB.Model(&db.DeletedAction{}).Where("user_id = ?", user.ID).Count(&deletions)
	if deletions != 0 {
		t.Fatalf("expected deletion override to be cleared, found %d", deletions)
	}

	// 反向：删除同样清除编辑载荷，二者互斥
	if err := svc.DeleteDefault(user.ID, "went running!"); err != nil {
		t.Fatalf("DeleteDefault returned error: %v", err)
	}
	var edits int64
	db.DB.Model(&db.EditedAction{}).Where("user_id = ?", user.ID).Count(&edits)
	if edits != 0 {
		t.Fatalf("expected edit override to be cleared, found %d", edits)
	}
}

func TestCatalogLookupRenameSemantics(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewCatalogService(db.DB, testDefaults())
	user := createTestUser(t, "dave")

	if _, err := svc.EditDefault(user.ID, "skipped a meal!", ActionInput{Text: "fasted!", Minutes: 60}); err != nil {
		t.Fatalf("EditDefault returned error: %v", err)
	}

	lookup, err := svc.Lookup(user.ID)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}

	// 改名后旧文案查找失败，新文案按编辑后的分钟数生效
	if _, ok := lookup["skipped a meal!"]; ok {
		t.Fatal("old text must not resolve after rename")
	}
	if minutes, ok := lookup["fasted!"]; !ok || minutes != 60 {
		t.Fatalf("new text lookup = (%d, %v), want (60, true)", minutes, ok)
	}

	// 一条编辑的新文案恰好是另一条的原始文案：
	// 移除原始文案不能吞掉别的编辑写入的新文案
	if _, err := svc.EditDefault(user.ID, "went running!", ActionInput{Text: "skipped a drink!", Minutes: 70}); err != nil {
		t.Fatalf("EditDefault returned error: %v", err)
	}
	if _, err := svc.EditDefault(user.ID, "skipped a drink!", ActionInput{Text: "hydrated!", Minutes: 80}); err != nil {
		t.Fatalf("EditDefault returned error: %v", err)
	}
	lookup, err = svc.Lookup(user.ID)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if minutes, ok := lookup["skipped a drink!"]; !ok || minutes != 70 {
		t.Fatalf("overlapping rename lookup = (%d, %v), want (70, true)", minutes, ok)
	}
	if minutes, ok := lookup["hydrated!"]; !ok || minutes != 80 {
		t.Fatalf("renamed text lookup = (%d, %v), want (80, true)", minutes, ok)
	}
	if _, ok := lookup["went running!"]; ok {
		t.Fatal("renamed-away text must not resolve")
	}

	// 匿名查找不受任何用户覆盖影响
	anonymous, err := svc.Lookup(0)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if minutes, ok := anonymous["skipped a meal!"]; !ok || minutes != 30 {
		t.Fatalf("anonymous lookup = (%d, %v), want (30, true)", minutes, ok)
	}
}

func TestCatalogCustomActions(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewCatalogService(db.DB, testDefaults())
	user := createTestUser(t, "erin")

	if _, err := svc.CreateCustom(user.ID, ActionInput{Text: "read a chapter!", Minutes: 20}); err != nil {
		t.Fatalf("CreateCustom returned error: %v", err)
	}
	if _, err := svc.CreateCustom(user.ID, ActionInput{Text: "meditated!", Minutes: 10}); err != nil {
		t.Fatalf("CreateCustom returned error: %v", err)
	}

	// 重复文案在自建集合内拒绝
	if _, err := svc.CreateCustom(user.ID, ActionInput{Text: "read a chapter!", Minutes: 5}); !errors.Is(err, ErrDuplicateAction) {
		t.Fatalf("expected ErrDuplicateAction, got %v", err)
	}

	// 校验失败：空文案 / 负分钟数
	if _, err := svc.CreateCustom(user.ID, ActionInput{Text: "   ", Minutes: 5}); !errors.Is(err, ErrInvalidActionInput) {
		t.Fatalf("expected ErrInvalidActionInput for empty text, got %v", err)
	}
	if _, err := svc.CreateCustom(user.ID, ActionInput{Text: "negative!", Minutes: -1}); !errors.Is(err, ErrInvalidActionInput) {
		t.Fatalf("expected ErrInvalidActionInput for negative minutes, got %v", err)
	}

	actions, err := svc.Resolve(user.ID)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	// 自建动作排在默认动作之后，按创建顺序
	if len(actions) != 5 {
		t.Fatalf("expected 5 actions, got %d", len(actions))
	}
	if actions[3].Text != "read a chapter!" || !actions[3].IsCustom {
		t.Fatalf("unexpected fourth action: %+v", actions[3])
	}
	if actions[4].Text != "meditated!" || !actions[4].IsCustom {
		t.Fatalf("unexpected fifth action: %+v", actions[4])
	}

	if _, err := svc.EditCustom(user.ID, "meditated!", ActionInput{Text: "meditated twice!", Minutes: 25}); err != nil {
		t.Fatalf("EditCustom returned error: %v", err)
	}
	if _, err := svc.EditCustom(user.ID, "missing!", ActionInput{Text: "x", Minutes: 1}); !errors.Is(err, ErrActionNotFound) {
		t.Fatalf("expected ErrActionNotFound, got %v", err)
	}

	if err := svc.DeleteCustom(user.ID, "read a chapter!"); err != nil {
		t.Fatalf("DeleteCustom returned error: %v", err)
	}
	if err := svc.DeleteCustom(user.ID, "read a chapter!"); !errors.Is(err, ErrActionNotFound) {
		t.Fatalf("expected ErrActionNotFound on double delete, got %v", err)
	}
}

func TestCatalogCustomShadowsDeletedDefault(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewCatalogService(db.DB, testDefaults())
	user := createTestUser(t, "frank")

	if err := svc.DeleteDefault(user.ID, "went running!"); err != nil {
		t.Fatalf("DeleteDefault returned error: %v", err)
	}

	// 自建动作允许与默认动作同名，查找时自建优先
	if _, err := svc.CreateCustom(user.ID, ActionInput{Text: "went running!", Minutes: 90}); err != nil {
		t.Fatalf("CreateCustom returned error: %v", err)
	}

	actions, err := svc.Resolve(user.ID)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	count := 0
	for _, action := range actions {
		if action.Text == "went running!" {
			count++
			if !action.IsCustom {
				t.Fatalf("expected surviving entry to be the custom one: %+v", action)
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one entry with the shadowed text, got %d", count)
	}

	lookup, err := svc.Lookup(user.ID)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if minutes := lookup["went running!"]; minutes != 90 {
		t.Fatalf("custom must win the lookup, got %d minutes", minutes)
	}

	// 恢复默认后该文案同时存在两个来源，映射仍以自建为准
	if err := svc.RestoreDefault(user.ID, "went running!"); err != nil {
		t.Fatalf("RestoreDefault returned error: %v", err)
	}
	lookup, _ = svc.Lookup(user.ID)
	if minutes := lookup["went running!"]; minutes != 90 {
		t.Fatalf("custom must still win after restore, got %d minutes", minutes)
	}
}
