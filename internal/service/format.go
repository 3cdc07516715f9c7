package service

// TimeBreakdown 是累计分钟数的展示形式
type TimeBreakdown struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

const minutesPerDay = 24 * 60

// FormatMinutes 把总分钟数拆解为 天/小时/分钟。
// 纯整数运算；入参非负由上游不变式保证，负值行为未定义。
func FormatMinutes(totalMinutes int) TimeBreakdown {
	days := totalMinutes / minutesPerDay
	remaining := totalMinutes % minutesPerDay
	return TimeBreakdown{
		Days:    days,
		Hours:   remaining / 60,
		Minutes: remaining % 60,
	}
}
