package service

import "time"

// LocalMidnightUTC 计算客户端时区当天零点对应的 UTC 时刻。
// offsetMinutes 遵循 JavaScript getTimezoneOffset 的符号约定：
// local = UTC + (-offset)，即 UTC-5 为 +300，UTC+3 为 -180。
// 客户端只上报一个原始数字偏移，服务端不做时区数据库查询，
// 因此"现在"与历史事件之间的夏令时跳变无法校正，这是接受的近似。
// 该函数必须保持纯函数，每次请求重新求值，不做任何缓存。
func LocalMidnightUTC(offsetMinutes int, ref time.Time) time.Time {
	loc := time.FixedZone("client", -offsetMinutes*60)
	local := ref.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return midnight.UTC()
}
