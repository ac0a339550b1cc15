package services

import "time"

// Clock 可注入的时间源，生产环境为 time.Now
type Clock func() time.Time

// todayRange 返回 now 所在自然日的起止时间
func todayRange(now time.Time) (time.Time, time.Time) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return startOfDay, startOfDay.Add(24 * time.Hour)
}
