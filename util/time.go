package util

import "time"

// NowMillis is the timestamp format used everywhere an instant is persisted
// (lock timestamps, error records, addon purchases).
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

func FromMillis(m int64) time.Time {
	return time.UnixMilli(m)
}
