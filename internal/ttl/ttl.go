// Package ttl computes expiry countdowns for board items. The server
// deletes expired items; this package only renders how long is left.
package ttl

import (
	"fmt"
	"strings"
	"time"

	"arkdrop/internal/models"
)

// Info is the countdown for one item. Both fields are nil when the item
// never expires.
type Info struct {
	Progress *float64 `json:"progress"`
	TimeLeft *string  `json:"time_left"`
}

// Expires reports whether the item has a countdown at all.
func (i Info) Expires() bool {
	return i.Progress != nil
}

// Units are the labels used to render the remaining time.
type Units struct {
	Hour    string
	Minute  string
	Second  string
	Expired string
}

var (
	English = Units{Hour: "h", Minute: "m", Second: "s", Expired: "expired"}
	Chinese = Units{Hour: "小时", Minute: "分钟", Second: "秒", Expired: "已过期"}
)

// UnitsFor maps a locale name to its labels. Unknown locales get English.
func UnitsFor(locale string) Units {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "zh", "zh-cn", "zh_cn", "cn":
		return Chinese
	default:
		return English
	}
}

// Compute returns the countdown for item using English labels.
func Compute(item models.Item, expireSeconds int64, now time.Time) Info {
	return ComputeWith(English, item, expireSeconds, now)
}

// ComputeWith returns the countdown for item. Favorites and a zero
// expiry window never expire.
func ComputeWith(units Units, item models.Item, expireSeconds int64, now time.Time) Info {
	if item.Favorite || expireSeconds <= 0 {
		return Info{}
	}

	remaining := item.UpdatedAt + expireSeconds - now.Unix()
	if remaining <= 0 {
		progress := 0.0
		label := units.Expired
		return Info{Progress: &progress, TimeLeft: &label}
	}

	progress := float64(remaining) / float64(expireSeconds) * 100
	label := units.Format(remaining)
	return Info{Progress: &progress, TimeLeft: &label}
}

// Format renders a positive number of seconds.
func (u Units) Format(remaining int64) string {
	hours := remaining / 3600
	minutes := remaining % 3600 / 60
	seconds := remaining % 60

	switch {
	case remaining >= 3600:
		return fmt.Sprintf("%d%s%d%s", hours, u.Hour, minutes, u.Minute)
	case remaining >= 60:
		return fmt.Sprintf("%d%s%d%s", minutes, u.Minute, seconds, u.Second)
	default:
		return fmt.Sprintf("%d%s", seconds, u.Second)
	}
}
