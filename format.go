package goEnroll

import (
	"fmt"
	"time"

	"github.com/MrEthical07/goEnroll/internal/phone"
)

// FormatCountdown renders a remaining duration as MM:SS, rounding partial
// seconds up so "00:00" is shown only once the deadline has passed. Negative
// durations render as "00:00".
func FormatCountdown(d time.Duration) string {
	if d <= 0 {
		return "00:00"
	}
	secs := int64((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// FormatPhoneNumber renders "<countryCode> <digits>", e.g. "+1 5551234567".
func FormatPhoneNumber(countryCode, number string) string {
	return phone.Format(countryCode, number)
}
