package redis

import (
	"fmt"
	"time"
)

const ns = "bistro:v1"

func KeyDayRevenue(day time.Time) string {
	return fmt.Sprintf("%s:revenue:day:%s", ns, day.Format(time.DateOnly))
}

func KeyMonthRevenue(year int, month time.Month) string {
	return fmt.Sprintf("%s:revenue:month:%04d-%02d", ns, year, int(month))
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeyIdemReservation(idemKey string) string {
	return fmt.Sprintf("%s:idem:reservations:%s", ns, idemKey)
}

func ChannelFloorEvents() string {
	return ns + ":floor:events"
}
