package app

import (
	"time"

	"github.com/ExcursionClub/ExCSystem/db"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// TouchLastSeen stamps the member's last kiosk activity, throttled via a
// redis key so a busy session does not hammer the members table.
func TouchLastSeen(repo *db.Repo, rdb *redis.Client, throttle time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get("memberID")
		if !ok {
			c.Next()
			return
		}
		mid, _ := v.(string)
		if mid == "" {
			c.Next()
			return
		}

		key := "member:lastseen:" + mid
		if ok, _ := rdb.SetNX(c, key, "1", throttle).Result(); ok {
			_ = repo.TouchMemberSeen(c, mid)
		}
		c.Next()
	}
}
