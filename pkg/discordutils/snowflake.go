package discordutils

import (
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
)

// DiscordEpoch is the first millisecond of 2015, the
// epoch of all Discord snowflake IDs.
const DiscordEpoch int64 = 1420070400000

const timestampShift = 22

// IsSnowflake returns true if id is a valid snowflake ID.
func IsSnowflake(id string) bool {
	sf, err := snowflake.ParseString(id)
	return err == nil && sf > 0
}

// CreatedAt returns the creation time encoded in a snowflake ID.
func CreatedAt(id string) (time.Time, error) {
	sf, err := snowflake.ParseString(id)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli((sf.Int64() >> timestampShift) + DiscordEpoch), nil
}

// SortByCreation sorts the given IDs from oldest to newest.
// IDs which are no valid snowflakes are sorted to the end.
func SortByCreation(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		return LessID(ids[i], ids[j])
	})
}

// LessID reports whether snowflake a was created before b.
func LessID(a, b string) bool {
	sa, errA := snowflake.ParseString(a)
	sb, errB := snowflake.ParseString(b)

	switch {
	case errA != nil && errB != nil:
		return a < b
	case errA != nil:
		return false
	case errB != nil:
		return true
	}

	return sa.Int64() < sb.Int64()
}
