package middlewares

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/zekrotja/ken"
)

type CooldownMiddleware struct {
	mtx       sync.Mutex
	cooldowns map[string]time.Time // key: userID + command name
	now       func() time.Time
}

var _ ken.MiddlewareBefore = (*CooldownMiddleware)(nil)

func NewCooldownMiddleware() *CooldownMiddleware {
	return &CooldownMiddleware{
		cooldowns: make(map[string]time.Time),
		now:       time.Now,
	}
}

func (m *CooldownMiddleware) Before(ctx *ken.Ctx) (next bool, err error) {
	cmd, ok := ctx.Command.(CommandCooldown)
	if !ok || ctx.User() == nil {
		return true, nil
	}

	remaining := m.take(ctx.User().ID, ctx.Command.Name(), time.Duration(cmd.Cooldown())*time.Second)
	if remaining > 0 {
		err = ctx.RespondError(
			fmt.Sprintf("You are on cooldown, please wait %d more seconds.", int(math.Ceil(remaining.Seconds()))),
			"Cooldown")
		return false, err
	}

	return true, nil
}

// take returns the time left until the user can run the command
// again or starts a new cooldown and returns 0.
func (m *CooldownMiddleware) take(userID, command string, cooldown time.Duration) time.Duration {
	if cooldown <= 0 {
		return 0
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	now := m.now()
	key := userID + ":" + command

	if until, ok := m.cooldowns[key]; ok && now.Before(until) {
		return until.Sub(now)
	}

	m.cooldowns[key] = now.Add(cooldown)
	m.cleanup(now)

	return 0
}

func (m *CooldownMiddleware) cleanup(now time.Time) {
	for k, until := range m.cooldowns {
		if !now.Before(until) {
			delete(m.cooldowns, k)
		}
	}
}

type CommandCooldown interface {
	// Cooldown returns the cooldown of the command in seconds.
	Cooldown() int
}
