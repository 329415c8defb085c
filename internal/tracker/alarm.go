package tracker

import (
	"sync"
	"time"
)

// alarm 单次定时器，同一时刻最多只有一个待触发的唤醒
type alarm struct {
	mu    sync.Mutex
	timer *time.Timer
	at    time.Time
	wake  chan struct{}
}

func newAlarm() *alarm {
	return &alarm{wake: make(chan struct{}, 1)}
}

// arm 在 at 时刻唤醒一次；已有待触发的唤醒时不做任何事并返回 false
func (a *alarm) arm(at, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		return false
	}

	delay := at.Sub(now)
	if delay < 0 {
		delay = 0
	}
	a.at = at
	a.timer = time.AfterFunc(delay, func() {
		select {
		case a.wake <- struct{}{}:
		default:
		}
	})
	return true
}

// pending 返回待触发的唤醒时间
func (a *alarm) pending() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer == nil {
		return time.Time{}, false
	}
	return a.at, true
}

// consume 在处理唤醒前调用，之后才能重新 arm
func (a *alarm) consume() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.timer = nil
}

func (a *alarm) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
