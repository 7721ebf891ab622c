package pinguard

import "time"

func (g *Memory) SetClock(now func() time.Time) {
	g.now = now
}
