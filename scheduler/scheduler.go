package scheduler

import (
	"context"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/akhmadkhasan68/efcore-query-analyzer/util"
)

type Group struct {
	interval *cronexpr.Expression
}

func (group Group) Schedule(ctx context.Context, runner func(), logger *util.Logger, logName string) {
	go func() {
		for {
			delay := group.interval.Next(time.Now()).Sub(time.Now())

			logger.PrintVerbose("Scheduled next run for %s in %+v", logName, delay)

			select {
			case <-time.After(delay):
				runner()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func GetSchedulerGroups() (groups map[string]Group, err error) {
	oneMinuteInterval, err := cronexpr.Parse("0 * * * * * *")
	if err != nil {
		return
	}

	groups = make(map[string]Group)

	groups["stats"] = Group{interval: oneMinuteInterval}

	return
}
