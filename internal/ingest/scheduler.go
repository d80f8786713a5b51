package ingest

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"party-map/internal/coord"
	"party-map/internal/logger"
	"party-map/internal/store"

	"github.com/robfig/cron/v3"
)

// newDailyCron：每天 loc 时区 hour 整点执行一次 job；上一次未结束时跳过本次
func newDailyCron(loc *time.Location, hour int, job func()) (*cron.Cron, error) {
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(fmt.Sprintf("0 %d * * *", hour), job); err != nil {
		return nil, err
	}
	return c, nil
}

// StartDailyShanghai：每天北京时间 INGEST_HOUR 点（默认 3 点）同步一次聚会列表
// 约束：错误只记录日志，调度继续；done 在每次成功写入后调用（用于使快照缓存失效）；ctx 取消时停止调度并等待进行中的同步结束
func StartDailyShanghai(ctx context.Context, st *store.Store, src string, sys coord.System, done func(n int)) {
	l := logger.With("ingest")
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		loc = time.FixedZone("CST", 8*3600)
	}
	hour := 3
	if h := os.Getenv("INGEST_HOUR"); h != "" {
		if n, err := strconv.Atoi(h); err == nil && n >= 0 && n < 24 {
			hour = n
		}
	}
	c, err := newDailyCron(loc, hour, func() {
		n, err := FetchAndImport(ctx, st, src, sys)
		if err != nil {
			l.Error("ingest_error", "err", err)
			return
		}
		if done != nil {
			done(n)
		}
	})
	if err != nil {
		l.Error("ingest_schedule_error", "err", err)
		return
	}
	c.Start()
	l.Info("ingest_scheduled", "hour", hour, "next", c.Entries()[0].Schedule.Next(time.Now().In(loc)))
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
}
