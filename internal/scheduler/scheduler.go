package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/LJTian/ToramListener/internal/collector"
	"github.com/LJTian/ToramListener/internal/processor"
	"github.com/robfig/cron/v3"
)

// DefaultInterval 两轮轮询之间的间隔
const DefaultInterval = 5 * time.Minute

// Listing 返回今天的新闻 ID，旧的在前
type Listing interface {
	FetchToday(ctx context.Context) ([]collector.NewsID, error)
}

// Extractor 抓取并解析单条新闻
type Extractor interface {
	Extract(ctx context.Context, id collector.NewsID) (*collector.ExtractedNews, error)
}

// Formatter 段落 → 内容块
type Formatter interface {
	Format(news *collector.ExtractedNews) []processor.ContentBlock
}

// Scheduler 用 cron 驱动投递循环：@every interval，上一轮未结束时跳过
type Scheduler struct {
	cron     *cron.Cron
	loop     *Loop
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func New(interval time.Duration, loop *Loop) (*Scheduler, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:     c,
		loop:     loop,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}

	job := cron.FuncJob(func() { s.loop.RunCycle(s.ctx) })
	if _, err := c.AddJob(fmt.Sprintf("@every %s", interval), job); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// Start 立即跑一轮，之后按间隔轮询
func (s *Scheduler) Start() {
	slog.Info("scheduler started", "interval", s.interval.String())
	s.cron.Start()
	entries := s.cron.Entries()
	if len(entries) > 0 {
		// 走 cron 包装过的 job，保证和定时触发互斥
		job := entries[0].WrappedJob
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			job.Run()
		}()
	}
}

// Stop 取消进行中的网络请求并等待当前一轮结束
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	slog.Info("scheduler stopped")
}

// RunOnce 对外暴露的单次执行入口，方便手动触发
func (s *Scheduler) RunOnce() CycleReport {
	return s.loop.RunCycle(s.ctx)
}

func (s *Scheduler) Cron() *cron.Cron {
	return s.cron
}
