package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/LJTian/ToramListener/internal/collector"
	"github.com/LJTian/ToramListener/internal/notify"
	"github.com/LJTian/ToramListener/internal/storage"
)

// State 投递循环所处的阶段
type State string

const (
	StateIdle       State = "idle"
	StateListing    State = "listing"
	StateDiffing    State = "diffing"
	StateDelivering State = "delivering"
	StateAdvancing  State = "advancing"
	StateSleeping   State = "sleeping"
)

// Outcome 单条新闻的投递结果
type Outcome struct {
	ID        collector.NewsID
	Delivered bool
	Status    int
	Err       error
}

// CycleReport 一轮轮询的结果，主要用于日志和测试
type CycleReport struct {
	Listing   []collector.NewsID
	Pending   []collector.NewsID
	Outcomes  []Outcome
	Watermark collector.NewsID
	Advanced  bool
	Err       error
}

// Loop 一轮 LISTING → DIFFING → DELIVERING → ADVANCING；SLEEPING 由 Scheduler 负责
type Loop struct {
	listing   Listing
	extractor Extractor
	formatter Formatter
	transport notify.Transport
	store     storage.WatermarkStore

	state State
	// OnState 测试用的状态回调
	OnState func(State)
}

func NewLoop(l Listing, e Extractor, f Formatter, t notify.Transport, store storage.WatermarkStore) *Loop {
	return &Loop{
		listing:   l,
		extractor: e,
		formatter: f,
		transport: t,
		store:     store,
		state:     StateIdle,
	}
}

func (l *Loop) State() State {
	return l.state
}

func (l *Loop) enter(s State) {
	l.state = s
	if l.OnState != nil {
		l.OnState(s)
	}
}

// RunCycle 执行一轮，结束时停在 SLEEPING。单条新闻失败不会中断本轮。
func (l *Loop) RunCycle(ctx context.Context) CycleReport {
	defer l.enter(StateSleeping)

	var report CycleReport
	slog.Info("cycle start")

	l.enter(StateListing)
	listing, err := l.listing.FetchToday(ctx)
	if err != nil {
		slog.Error("cycle skipped: listing failed", "err", err)
		report.Err = err
		return report
	}
	report.Listing = listing

	l.enter(StateDiffing)
	watermark, ok, err := l.store.Get(ctx)
	if err != nil {
		// 读失败按“没有水位”处理，最多重复投递当天的新闻
		slog.Warn("watermark read failed, treating as absent", "err", err)
		watermark, ok = "", false
	}
	report.Watermark = watermark

	pending := NewIDs(listing, watermark, ok)
	report.Pending = pending
	if len(pending) == 0 {
		slog.Info("no news detected", "today", len(listing), "watermark", string(watermark))
		return report
	}
	slog.Info("new news detected", "count", len(pending), "watermark", string(watermark))

	l.enter(StateDelivering)
	report.Outcomes = make([]Outcome, 0, len(pending))
	for _, id := range pending {
		report.Outcomes = append(report.Outcomes, l.deliverOne(ctx, id))
	}

	l.enter(StateAdvancing)
	last, ok := LastConfirmed(report.Outcomes)
	if !ok {
		slog.Warn("no delivery confirmed, watermark unchanged", "attempted", len(pending))
		return report
	}
	if err := l.store.Set(ctx, last); err != nil {
		slog.Error("watermark write failed", "id", string(last), "err", err)
		report.Err = err
		return report
	}
	report.Watermark = last
	report.Advanced = true
	slog.Info("cycle done", "watermark", string(last), "delivered", countDelivered(report.Outcomes), "attempted", len(pending))
	return report
}

func (l *Loop) deliverOne(ctx context.Context, id collector.NewsID) Outcome {
	out := Outcome{ID: id}

	news, err := l.extractor.Extract(ctx, id)
	if err != nil {
		out.Err = err
		slog.Error("extract news failed", "id", string(id), "err", err)
		return out
	}

	blocks := l.formatter.Format(news)
	status, err := l.transport.Deliver(ctx, blocks)
	out.Status = status
	if err != nil {
		if !errors.Is(err, notify.ErrDelivery) {
			err = fmt.Errorf("%w: %v", notify.ErrDelivery, err)
		}
		out.Err = err
		slog.Error("deliver news failed", "id", string(id), "status", status, "err", err)
		return out
	}

	out.Delivered = true
	slog.Info("news delivered", "id", string(id), "title", news.Title(), "blocks", len(blocks), "status", status)

	if j, ok := l.store.(storage.Journal); ok {
		if err := j.Record(ctx, news, len(blocks)); err != nil {
			slog.Warn("record delivery failed", "id", string(id), "err", err)
		}
	}
	return out
}

// NewIDs 水位在今天的列表里时返回其后的部分，否则返回整个列表
func NewIDs(listing []collector.NewsID, watermark collector.NewsID, ok bool) []collector.NewsID {
	if ok {
		for i, id := range listing {
			if id == watermark {
				return listing[i+1:]
			}
		}
	}
	return listing
}

// LastConfirmed 返回最后一个投递成功的 ID；中间的失败不阻止水位前进
func LastConfirmed(outcomes []Outcome) (collector.NewsID, bool) {
	for i := len(outcomes) - 1; i >= 0; i-- {
		if outcomes[i].Delivered {
			return outcomes[i].ID, true
		}
	}
	return "", false
}

func countDelivered(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Delivered {
			n++
		}
	}
	return n
}
