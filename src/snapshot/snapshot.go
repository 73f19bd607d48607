// Package snapshot 定时导出两种视角的表格
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron"

	"AirlineInsights/src/datasource/file"
	"AirlineInsights/src/export"
	"AirlineInsights/src/processor"
	"AirlineInsights/src/report"
	"AirlineInsights/src/storage"
)

// Tables 计算某一视角的表格，*report.Builder 实现该接口
type Tables interface {
	Tables(m report.Mode) ([]processor.Table, error)
}

// Sender 推送生成的文件，*datapush.Mailer 实现该接口
type Sender interface {
	Send(ctx context.Context, attachment, text string) error
}

// Job 生成快照工作簿，配置了 Sender 时一并推送
type Job struct {
	tables Tables
	dir    string
	sender Sender
	logger *storage.Logger
	now    func() time.Time
}

// New sender 可以为空
func New(tables Tables, dir string, sender Sender, logger *storage.Logger) *Job {
	return &Job{tables: tables, dir: dir, sender: sender, logger: logger, now: time.Now}
}

// Run 导出一次快照，返回文件路径
// 航司分析数据缺失时只导出旅客视角
func (j *Job) Run(ctx context.Context) (string, error) {
	var all []processor.Table
	for _, m := range report.Modes {
		tables, err := j.tables.Tables(m)
		if errors.Is(err, file.ErrAnalysisMissing) {
			j.warn(fmt.Sprintf("快照跳过 %s: %v", m, err))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("快照计算 %s 失败: %w", m, err)
		}
		all = append(all, tables...)
	}

	if err := os.MkdirAll(j.dir, 0755); err != nil {
		return "", fmt.Errorf("创建快照目录失败: %w", err)
	}
	path := filepath.Join(j.dir, j.fileName())
	if err := export.SaveToExcel(all, path); err != nil {
		return "", err
	}
	j.info("快照已保存到: " + path)

	if j.sender != nil {
		text := fmt.Sprintf("Airline insights snapshot generated at %s.", j.now().Format(time.RFC3339))
		if err := j.sender.Send(ctx, path, text); err != nil {
			return path, fmt.Errorf("快照推送失败: %w", err)
		}
		j.info("快照已推送: " + path)
	}
	return path, nil
}

// fileName snapshot-<时间>-<uuid前8位>.xlsx
func (j *Job) fileName() string {
	return fmt.Sprintf("snapshot-%s-%s.xlsx", j.now().Format("20060102-150405"), uuid.NewString()[:8])
}

// Schedule 按 cron 表达式执行，直到 ctx 结束
func (j *Job) Schedule(ctx context.Context, spec string) error {
	c := cron.New()
	err := c.AddFunc(spec, func() {
		t1 := time.Now()
		if _, err := j.Run(ctx); err != nil {
			j.logError(err.Error())
			return
		}
		j.info(fmt.Sprintf("快照耗时：%v", time.Since(t1)))
	})
	if err != nil {
		return fmt.Errorf("创建定时任务失败: %w", err)
	}

	c.Start()
	defer c.Stop()
	j.info(fmt.Sprintf("快照任务已启动(%s)", spec))

	<-ctx.Done()
	return nil
}

func (j *Job) info(msg string) {
	if j.logger != nil {
		j.logger.Info(msg)
	}
}

func (j *Job) warn(msg string) {
	if j.logger != nil {
		j.logger.Warning(msg)
	}
}

func (j *Job) logError(msg string) {
	if j.logger != nil {
		j.logger.Error(msg)
	}
}
