package pipeline

import "time"

// Observer 接收 Pipeline 的运行事件，用于打点。实现必须并发安全。
// pkg/metrics 提供 Prometheus 实现。
type Observer interface {
	// StageDone 在每个 Stage（含召回源）执行后调用
	StageDone(kind Kind, name string, d time.Duration)
	// StageDegraded 在 Stage 出错并被降级吸收时调用
	StageDegraded(kind Kind, name string)
	// SourceReturned 记录召回源贡献的候选数
	SourceReturned(name string, n int, d time.Duration)
	// SourceFailed 记录召回源失败（超时或错误）
	SourceFailed(name string)
}

type noopObserver struct{}

func (noopObserver) StageDone(Kind, string, time.Duration) {}
func (noopObserver) StageDegraded(Kind, string) {}
func (noopObserver) SourceReturned(string, int, time.Duration) {}
func (noopObserver) SourceFailed(string) {}
