package mobile

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"privacy-inspector/internal/domain/model"
)

var (
	// ErrToolMissing 表示采集所需的外部命令不存在。
	ErrToolMissing = errors.New("mobile: required tool not found")
	// ErrNoDevice 表示没有找到已授权的设备。
	ErrNoDevice = errors.New("mobile: no authorized device")
)

// Collection 是一次设备采集的结果，也是离线清单文件的内容。
type Collection struct {
	DeviceInfo model.DeviceInfo       `json:"device_info"`
	Apps       []model.InstalledApp   `json:"apps"`
	Prechecks  []model.PrecheckResult `json:"prechecks,omitempty"`
	Warnings   []string               `json:"warnings,omitempty"`
	// Source 描述采集方式：adb / ideviceinstaller / inventory。
	Source      string `json:"source"`
	CollectedAt int64  `json:"collected_at"`
}

// Collector 从某个来源得到设备快照和应用列表。
type Collector interface {
	Collect(ctx context.Context) (*Collection, error)
}

// Runner 执行外部命令。测试里用假的实现回放抓取好的输出。
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
	LookPath(name string) error
}

// ExecRunner 通过 os/exec 执行命令。
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%s %s: %s", name, strings.Join(args, " "), msg)
	}
	return string(out), nil
}

func (ExecRunner) LookPath(name string) error {
	_, err := exec.LookPath(name)
	return err
}

// Progress 在逐个读取应用详情时回调。
type Progress func(done, total int)

func precheck(code, name string, required bool, err error) model.PrecheckResult {
	p := model.PrecheckResult{
		CheckCode: code,
		CheckName: name,
		Required:  required,
		Status:    model.PrecheckPassed,
		CheckedAt: time.Now().Unix(),
	}
	if err != nil {
		p.Status = model.PrecheckFailed
		p.Message = err.Error()
	}
	return p
}
