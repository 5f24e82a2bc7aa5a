package mobile

import (
	"bufio"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"howett.net/plist"

	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/platform/logger"
)

// IOSCollector 通过 libimobiledevice 采集一台 iOS 设备。iOS 不暴露逐应用权限，权限列表为空。
type IOSCollector struct {
	Runner Runner
	UDID   string
	log    *logger.Logger
}

// NewIOSCollector 创建 iOS 采集器；runner 为 nil 时使用 ExecRunner。
func NewIOSCollector(runner Runner, udid string, log *logger.Logger) *IOSCollector {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &IOSCollector{Runner: runner, UDID: udid, log: log.OrNop().WithComponent("ios")}
}

// Collect 读取设备信息与已安装应用列表。
func (c *IOSCollector) Collect(ctx context.Context) (*Collection, error) {
	out := &Collection{Source: "ideviceinstaller", CollectedAt: time.Now().Unix(), Apps: []model.InstalledApp{}}

	for _, tool := range []string{"idevice_id", "ideviceinstaller"} {
		err := c.Runner.LookPath(tool)
		out.Prechecks = append(out.Prechecks, precheck(tool+"_available", tool+" installed", true, err))
		if err != nil {
			return out, fmt.Errorf("%w: %s", ErrToolMissing, tool)
		}
	}

	raw, err := c.Runner.Run(ctx, "idevice_id", "-l")
	if err != nil {
		return out, fmt.Errorf("list ios devices: %w", err)
	}
	udid, err := pickUDID(parseUDIDs(raw), c.UDID)
	out.Prechecks = append(out.Prechecks, precheck("device_connected", "device connected", true, err))
	if err != nil {
		return out, err
	}

	out.DeviceInfo = model.DeviceInfo{
		OS:           model.OSIOS,
		Manufacturer: model.Optional("Apple"),
		Identifiers:  model.DeviceIdentifiers{Serial: model.Optional(udid), IPAddresses: []string{}},
	}
	if err := c.Runner.LookPath("ideviceinfo"); err == nil {
		if v, err := c.Runner.Run(ctx, "ideviceinfo", "-u", udid, "-k", "ProductType"); err == nil {
			out.DeviceInfo.Model = model.Optional(v)
		}
		if v, err := c.Runner.Run(ctx, "ideviceinfo", "-u", udid, "-k", "DeviceName"); err == nil {
			out.DeviceInfo.Device = model.Optional(v)
		}
	} else {
		out.Warnings = append(out.Warnings, "ideviceinfo not found, device model unknown")
	}

	xml, err := c.Runner.Run(ctx, "ideviceinstaller", "-u", udid, "-l", "-o", "xml")
	if err != nil {
		return out, fmt.Errorf("list ios apps: %w", err)
	}
	apps, err := parseIOSAppList([]byte(xml))
	if err != nil {
		return out, err
	}
	out.Apps = apps
	c.log.Info().Str("udid", udid).Int("apps", len(apps)).Msg("ios apps collected")
	return out, nil
}

type iosApp struct {
	CFBundleIdentifier  string `plist:"CFBundleIdentifier"`
	CFBundleDisplayName string `plist:"CFBundleDisplayName"`
	CFBundleName        string `plist:"CFBundleName"`
}

// parseIOSAppList 解析 ideviceinstaller -o xml 输出的 plist 数组，按 bundle id 排序去重。
func parseIOSAppList(raw []byte) ([]model.InstalledApp, error) {
	var items []iosApp
	if _, err := plist.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse ideviceinstaller plist: %w", err)
	}
	seen := map[string]struct{}{}
	out := make([]model.InstalledApp, 0, len(items))
	for _, it := range items {
		bid := strings.TrimSpace(it.CFBundleIdentifier)
		if bid == "" {
			continue
		}
		if _, ok := seen[bid]; ok {
			continue
		}
		seen[bid] = struct{}{}
		name := strings.TrimSpace(it.CFBundleDisplayName)
		if name == "" {
			name = strings.TrimSpace(it.CFBundleName)
		}
		out = append(out, model.InstalledApp{
			PackageID:            bid,
			DisplayName:          model.Optional(name),
			OS:                   model.OSIOS,
			PermissionsRequested: []string{},
			PermissionsGranted:   []string{},
			PermissionsDenied:    []string{},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PackageID < out[j].PackageID })
	return out, nil
}

func parseUDIDs(raw string) []string {
	s := bufio.NewScanner(strings.NewReader(raw))
	set := map[string]struct{}{}
	for s.Scan() {
		udid := strings.TrimSpace(s.Text())
		if udid == "" {
			continue
		}
		set[udid] = struct{}{}
	}
	udids := make([]string, 0, len(set))
	for k := range set {
		udids = append(udids, k)
	}
	sort.Strings(udids)
	return udids
}

func pickUDID(udids []string, want string) (string, error) {
	want = strings.TrimSpace(want)
	if want == "" {
		if len(udids) == 0 {
			return "", ErrNoDevice
		}
		return udids[0], nil
	}
	for _, u := range udids {
		if u == want {
			return u, nil
		}
	}
	return "", fmt.Errorf("%w: %s not connected", ErrNoDevice, want)
}
