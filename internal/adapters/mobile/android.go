package mobile

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/platform/logger"
)

var (
	reGetprop = regexp.MustCompile(`^\[(.*?)\]: \[(.*?)\]`)
	reIPv4    = regexp.MustCompile(`inet (\d+\.\d+\.\d+\.\d+)/`)
	reMAC     = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}([0-9A-Fa-f]{2})$`)
)

// AndroidCollector 通过 adb 采集一台 Android 设备。
type AndroidCollector struct {
	Runner Runner
	// Serial 为空时取第一台已授权设备。
	Serial   string
	Progress Progress
	log      *logger.Logger
}

// NewAndroidCollector 创建 Android 采集器；runner 为 nil 时使用 ExecRunner。
func NewAndroidCollector(runner Runner, serial string, log *logger.Logger) *AndroidCollector {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &AndroidCollector{Runner: runner, Serial: serial, log: log.OrNop().WithComponent("android")}
}

// Collect 读取设备属性、标识与全部已安装应用。
// 单个应用读取失败只记录告警，应用仍以仅含包名的形式保留。
func (c *AndroidCollector) Collect(ctx context.Context) (*Collection, error) {
	out := &Collection{Source: "adb", CollectedAt: time.Now().Unix(), Apps: []model.InstalledApp{}}

	if err := c.Runner.LookPath("adb"); err != nil {
		out.Prechecks = append(out.Prechecks, precheck("adb_available", "adb installed", true, err))
		return out, fmt.Errorf("%w: adb", ErrToolMissing)
	}
	out.Prechecks = append(out.Prechecks, precheck("adb_available", "adb installed", true, nil))

	raw, err := c.Runner.Run(ctx, "adb", "devices")
	if err != nil {
		out.Prechecks = append(out.Prechecks, precheck("device_authorized", "device connected and authorized", true, err))
		return out, fmt.Errorf("list adb devices: %w", err)
	}
	serial, err := pickADBDevice(parseADBDevices(raw), c.Serial)
	out.Prechecks = append(out.Prechecks, precheck("device_authorized", "device connected and authorized", true, err))
	if err != nil {
		return out, err
	}
	c.log.Info().Str("serial", serial).Msg("android device selected")

	out.DeviceInfo, out.Warnings = c.deviceInfo(ctx, serial)

	pkgsRaw, err := c.shell(ctx, serial, "pm", "list", "packages")
	if err != nil {
		return out, fmt.Errorf("list packages: %w", err)
	}
	packages := parseAndroidPackages(pkgsRaw)
	for i, pkg := range packages {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		app := model.InstalledApp{PackageID: pkg}
		dump, err := c.shell(ctx, serial, "dumpsys", "package", pkg)
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("read package %s failed: %v", pkg, err))
		} else {
			app = parsePackageDump(pkg, dump)
		}
		app.OS = model.OSAndroid
		out.Apps = append(out.Apps, app)
		if c.Progress != nil {
			c.Progress(i+1, len(packages))
		}
	}
	for _, w := range out.Warnings {
		c.log.Warn().Msg(w)
	}
	return out, nil
}

func (c *AndroidCollector) shell(ctx context.Context, serial string, args ...string) (string, error) {
	return c.Runner.Run(ctx, "adb", append([]string{"-s", serial, "shell"}, args...)...)
}

// deviceInfo 读取 getprop、android_id、蓝牙地址和 IP；任何一项失败只产生告警。
func (c *AndroidCollector) deviceInfo(ctx context.Context, serial string) (model.DeviceInfo, []string) {
	info := model.DeviceInfo{OS: model.OSAndroid, Identifiers: model.DeviceIdentifiers{IPAddresses: []string{}}}
	var warnings []string

	if raw, err := c.shell(ctx, serial, "getprop"); err != nil {
		warnings = append(warnings, "getprop failed: "+err.Error())
	} else {
		applyGetprop(&info, parseGetprop(raw))
	}
	if raw, err := c.shell(ctx, serial, "settings", "get", "secure", "android_id"); err != nil {
		warnings = append(warnings, "read android_id failed: "+err.Error())
	} else if v := strings.TrimSpace(raw); v != "null" {
		info.Identifiers.AndroidID = model.Optional(v)
	}
	if raw, err := c.shell(ctx, serial, "settings", "get", "secure", "bluetooth_address"); err == nil {
		if mac := strings.TrimSpace(raw); reMAC.MatchString(mac) {
			info.Identifiers.MACBluetooth = &mac
		}
	}
	if raw, err := c.shell(ctx, serial, "ip", "addr", "show"); err != nil {
		warnings = append(warnings, "ip addr failed: "+err.Error())
	} else {
		info.Identifiers.IPAddresses = parseIPAddrs(raw)
	}
	return info, warnings
}

type adbDevice struct {
	Serial string
	State  string
}

func parseADBDevices(raw string) []adbDevice {
	s := bufio.NewScanner(strings.NewReader(raw))
	out := []adbDevice{}
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "List of devices attached") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		out = append(out, adbDevice{Serial: parts[0], State: strings.ToLower(parts[1])})
	}
	return out
}

// pickADBDevice 选择要扫描的设备：指定序列号时必须存在且已授权，否则取第一台已授权设备。
func pickADBDevice(devices []adbDevice, want string) (string, error) {
	want = strings.TrimSpace(want)
	for _, d := range devices {
		if want != "" && d.Serial != want {
			continue
		}
		if d.State == "device" {
			return d.Serial, nil
		}
		if want != "" {
			return "", fmt.Errorf("%w: %s state=%s", ErrNoDevice, d.Serial, d.State)
		}
	}
	if want != "" {
		return "", fmt.Errorf("%w: %s not connected", ErrNoDevice, want)
	}
	return "", ErrNoDevice
}

// parseAndroidPackages 按 pm list packages 的输出顺序返回包名，重复项只保留第一次。
func parseAndroidPackages(raw string) []string {
	s := bufio.NewScanner(strings.NewReader(raw))
	var lines []string
	for s.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s.Text()), "package:"))
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return model.Dedupe(lines)
}

// parsePackageDump 解析 dumpsys package / pm dump 的输出。
func parsePackageDump(pkg, raw string) model.InstalledApp {
	app := model.InstalledApp{PackageID: pkg}
	var requested, granted, denied []string

	section := ""
	s := bufio.NewScanner(strings.NewReader(raw))
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "requested permissions:"):
			section = "requested"
			continue
		case strings.HasPrefix(line, "runtime permissions:"), strings.HasPrefix(line, "install permissions:"):
			section = "grants"
			continue
		}

		if app.DisplayName == nil {
			if v, ok := labelValue(line); ok {
				app.DisplayName = model.Optional(v)
				continue
			}
		}
		if app.InstallSource == nil {
			if v, ok := installSource(line); ok {
				app.InstallSource = model.Optional(v)
				continue
			}
		}
		if v, ok := afterKey(line, "firstInstallTime="); ok && app.FirstInstallTime == nil {
			app.FirstInstallTime = model.Optional(v)
			continue
		}
		if v, ok := afterKey(line, "lastUpdateTime="); ok && app.LastUpdateTime == nil {
			app.LastUpdateTime = model.Optional(v)
			continue
		}

		switch section {
		case "requested":
			if perm, ok := permissionName(line); ok {
				requested = append(requested, perm)
			} else {
				section = ""
			}
		case "grants":
			perm, ok := permissionName(line)
			if !ok {
				section = ""
				continue
			}
			switch {
			case strings.Contains(line, "granted=true"):
				granted = append(granted, perm)
			case strings.Contains(line, "granted=false"):
				denied = append(denied, perm)
			}
		}
	}

	app.PermissionsRequested = model.Dedupe(requested)
	app.PermissionsGranted = model.Dedupe(granted)
	app.PermissionsDenied = model.Dedupe(denied)
	return app
}

// permissionName 识别形如 "android.permission.CAMERA" 或 "android.permission.CAMERA: granted=true" 的行。
func permissionName(line string) (string, bool) {
	name := line
	if i := strings.Index(name, ":"); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, " =") || !strings.Contains(name, ".") {
		return "", false
	}
	return name, true
}

func labelValue(line string) (string, bool) {
	i := strings.Index(line, "label=")
	if i < 0 {
		return "", false
	}
	rest := line[i+len("label="):]
	if strings.HasPrefix(rest, `"`) {
		if j := strings.Index(rest[1:], `"`); j >= 0 {
			return rest[1 : j+1], true
		}
		return "", false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 || fields[0] == "null" {
		return "", false
	}
	return strings.TrimRight(fields[0], "},"), true
}

func installSource(line string) (string, bool) {
	for _, key := range []string{"installInitiator:", "installerPackageName=", "installInitiatingPackageName="} {
		if v, ok := afterKey(line, key); ok {
			v = strings.Fields(v)[0]
			if v == "null" {
				return "", false
			}
			return v, true
		}
	}
	return "", false
}

// afterKey 返回 key 之后的值（去空白）；值为空时视为未找到。
func afterKey(line, key string) (string, bool) {
	i := strings.Index(line, key)
	if i < 0 {
		return "", false
	}
	v := strings.TrimSpace(line[i+len(key):])
	return v, v != ""
}

func parseGetprop(raw string) map[string]string {
	props := map[string]string{}
	s := bufio.NewScanner(strings.NewReader(raw))
	for s.Scan() {
		m := reGetprop.FindStringSubmatch(strings.TrimSpace(s.Text()))
		if m == nil {
			continue
		}
		props[m[1]] = m[2]
	}
	return props
}

func applyGetprop(info *model.DeviceInfo, props map[string]string) {
	info.Manufacturer = model.Optional(props["ro.product.manufacturer"])
	info.Model = model.Optional(props["ro.product.model"])
	info.Brand = model.Optional(props["ro.product.brand"])
	info.Device = model.Optional(props["ro.product.device"])
	info.AndroidVersion = model.Optional(props["ro.build.version.release"])
	info.SecurityPatch = model.Optional(props["ro.build.version.security_patch"])
	info.Identifiers.Serial = model.Optional(props["ro.serialno"])
}

func parseIPAddrs(raw string) []string {
	out := []string{}
	for _, m := range reIPv4.FindAllStringSubmatch(raw, -1) {
		if m[1] == "127.0.0.1" {
			continue
		}
		out = append(out, m[1])
	}
	return model.Dedupe(out)
}
