package mobile

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacy-inspector/internal/domain/model"
)

// fakeRunner 按 "name arg1 arg2" 回放输出。
type fakeRunner struct {
	outputs map[string]string
	missing map[string]bool
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, key)
	out, ok := f.outputs[key]
	if !ok {
		return "", errors.New("unexpected command: " + key)
	}
	return out, nil
}

func (f *fakeRunner) LookPath(name string) error {
	if f.missing[name] {
		return errors.New(name + " not found")
	}
	return nil
}

const dumpsysExample = `Packages:
  Package [com.example.app] (1a2b3c):
    userId=10123
    pkg=Package{4d5e6f com.example.app}
    versionName=2.4.1
    applicationInfo=ApplicationInfo{7a8b9c com.example.app} label="Example App"
    timeStamp=2024-03-01 10:00:00
    firstInstallTime=2023-11-20 08:15:42
    lastUpdateTime=2024-03-01 10:00:03
    installerPackageName=com.android.vending
    requested permissions:
      android.permission.INTERNET
      android.permission.ACCESS_FINE_LOCATION
      android.permission.READ_CONTACTS: restricted=true
      android.permission.CAMERA
      android.permission.INTERNET
    install permissions:
      android.permission.INTERNET: granted=true
    User 0: ceDataInode=123 installed=true hidden=false
      runtime permissions:
        android.permission.ACCESS_FINE_LOCATION: granted=true, flags=[ USER_SET ]
        android.permission.READ_CONTACTS: granted=false, flags=[ USER_SET ]
        android.permission.CAMERA: granted=false
`

func TestParseAndroidPackagesKeepsDeviceOrder(t *testing.T) {
	raw := "package:com.zeta\npackage:com.alpha\n\npackage:com.zeta\n  package:com.mid  \n"
	assert.Equal(t, []string{"com.zeta", "com.alpha", "com.mid"}, parseAndroidPackages(raw))
	assert.Empty(t, parseAndroidPackages(""))
}

func TestParsePackageDump(t *testing.T) {
	app := parsePackageDump("com.example.app", dumpsysExample)
	require.NotNil(t, app.DisplayName)
	assert.Equal(t, "Example App", *app.DisplayName)
	assert.Equal(t, "com.android.vending", model.Deref(app.InstallSource, ""))
	assert.Equal(t, "2023-11-20 08:15:42", model.Deref(app.FirstInstallTime, ""))
	assert.Equal(t, "2024-03-01 10:00:03", model.Deref(app.LastUpdateTime, ""))
	assert.Equal(t, []string{
		"android.permission.INTERNET",
		"android.permission.ACCESS_FINE_LOCATION",
		"android.permission.READ_CONTACTS",
		"android.permission.CAMERA",
	}, app.PermissionsRequested)
	assert.Equal(t, []string{"android.permission.INTERNET", "android.permission.ACCESS_FINE_LOCATION"}, app.PermissionsGranted)
	assert.Equal(t, []string{"android.permission.READ_CONTACTS", "android.permission.CAMERA"}, app.PermissionsDenied)
}

func TestParsePackageDumpMinimal(t *testing.T) {
	app := parsePackageDump("com.bare", "Packages:\n  Package [com.bare]:\n    installerPackageName=null\n")
	assert.Nil(t, app.DisplayName)
	assert.Nil(t, app.InstallSource)
	assert.Nil(t, app.FirstInstallTime)
	assert.Empty(t, app.PermissionsRequested)
	assert.NotNil(t, app.PermissionsGranted)
}

func TestParseADBDevicesAndPick(t *testing.T) {
	raw := "* daemon started successfully\nList of devices attached\nABC123\tunauthorized\nXYZ789\tdevice\n\n"
	devs := parseADBDevices(raw)
	require.Len(t, devs, 2)

	got, err := pickADBDevice(devs, "")
	require.NoError(t, err)
	assert.Equal(t, "XYZ789", got)

	_, err = pickADBDevice(devs, "ABC123")
	assert.ErrorIs(t, err, ErrNoDevice)

	_, err = pickADBDevice(devs, "NOPE")
	assert.ErrorIs(t, err, ErrNoDevice)

	_, err = pickADBDevice(nil, "")
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestParseGetpropAndIP(t *testing.T) {
	props := parseGetprop("[ro.product.manufacturer]: [Google]\n[ro.product.model]: [Pixel 7]\n[ro.serialno]: [ 28A1 ]\n[ro.build.version.release]: []\ngarbage\n")
	var info model.DeviceInfo
	applyGetprop(&info, props)
	assert.Equal(t, "Google", model.Deref(info.Manufacturer, ""))
	assert.Equal(t, "Pixel 7", model.Deref(info.Model, ""))
	assert.Equal(t, "28A1", model.Deref(info.Identifiers.Serial, ""))
	assert.Nil(t, info.AndroidVersion)
	assert.Nil(t, info.Brand)

	ips := parseIPAddrs("1: lo: <LOOPBACK>\n    inet 127.0.0.1/8 scope host lo\n3: wlan0:\n    inet 192.168.1.23/24 brd\n    inet6 fe80::1/64\n4: rmnet0:\n    inet 10.20.30.40/30\n")
	assert.Equal(t, []string{"192.168.1.23", "10.20.30.40"}, ips)
}

func TestAndroidCollect(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"adb devices": "List of devices attached\nXYZ789\tdevice\n",
		"adb -s XYZ789 shell getprop": "[ro.product.manufacturer]: [Google]\n[ro.product.model]: [Pixel 7]\n",
		"adb -s XYZ789 shell settings get secure android_id":        "a1b2c3d4e5f60718\n",
		"adb -s XYZ789 shell settings get secure bluetooth_address": "not-a-mac\n",
		"adb -s XYZ789 shell ip addr show":                         "inet 192.168.1.23/24\n",
		"adb -s XYZ789 shell pm list packages":                     "package:com.example.app\npackage:com.broken\n",
		"adb -s XYZ789 shell dumpsys package com.example.app":      dumpsysExample,
	}}
	var progress []int
	c := NewAndroidCollector(r, "", nil)
	c.Progress = func(done, total int) { progress = append(progress, done) }

	col, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "adb", col.Source)
	assert.Equal(t, "Google", model.Deref(col.DeviceInfo.Manufacturer, ""))
	assert.Equal(t, "a1b2c3d4e5f60718", model.Deref(col.DeviceInfo.Identifiers.AndroidID, ""))
	assert.Nil(t, col.DeviceInfo.Identifiers.MACBluetooth)
	assert.Equal(t, []string{"192.168.1.23"}, col.DeviceInfo.Identifiers.IPAddresses)

	require.Len(t, col.Apps, 2)
	assert.Equal(t, "com.example.app", col.Apps[0].PackageID)
	assert.Equal(t, "Example App", model.Deref(col.Apps[0].DisplayName, ""))
	assert.Equal(t, model.OSAndroid, col.Apps[0].OS)
	assert.Equal(t, "com.broken", col.Apps[1].PackageID)
	assert.Nil(t, col.Apps[1].DisplayName)
	assert.Equal(t, []int{1, 2}, progress)

	require.Len(t, col.Warnings, 1)
	assert.Contains(t, col.Warnings[0], "com.broken")
	assert.False(t, model.HasRequiredFailure(col.Prechecks))
}

func TestAndroidCollectWithoutADB(t *testing.T) {
	r := &fakeRunner{missing: map[string]bool{"adb": true}}
	col, err := NewAndroidCollector(r, "", nil).Collect(context.Background())
	assert.ErrorIs(t, err, ErrToolMissing)
	require.NotNil(t, col)
	assert.True(t, model.HasRequiredFailure(col.Prechecks))
	assert.Empty(t, r.calls)
}
