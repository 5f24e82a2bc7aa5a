package mobile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacy-inspector/internal/domain/model"
)

func TestInventoryWriteRead(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sub", "inventory.json")
	in := &Collection{
		DeviceInfo: model.DeviceInfo{OS: model.OSAndroid, Model: model.Optional("Pixel 7")},
		Apps: []model.InstalledApp{{
			PackageID:          "com.example.app",
			DisplayName:        model.Optional("Example App"),
			PermissionsGranted: []string{"CAMERA", "CAMERA"},
		}},
		Source:      "adb",
		CollectedAt: 1700000000,
	}
	require.NoError(t, WriteInventory(p, in))

	col, err := InventoryCollector{Path: p}.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "adb", col.Source)
	require.Len(t, col.Apps, 1)
	assert.Equal(t, []string{"CAMERA"}, col.Apps[0].PermissionsGranted)
	assert.Equal(t, model.OSAndroid, col.Apps[0].OS)
	assert.Nil(t, col.Apps[0].InstallSource)
	require.NotEmpty(t, col.Prechecks)
	assert.Equal(t, model.PrecheckSkipped, col.Prechecks[len(col.Prechecks)-1].Status)
}

func TestReadInventoryRejectsMissingPackage(t *testing.T) {
	p := filepath.Join(t.TempDir(), "inv.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"device_info":{},"apps":[{"display_name":"x"}]}`), 0o644))
	_, err := ReadInventory(p)
	assert.Error(t, err)
}

func TestReadInventoryNullsStayNil(t *testing.T) {
	p := filepath.Join(t.TempDir(), "inv.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"device_info":{"os":"android","manufacturer":null},"apps":[{"package_id":"a","install_source":null}]}`), 0o644))
	col, err := ReadInventory(p)
	require.NoError(t, err)
	assert.Nil(t, col.DeviceInfo.Manufacturer)
	assert.Equal(t, "inventory", col.Source)
	assert.Equal(t, []string{}, col.DeviceInfo.Identifiers.IPAddresses)
}
