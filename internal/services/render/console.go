package render

import (
	"fmt"
	"io"
	"strings"

	"privacy-inspector/internal/domain/model"
)

// PrintSummary 在终端输出设备信息、标识符、风险统计和报告文件路径。
func PrintSummary(w io.Writer, doc model.ReportDocument, res *Result) {
	d := doc.DeviceInfo
	fmt.Fprintln(w, "Device Information:")
	fmt.Fprintf(w, "  Manufacturer: %s\n", model.Deref(d.Manufacturer, "Unknown"))
	fmt.Fprintf(w, "  Model: %s\n", model.Deref(d.Model, "Unknown"))
	fmt.Fprintf(w, "  Brand: %s\n", model.Deref(d.Brand, "Unknown"))
	if d.OS == model.OSAndroid {
		fmt.Fprintf(w, "  Android Version: %s\n", model.Deref(d.AndroidVersion, "Unknown"))
		fmt.Fprintf(w, "  Security Patch: %s\n", model.Deref(d.SecurityPatch, "Unknown"))
	}

	ids := d.Identifiers
	ips := strings.Join(ids.IPAddresses, ", ")
	if ips == "" {
		ips = "Not available"
	}
	fmt.Fprintln(w, "\nDevice Identifiers:")
	fmt.Fprintf(w, "  Serial Number: %s\n", model.Deref(ids.Serial, "Not available"))
	fmt.Fprintf(w, "  Android ID: %s\n", model.Deref(ids.AndroidID, "Not available"))
	fmt.Fprintf(w, "  IP Addresses: %s\n", ips)
	fmt.Fprintf(w, "  Bluetooth MAC: %s\n", model.Deref(ids.MACBluetooth, "Not available"))

	s := doc.Summary
	fmt.Fprintln(w, "\nApp Summary:")
	fmt.Fprintf(w, "  Total installed apps: %d\n", s.TotalApps)
	fmt.Fprintf(w, "  High risk apps: %d\n", s.RiskLevels.High)
	fmt.Fprintf(w, "  Medium risk apps: %d\n", s.RiskLevels.Medium)
	fmt.Fprintf(w, "  Low risk apps: %d\n", s.RiskLevels.Low)
	fmt.Fprintf(w, "  Not found in dataset: %d\n", s.RiskLevels.NotFound)

	if res == nil {
		return
	}
	fmt.Fprintf(w, "\nReports generated in: %s\n", res.Dir)
	for _, f := range res.Files {
		fmt.Fprintf(w, "  - %s: %s\n", strings.ToUpper(f.Kind), f.FilePath)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
}
