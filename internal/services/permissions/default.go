package permissions

import "privacy-inspector/internal/domain/model"

// DefaultVersion 是内置分类表版本。
const DefaultVersion = "builtin-1"

// DefaultBundle 返回内置分类表。
func DefaultBundle() model.PermissionRuleBundle {
	cat := func(name string, short ...string) model.PermissionCategoryRule {
		perms := make([]string, 0, len(short))
		for _, s := range short {
			perms = append(perms, androidPrefix+s)
		}
		return model.PermissionCategoryRule{Name: name, Permissions: perms}
	}
	activity := cat("activity_recognition", "ACTIVITY_RECOGNITION")
	activity.Permissions = append(activity.Permissions, "com.google.android.gms.permission.ACTIVITY_RECOGNITION")

	return model.PermissionRuleBundle{
		Version:     DefaultVersion,
		BundleType:  "permission_categories",
		Description: "built-in Android permission categories",
		Categories: []model.PermissionCategoryRule{
			cat("location", "ACCESS_FINE_LOCATION", "ACCESS_COARSE_LOCATION", "ACCESS_BACKGROUND_LOCATION"),
			cat("camera", "CAMERA"),
			cat("microphone", "RECORD_AUDIO"),
			cat("contacts", "READ_CONTACTS", "WRITE_CONTACTS", "GET_ACCOUNTS"),
			cat("storage", "READ_EXTERNAL_STORAGE", "WRITE_EXTERNAL_STORAGE", "MANAGE_EXTERNAL_STORAGE",
				"ACCESS_MEDIA_LOCATION", "READ_MEDIA_IMAGES", "READ_MEDIA_VIDEO", "READ_MEDIA_AUDIO"),
			cat("phone", "READ_PHONE_STATE", "READ_PHONE_NUMBERS", "CALL_PHONE", "ANSWER_PHONE_CALLS",
				"ADD_VOICEMAIL", "USE_SIP"),
			cat("call_log", "READ_CALL_LOG", "WRITE_CALL_LOG", "PROCESS_OUTGOING_CALLS"),
			cat("sms", "SEND_SMS", "RECEIVE_SMS", "READ_SMS", "RECEIVE_WAP_PUSH", "RECEIVE_MMS"),
			cat("calendar", "READ_CALENDAR", "WRITE_CALENDAR"),
			cat("sensors", "BODY_SENSORS", "BODY_SENSORS_BACKGROUND", "HIGH_SAMPLING_RATE_SENSORS",
				"USE_FINGERPRINT", "USE_BIOMETRIC"),
			activity,
			cat("network", "INTERNET", "ACCESS_NETWORK_STATE", "ACCESS_WIFI_STATE", "CHANGE_WIFI_STATE",
				"CHANGE_NETWORK_STATE", "NEARBY_WIFI_DEVICES"),
			cat("bluetooth", "BLUETOOTH", "BLUETOOTH_ADMIN", "BLUETOOTH_CONNECT", "BLUETOOTH_SCAN",
				"BLUETOOTH_ADVERTISE"),
		},
		PrivacyCritical: []string{"location", "camera", "microphone", "contacts", "sms", "call_log", "storage"},
	}
}
