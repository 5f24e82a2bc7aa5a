package app

// 构建时通过 -ldflags "-X privacy-inspector/internal/app.Version=..." 注入。
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)
