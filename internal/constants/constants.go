// Package constants — идентичность приложения errmgr и общие значения,
// не относящиеся к конкретному компоненту.
package constants

import "os"

// AppName — имя приложения в журналах, метриках и User-Agent.
const AppName = "errmgr"

// Version задаётся при сборке:
//
//	go build -ldflags "-X github.com/Kargones/errmgr/internal/constants.Version=1.4.0"
var Version = "dev"

// Commit задаётся при сборке аналогично Version.
var Commit = "unknown"

// Команды CLI (переменная окружения EM_COMMAND).
const (
	CmdRun       = "run"
	CmdQuery     = "query"
	CmdAnalytics = "analytics"
	CmdCleanup   = "cleanup"
	CmdVersion   = "version"
)

// Commands возвращает все команды CLI.
func Commands() []string {
	return []string{CmdRun, CmdQuery, CmdAnalytics, CmdCleanup, CmdVersion}
}

// Коды завершения процесса.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitConfig   = 2
	ExitShutdown = 3
)

// Права на файлы и каталоги данных pipeline.
const (
	DirPerm  os.FileMode = 0o750
	FilePerm os.FileMode = 0o640
)

// UserAgent — заголовок исходящих HTTP запросов.
func UserAgent() string {
	return AppName + "/" + Version
}
