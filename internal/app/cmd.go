package app

import (
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	CommandServe       Command = "serve"
	CommandWorker      Command = "worker"
	CommandMigrate     Command = "migrate"
	CommandImport      Command = "import"
	CommandHealthcheck Command = "healthcheck"
)

// commandInfo はサブコマンドの使い方。
type commandInfo struct {
	cmd     Command
	args    string
	summary string
}

// commands はusage出力の順序も兼ねる。
var commands = []commandInfo{
	{cmd: CommandServe, summary: "Webサーバーを起動する（デフォルト）"},
	{cmd: CommandWorker, summary: "期限切れセッションを定期的に削除する"},
	{cmd: CommandMigrate, summary: "データベースマイグレーションを適用する"},
	{cmd: CommandImport, args: "<path-or-url>", summary: "JSONのゲーム一覧をカタログに取り込む"},
	{cmd: CommandHealthcheck, summary: "/health を叩いて結果を終了コードで返す（distroless用）"},
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	for _, c := range commands {
		if string(c.cmd) == args[0] {
			return c.cmd
		}
	}
	return CommandServe
}

// Usage はサブコマンド一覧を返す。
func Usage() string {
	var b strings.Builder
	b.WriteString("usage: gameshelf <command> [args]\n\ncommands:\n")
	for _, c := range commands {
		name := string(c.cmd)
		if c.args != "" {
			name += " " + c.args
		}
		fmt.Fprintf(&b, "  %-28s %s\n", name, c.summary)
	}
	return b.String()
}
