// Package main 是 chatctl 命令行客户端的入口点
package main

import "pocket-chat-server/internal/cli"

func main() {
	cli.Execute()
}
