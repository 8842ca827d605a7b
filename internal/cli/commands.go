package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pocket-chat-server/internal/cache"
)

// app 命令共享的状态
type app struct {
	store  *Store
	cfg    *Config
	out    io.Writer
	in     io.Reader
	server string
	dir    string
}

// NewRootCommand 创建 chatctl 根命令
func NewRootCommand() *cobra.Command {
	return newRootCommand(os.Stdin, os.Stdout)
}

func newRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in, out: out}

	root := &cobra.Command{
		Use:           "chatctl",
		Short:         "Pocket Chat 命令行客户端",
		Long:          "在终端里登录 Pocket Chat、管理会话，并以流式方式和助手聊天。",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVarP(&a.server, "server", "s", "", "服务器地址 (默认: "+defaultServerURL+")")
	root.PersistentFlags().StringVar(&a.dir, "config-dir", "", "配置目录 (默认: ~/.pocket-chat)")

	root.AddCommand(
		a.loginCommand(),
		a.logoutCommand(),
		a.statusCommand(),
		a.threadsCommand(),
		a.newCommand(),
		a.historyCommand(),
		a.chatCommand(),
		a.renameCommand(),
		a.deleteCommand(),
		a.usageCommand(),
		a.watchCommand(),
	)
	return root
}

// Execute 执行根命令
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "✗", err)
		os.Exit(1)
	}
}

func (a *app) init() error {
	dir := a.dir
	if dir == "" {
		var err error
		if dir, err = DefaultDir(); err != nil {
			return err
		}
	}
	store, err := OpenStore(dir)
	if err != nil {
		return err
	}
	if a.server != "" {
		store.SetServerURL(a.server)
	}
	cfg, err := store.Load()
	if err != nil {
		return err
	}
	a.store, a.cfg = store, cfg
	return nil
}

func (a *app) client() *Client {
	return NewClient(a.cfg.Server.URL, a.cfg.Auth.AccessToken)
}

// requireLogin 未登录时直接报错，不发请求
func (a *app) requireLogin() error {
	if a.cfg.Auth.AccessToken == "" {
		return ErrUnauthorized
	}
	return nil
}

func (a *app) loginCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "使用邮箱和密码登录",
		RunE: func(cmd *cobra.Command, args []string) error {
			reader := bufio.NewReader(a.in)
			if email == "" {
				fmt.Fprint(a.out, "邮箱: ")
				line, _ := reader.ReadString('\n')
				email = strings.TrimSpace(line)
			}
			if email == "" {
				return errors.New("邮箱不能为空")
			}

			fmt.Fprint(a.out, "密码: ")
			password, err := a.readPassword(reader)
			fmt.Fprintln(a.out)
			if err != nil {
				return fmt.Errorf("读取密码失败: %w", err)
			}
			if password == "" {
				return errors.New("密码不能为空")
			}

			result, err := a.client().Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := a.store.SaveAuth(email, result.AccessToken, result.RefreshToken); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "✓ 已登录 %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "登录邮箱")
	return cmd
}

// readPassword 终端下隐藏输入，管道输入时读取一行
func (a *app) readPassword(reader *bufio.Reader) (string, error) {
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		data, err := term.ReadPassword(int(f.Fd()))
		return strings.TrimSpace(string(data)), err
	}
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "登出并清除本地凭证",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Auth.AccessToken == "" {
				fmt.Fprintln(a.out, "当前未登录")
				return nil
			}
			// 服务端登出失败（例如 Token 已过期）不影响清除本地凭证
			if err := a.client().Logout(cmd.Context(), a.cfg.Auth.RefreshToken); err != nil && !errors.Is(err, ErrUnauthorized) {
				fmt.Fprintf(a.out, "服务端登出失败: %v\n", err)
			}
			if err := a.store.ClearAuth(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "✓ 已登出并清除本地凭证")
			return nil
		},
	}
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "显示当前登录状态",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.out, "服务器: %s\n", a.cfg.Server.URL)
			fmt.Fprintf(a.out, "配置文件: %s\n", a.store.Path())
			if a.cfg.Auth.AccessToken == "" {
				fmt.Fprintln(a.out, "登录状态: ✗ 未登录，请运行 'chatctl login'")
				return nil
			}

			session, err := a.client().Session(cmd.Context())
			if err != nil {
				fmt.Fprintf(a.out, "登录状态: ✗ %v\n", err)
				return nil
			}
			fmt.Fprintf(a.out, "登录状态: ✓ %s (%s)\n", session.Email, session.UserID)
			scope := session.OrganizationID
			if session.Personal {
				scope = "个人"
			}
			fmt.Fprintf(a.out, "组织: %s\n", scope)
			fmt.Fprintf(a.out, "过期时间: %s\n", time.Unix(session.ExpiresAt, 0).Format(time.DateTime))
			return nil
		},
	}
}

func (a *app) threadsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "threads",
		Aliases: []string{"ls"},
		Short:   "列出会话",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			threads, err := a.client().Threads(cmd.Context())
			if err != nil {
				return err
			}
			if len(threads) == 0 {
				fmt.Fprintln(a.out, "还没有会话，运行 'chatctl chat <消息>' 开始聊天")
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\t标题\t更新时间")
			for _, t := range threads {
				title := "(无标题)"
				if t.Title != nil {
					title = *t.Title
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, title, t.UpdatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
}

func (a *app) newCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "创建空会话",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			threadID, err := a.client().CreateThread(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, threadID)
			return nil
		},
	}
}

func (a *app) historyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history <threadId>",
		Short: "显示会话的消息",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			messages, err := a.client().Messages(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, m := range messages {
				fmt.Fprintf(a.out, "[%s] %s\n%s\n\n", m.Role, m.CreatedAt.Local().Format(time.DateTime), m.Content)
			}
			return nil
		},
	}
}

func (a *app) chatCommand() *cobra.Command {
	var threadID string
	cmd := &cobra.Command{
		Use:   "chat <消息>",
		Short: "发送消息并流式显示回复",
		Long:  "发送消息并流式显示回复。不指定 --thread 时创建新会话。",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			client := a.client()
			if threadID == "" {
				id, err := client.CreateThread(cmd.Context())
				if err != nil {
					return err
				}
				threadID = id
				fmt.Fprintf(a.out, "会话: %s\n\n", threadID)
			}

			printer := NewDeltaPrinter(a.out)
			_, err := client.Chat(cmd.Context(), threadID, strings.Join(args, " "), printer.Print)
			fmt.Fprintln(a.out)
			return err
		},
	}
	cmd.Flags().StringVarP(&threadID, "thread", "t", "", "会话ID")
	return cmd
}

func (a *app) renameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <threadId> <标题>",
		Short: "修改会话标题",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			if err := a.client().RenameThread(cmd.Context(), args[0], strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "✓ 已修改标题")
			return nil
		},
	}
}

func (a *app) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <threadId>",
		Aliases: []string{"rm"},
		Short:   "删除会话及其消息",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			if err := a.client().DeleteThread(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "✓ 已删除")
			return nil
		},
	}
}

func (a *app) usageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "显示当前组织的用量",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			summary, err := a.client().Usage(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "回复数: %d\n字符数: %d\n费用: %s\n", summary.Messages, summary.Characters, summary.Cost.StringFixed(4))
			return nil
		},
	}
}

func (a *app) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "实时显示会话变更",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "正在监听会话变更，Ctrl+C 退出")
			return Watch(cmd.Context(), a.cfg.Server.URL, a.cfg.Auth.AccessToken, func(e *cache.ThreadEvent) {
				line := fmt.Sprintf("%s %s %s", time.UnixMilli(e.Timestamp).Format(time.TimeOnly), e.Type, e.ThreadID)
				if e.Title != nil {
					line += " " + *e.Title
				}
				fmt.Fprintln(a.out, line)
			})
		},
	}
}
